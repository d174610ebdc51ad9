package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/chathub/internal/hub"
	"github.com/zhouzirui/chathub/internal/store"
	"github.com/zhouzirui/chathub/pkg/utils"
)

// Hub is the part of the coordination core the transport drives.
type Hub interface {
	Connect(ctx context.Context) (*hub.Session, error)
	Disconnect(s *hub.Session)
	Join(ctx context.Context, s *hub.Session, name string) error
	Send(ctx context.Context, s *hub.Session, body string) error
	Notify(ctx context.Context, s *hub.Session, message string) error
	EnsureSentinel(ctx context.Context) error
	Participants(ctx context.Context) ([]string, error)
}

// Handler serves the chat socket and the history queries.
type Handler struct {
	hub          Hub
	store        store.Store
	historyLimit int
	log          *zap.Logger
	upgrader     websocket.Upgrader
}

// New creates a chat handler. historyLimit caps GET /messages.
func New(h Hub, st store.Store, historyLimit int, log *zap.Logger) *Handler {
	return &Handler{
		hub:          h,
		store:        st,
		historyLimit: historyLimit,
		log:          log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the chat routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
	r.Get("/messages", h.handleMessages)
	r.Get("/participants", h.handleParticipants)
	r.Get("/healthz", h.handleHealth)
}

// handleMessages returns recent history, newest first. The assistant is
// seeded before the read so a fresh store never answers with an empty list.
func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.EnsureSentinel(r.Context()); err != nil {
		h.log.Error("failed to ensure assistant exists", zap.Error(err))
	}

	messages, err := h.store.Recent(r.Context(), h.historyLimit)
	if err != nil {
		h.log.Error("failed to fetch messages", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleParticipants(w http.ResponseWriter, r *http.Request) {
	names, err := h.hub.Participants(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "chat is shutting down")
		return
	}
	utils.RespondJSON(w, http.StatusOK, names)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		utils.RespondError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
