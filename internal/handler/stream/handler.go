package stream

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/chathub/internal/hub"
	"github.com/zhouzirui/chathub/pkg/utils"
)

const heartbeatInterval = 15 * time.Second

// Hub registers read-only observers.
type Hub interface {
	Connect(ctx context.Context) (*hub.Session, error)
	Disconnect(s *hub.Session)
}

// Handler streams broadcast events over Server-Sent Events. Observers never
// join, so they see the room without appearing in it.
type Handler struct {
	hub       Hub
	log       *zap.Logger
	heartbeat time.Duration
}

// New creates a stream handler.
func New(h Hub, log *zap.Logger) *Handler {
	return &Handler{hub: h, log: log, heartbeat: heartbeatInterval}
}

// HandleEvents serves GET /events until the client goes away or the hub
// closes the session.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	session, err := h.hub.Connect(ctx)
	if err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "chat unavailable")
		return
	}
	defer h.hub.Disconnect(session)

	log := h.log.With(zap.String("session", session.ID()))
	log.Debug("opening event stream")

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("closing event stream")
			return
		case ev, ok := <-session.Events():
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}
