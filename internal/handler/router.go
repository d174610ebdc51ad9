package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/chathub/internal/handler/chat"
	"github.com/zhouzirui/chathub/internal/handler/persona"
	"github.com/zhouzirui/chathub/internal/handler/stream"
	"github.com/zhouzirui/chathub/internal/hub"
	"github.com/zhouzirui/chathub/internal/service/ai"
	"github.com/zhouzirui/chathub/internal/store"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Hub          *hub.Hub
	Store        store.Store
	Persona      ai.Persona
	HistoryLimit int
	Log          *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Log))
	r.Use(middleware.Recoverer)

	chatHandler := chat.New(deps.Hub, deps.Store, deps.HistoryLimit, deps.Log.Named("chat"))
	personaHandler := persona.New(deps.Persona)
	streamHandler := stream.New(deps.Hub, deps.Log.Named("stream"))

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		personaHandler.RegisterRoutes(api)
		api.Get("/events", streamHandler.HandleEvents)
	})

	return r
}

// requestLogger logs one line per request once it has been served.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				log.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("remote", r.RemoteAddr),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
