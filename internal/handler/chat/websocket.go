package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/chathub/internal/hub"
	model "github.com/zhouzirui/chathub/internal/model/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 8 << 10
)

const (
	actionJoin = "join"
	actionSend = "send-message"
)

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type joinData struct {
	Name string `json:"name"`
}

type sendData struct {
	Body string `json:"body"`
}

// handleWebSocket attaches one browser connection to the hub. The reader
// runs on this goroutine so a connection's actions are handled in order;
// a second goroutine owns every write to the socket.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session, err := h.hub.Connect(ctx)
	if err != nil {
		h.log.Warn("failed to register connection", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "chat unavailable"),
			time.Now().Add(writeWait))
		return
	}
	log := h.log.With(zap.String("session", session.ID()))
	log.Info("websocket connected", zap.String("remote", r.RemoteAddr))

	written := make(chan struct{})
	go func() {
		defer close(written)
		h.writePump(conn, session, log)
	}()

	h.readLoop(ctx, conn, session, log)

	h.hub.Disconnect(session)
	<-written
	log.Info("websocket disconnected")
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, session *hub.Session, log *zap.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if !h.dispatch(ctx, session, raw, log) {
			return
		}
	}
}

// dispatch applies one inbound frame. It reports false once the session or
// the hub is gone.
func (h *Handler) dispatch(ctx context.Context, session *hub.Session, raw []byte, log *zap.Logger) bool {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return h.reject(ctx, session, "invalid message")
	}

	var err error
	switch msg.Type {
	case actionJoin:
		var data joinData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return h.reject(ctx, session, "invalid join payload")
		}
		err = h.hub.Join(ctx, session, data.Name)
	case actionSend:
		var data sendData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return h.reject(ctx, session, "invalid message payload")
		}
		err = h.hub.Send(ctx, session, data.Body)
	default:
		return h.reject(ctx, session, "unsupported message type: "+msg.Type)
	}

	switch {
	case err == nil:
		return true
	case errors.Is(err, model.ErrInvalidAction), errors.Is(err, model.ErrWriteFailed):
		// the hub has already told the client
		log.Debug("action rejected", zap.String("type", msg.Type), zap.Error(err))
		return true
	default:
		log.Info("closing connection", zap.String("type", msg.Type), zap.Error(err))
		return false
	}
}

func (h *Handler) reject(ctx context.Context, session *hub.Session, message string) bool {
	return h.hub.Notify(ctx, session, message) == nil
}

// writePump drains the session outbox onto the socket and keeps the
// connection alive with pings. It closes the socket when the outbox closes
// or a write fails, which also ends the reader.
func (h *Handler) writePump(conn *websocket.Conn, session *hub.Session, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case ev, ok := <-session.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
