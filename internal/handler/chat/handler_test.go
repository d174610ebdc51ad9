package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/chathub/internal/hub"
	model "github.com/zhouzirui/chathub/internal/model/chat"
	"github.com/zhouzirui/chathub/internal/service/ai"
	"github.com/zhouzirui/chathub/internal/store"
)

type stubHub struct {
	names     []string
	namesErr  error
	sentinels int
}

func (s *stubHub) Connect(context.Context) (*hub.Session, error) {
	return nil, errors.New("not supported")
}

func (s *stubHub) Disconnect(*hub.Session) {}

func (s *stubHub) Join(context.Context, *hub.Session, string) error { return nil }

func (s *stubHub) Send(context.Context, *hub.Session, string) error { return nil }

func (s *stubHub) Notify(context.Context, *hub.Session, string) error { return nil }

func (s *stubHub) Participants(context.Context) ([]string, error) { return s.names, s.namesErr }

func (s *stubHub) EnsureSentinel(context.Context) error {
	s.sentinels++
	return nil
}

type stubStore struct {
	store.Store
	messages  []model.Message
	recentErr error
	pingErr   error
	limit     int
}

func (s *stubStore) Recent(_ context.Context, limit int) ([]model.Message, error) {
	s.limit = limit
	return s.messages, s.recentErr
}

func (s *stubStore) Ping(context.Context) error { return s.pingErr }

func setupRouter(h Hub, st store.Store) *chi.Mux {
	r := chi.NewRouter()
	New(h, st, 100, zap.NewNop()).RegisterRoutes(r)
	return r
}

func serve(r http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestMessagesEnsuresSentinelAndReturnsHistory(t *testing.T) {
	h := &stubHub{}
	st := &stubStore{messages: []model.Message{model.NewMessage("Alice", "hi")}}

	resp := serve(setupRouter(h, st), "/messages")

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 1, h.sentinels)
	require.Equal(t, 100, st.limit)

	var got []model.Message
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "Alice", got[0].Author)
}

func TestMessagesStoreFailure(t *testing.T) {
	st := &stubStore{recentErr: errors.New("boom")}

	resp := serve(setupRouter(&stubHub{}, st), "/messages")

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.Contains(t, resp.Body.String(), "failed to fetch messages")
}

func TestMessagesEmptyStoreEncodesArray(t *testing.T) {
	resp := serve(setupRouter(&stubHub{}, &stubStore{messages: []model.Message{}}), "/messages")

	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `[]`, resp.Body.String())
}

func TestParticipants(t *testing.T) {
	resp := serve(setupRouter(&stubHub{names: []string{"Alice", "Bob"}}, &stubStore{}), "/participants")

	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `["Alice","Bob"]`, resp.Body.String())
}

func TestParticipantsWhenStopped(t *testing.T) {
	resp := serve(setupRouter(&stubHub{namesErr: hub.ErrStopped}, &stubStore{}), "/participants")

	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestHealth(t *testing.T) {
	resp := serve(setupRouter(&stubHub{}, &stubStore{}), "/healthz")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = serve(setupRouter(&stubHub{}, &stubStore{pingErr: errors.New("down")}), "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// startServer runs a real hub over sqlite behind an httptest server.
func startServer(t *testing.T) string {
	t.Helper()

	st, err := store.NewSQLStore(store.SQLite, filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	require.NoError(t, st.Init(context.Background()))

	assistant, err := ai.NewClient(context.Background(), nil, ai.DefaultPersona(), time.Second, zap.NewNop())
	require.NoError(t, err)

	h := hub.New(st, assistant, hub.Options{
		ReplyDelay:   10 * time.Millisecond,
		WelcomeDelay: 10 * time.Millisecond,
		OutboxSize:   64,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(stopped)
	}()

	srv := httptest.NewServer(setupRouter(h, st))
	t.Cleanup(func() {
		cancel()
		<-stopped
		srv.Close()
		_ = st.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": typ, "data": data}))
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev wireEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func readMessage(t *testing.T, conn *websocket.Conn) hub.MessagePayload {
	t.Helper()
	ev := readEvent(t, conn)
	require.Equal(t, "message", ev.Type)
	var payload hub.MessagePayload
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	return payload
}

func readError(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	ev := readEvent(t, conn)
	require.Equal(t, "error", ev.Type)
	var payload hub.ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	return payload.Message
}

func TestWebSocketJoinAndConverseAlone(t *testing.T) {
	alice := dial(t, startServer(t))

	sendFrame(t, alice, "join", map[string]string{"name": "Alice"})

	joined := readEvent(t, alice)
	require.Equal(t, "participant-joined", joined.Type)
	require.JSONEq(t, `{"name":"Alice"}`, string(joined.Data))

	welcome := readMessage(t, alice)
	require.Equal(t, model.AssistantName, welcome.Author)
	require.Contains(t, welcome.Body, "Hello Alice!")
	require.Equal(t, "refresh", readEvent(t, alice).Type)

	sendFrame(t, alice, "send-message", map[string]string{"body": "hello"})

	own := readMessage(t, alice)
	require.Equal(t, "Alice", own.Author)
	require.Equal(t, "hello", own.Body)
	require.Equal(t, "refresh", readEvent(t, alice).Type)

	reply := readMessage(t, alice)
	require.Equal(t, model.AssistantName, reply.Author)
	require.Equal(t, ai.DefaultPersona().Fallback, reply.Body)
	require.Equal(t, "refresh", readEvent(t, alice).Type)
}

func TestWebSocketSendBeforeJoin(t *testing.T) {
	conn := dial(t, startServer(t))

	sendFrame(t, conn, "send-message", map[string]string{"body": "hello"})

	require.Equal(t, "Please join the chat first", readError(t, conn))
}

func TestWebSocketRejectsMalformedFrames(t *testing.T) {
	conn := dial(t, startServer(t))

	sendFrame(t, conn, "dance", nil)
	require.Equal(t, "unsupported message type: dance", readError(t, conn))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.Equal(t, "invalid message", readError(t, conn))

	sendFrame(t, conn, "join", "Alice")
	require.Equal(t, "invalid join payload", readError(t, conn))

	// the connection survives bad input
	sendFrame(t, conn, "join", map[string]string{"name": "Alice"})
	require.Equal(t, "participant-joined", readEvent(t, conn).Type)
}

func TestWebSocketCloseAnnouncesLeave(t *testing.T) {
	url := startServer(t)
	alice := dial(t, url)
	bob := dial(t, url)

	sendFrame(t, alice, "join", map[string]string{"name": "Alice"})
	require.Equal(t, "participant-joined", readEvent(t, alice).Type)
	readMessage(t, alice)
	require.Equal(t, "refresh", readEvent(t, alice).Type)

	sendFrame(t, bob, "join", map[string]string{"name": "Bob"})
	require.Equal(t, "participant-joined", readEvent(t, alice).Type)

	require.NoError(t, bob.Close())

	left := readEvent(t, alice)
	require.Equal(t, "participant-left", left.Type)
	require.JSONEq(t, `{"name":"Bob"}`, string(left.Data))
}
