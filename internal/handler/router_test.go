package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zhouzirui/chathub/internal/handler/persona"
	"github.com/zhouzirui/chathub/internal/hub"
	"github.com/zhouzirui/chathub/internal/service/ai"
	"github.com/zhouzirui/chathub/internal/store"
)

func newTestRouter(t *testing.T, log *zap.Logger) http.Handler {
	t.Helper()

	st, err := store.NewSQLStore(store.SQLite, filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	require.NoError(t, st.Init(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	assistant, err := ai.NewClient(context.Background(), nil, ai.DefaultPersona(), time.Second, zap.NewNop())
	require.NoError(t, err)

	return NewRouter(Deps{
		Hub:          hub.New(st, assistant, hub.DefaultOptions(), log),
		Store:        st,
		Persona:      assistant.Persona(),
		HistoryLimit: 100,
		Log:          log,
	})
}

func TestRouterServesAssistantProfile(t *testing.T) {
	r := newTestRouter(t, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/assistant", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var profile persona.Profile
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &profile))
	require.Equal(t, "AI Assistant", profile.Name)
	require.Equal(t, []string{"ai", "assistant", "@ai"}, profile.Triggers)
	require.NotContains(t, resp.Body.String(), "systemPrompt")
}

func TestRouterHealthz(t *testing.T) {
	r := newTestRouter(t, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
}

func TestRouterLogsRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newTestRouter(t, zap.New(core))

	req := httptest.NewRequest(http.MethodGet, "/api/nowhere", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusNotFound, resp.Code)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "/api/nowhere", fields["path"])
	require.EqualValues(t, http.StatusNotFound, fields["status"])
	require.NotEmpty(t, fields["request_id"])
}

func TestRequestLoggerLogsPanickingRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	h := requestLogger(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	require.Panics(t, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
	require.Equal(t, 1, logs.FilterMessage("http request").Len())
}
