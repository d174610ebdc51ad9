package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":3000", cfg.Server.Addr)
	require.Equal(t, "sqlite", cfg.Store.Driver)
	require.Equal(t, 5, cfg.Store.InitAttempts)
	require.Equal(t, 5*time.Second, cfg.Store.InitDelay)
	require.Equal(t, time.Second, cfg.Hub.ReplyDelay)
	require.Equal(t, time.Second, cfg.Hub.WelcomeDelay)
	require.Equal(t, 100, cfg.Hub.HistoryLimit)
	require.Equal(t, 150, cfg.AI.MaxTokens)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("STORE_DRIVER", "badger")
	t.Setenv("STORE_DSN", "/tmp/chathub")
	t.Setenv("REPLY_DELAY", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	require.Equal(t, "badger", cfg.Store.Driver)
	require.Equal(t, 250*time.Millisecond, cfg.Hub.ReplyDelay)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "clickhouse")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsZeroAttempts(t *testing.T) {
	t.Setenv("STORE_INIT_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestNormalizeAddr(t *testing.T) {
	addr, err := normalizeAddr("8080")
	require.NoError(t, err)
	require.Equal(t, ":8080", addr)

	addr, err = normalizeAddr(":8080")
	require.NoError(t, err)
	require.Equal(t, ":8080", addr)

	_, err = normalizeAddr("80 80")
	require.Error(t, err)
}

func TestAIConfigEnabled(t *testing.T) {
	require.False(t, AIConfig{}.Enabled())
	require.False(t, AIConfig{APIKey: "key"}.Enabled())
	require.True(t, AIConfig{Model: "ep-1", APIKey: "key"}.Enabled())
	require.True(t, AIConfig{Model: "ep-1", AccessKey: "ak", SecretKey: "sk"}.Enabled())
}
