// Package store persists chat messages to a durable backend.
package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/chathub/internal/config"
	"github.com/zhouzirui/chathub/internal/model/chat"
)

// Store is an append-only log of chat messages.
type Store interface {
	// Init makes one attempt to reach the backend and ensure its schema.
	Init(ctx context.Context) error
	Ping(ctx context.Context) error
	Append(ctx context.Context, msg chat.Message) error
	// Recent returns at most limit messages, newest first.
	Recent(ctx context.Context, limit int) ([]chat.Message, error)
	ExistsAuthor(ctx context.Context, name string) (bool, error)
	Close() error
}

// Open constructs the backend selected by cfg.Driver without touching it.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLStore(SQLite, cfg.DSN)
	case "postgres":
		return NewSQLStore(Postgres, cfg.DSN)
	case "badger":
		return NewBadgerStore(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// Retry bounds Initialize. The wait before attempt n+1 is BaseDelay*n.
type Retry struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Initialize calls s.Init until it succeeds or the attempts run out, in which
// case the returned error wraps chat.ErrStoreUnavailable.
func Initialize(ctx context.Context, s Store, retry Retry, log *zap.Logger) error {
	attempts := retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		log.Info("initializing message store", zap.Int("attempt", attempt), zap.Int("max_attempts", attempts))

		lastErr = s.Init(ctx)
		if lastErr == nil {
			log.Info("message store ready")
			return nil
		}
		log.Warn("message store initialization failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(lastErr),
		)

		if attempt == attempts {
			break
		}

		wait := retry.BaseDelay * time.Duration(attempt)
		log.Info("retrying message store initialization", zap.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", chat.ErrStoreUnavailable, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", chat.ErrStoreUnavailable, attempts, lastErr)
}
