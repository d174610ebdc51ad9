package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/zhouzirui/chathub/internal/model/chat"
)

// Dialect captures what differs between the SQL backends.
type Dialect struct {
	Name   string
	Driver string
	Schema []string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

// SQLite is the embedded default backend.
var SQLite = Dialect{
	Name:   "sqlite",
	Driver: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id INTEGER NOT NULL,
			author TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_author ON messages(author)`,
	},
	Placeholder: func(int) string { return "?" },
}

// Postgres targets a networked server through lib/pq.
var Postgres = Dialect{
	Name:   "postgres",
	Driver: "postgres",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS messages (
			seq BIGSERIAL PRIMARY KEY,
			id BIGINT NOT NULL,
			author TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_author ON messages(author)`,
	},
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
}

// SQLStore keeps messages in a single append-only table. created_at holds
// unix nanoseconds so ordering is identical across dialects.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewSQLStore opens a connection pool; no round trip happens until Init.
func NewSQLStore(dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name, err)
	}
	if dialect.Name == SQLite.Name {
		// sqlite allows one writer at a time
		db.SetMaxOpenConns(1)
	}
	return &SQLStore{db: db, dialect: dialect, now: time.Now}, nil
}

// Init pings the database and creates the schema if needed.
func (s *SQLStore) Init(ctx context.Context) error {
	if err := s.Ping(ctx); err != nil {
		return err
	}
	for _, stmt := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Ping checks the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.dialect.Name, err)
	}
	return nil
}

// Append writes msg. All user text travels as bind parameters.
func (s *SQLStore) Append(ctx context.Context, msg chat.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}

	query := fmt.Sprintf(
		"INSERT INTO messages (id, author, body, created_at) VALUES (%s)",
		s.placeholders(4),
	)
	if _, err := s.db.ExecContext(ctx, query, int64(msg.ID), msg.Author, msg.Body, msg.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("%w: %w", chat.ErrWriteFailed, err)
	}
	return nil
}

// Recent returns the newest messages first.
func (s *SQLStore) Recent(ctx context.Context, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		return []chat.Message{}, nil
	}
	query := fmt.Sprintf(
		"SELECT id, author, body, created_at FROM messages ORDER BY created_at DESC, seq DESC LIMIT %s",
		s.dialect.Placeholder(1),
	)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0, limit)
	for rows.Next() {
		var (
			id        int64
			createdAt int64
			msg       chat.Message
		)
		if err := rows.Scan(&id, &msg.Author, &msg.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.ID = uint32(id)
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return messages, nil
}

// ExistsAuthor reports whether any message was written by name.
func (s *SQLStore) ExistsAuthor(ctx context.Context, name string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM messages WHERE author = %s LIMIT 1", s.dialect.Placeholder(1))

	var one int
	err := s.db.QueryRowContext(ctx, query, name).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to look up author: %w", err)
	default:
		return true, nil
	}
}

// Close releases the pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.dialect.Placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}
