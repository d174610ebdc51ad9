package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/zhouzirui/chathub/internal/model/chat"
)

const (
	messagePrefix = "msg:"
	authorPrefix  = "author:"
)

var errBadgerClosed = errors.New("badger store is not open")

// BadgerStore keeps messages in an embedded Badger database.
//
// Message keys are "msg:{unix_nanos 19 digits}:{uuidv7}" so a reverse prefix
// scan yields newest first; messages sharing a nanosecond keep insertion
// order through the time-ordered suffix. "author:{name}" keys back ExistsAuthor.
type BadgerStore struct {
	path string
	now  func() time.Time

	mu sync.RWMutex
	db *badger.DB
}

// NewBadgerStore returns a store rooted at path. The database is opened by Init.
func NewBadgerStore(path string) *BadgerStore {
	return &BadgerStore{path: path, now: time.Now}
}

// Init opens the database directory, creating it if needed.
func (s *BadgerStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil && !s.db.IsClosed() {
		return nil
	}

	db, err := badger.Open(badger.DefaultOptions(s.path).WithLogger(nil))
	if err != nil {
		return fmt.Errorf("failed to open badger at %s: %w", s.path, err)
	}
	s.db = db
	return nil
}

// Ping reports whether the database is open.
func (s *BadgerStore) Ping(_ context.Context) error {
	_, err := s.handle()
	return err
}

// Append stores msg and indexes its author in one transaction.
func (s *BadgerStore) Append(_ context.Context, msg chat.Message) error {
	db, err := s.handle()
	if err != nil {
		return fmt.Errorf("%w: %w", chat.ErrWriteFailed, err)
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", chat.ErrWriteFailed, err)
	}

	suffix, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("%w: %w", chat.ErrWriteFailed, err)
	}

	key := fmt.Sprintf("%s%019d:%s", messagePrefix, msg.CreatedAt.UnixNano(), suffix)
	err = db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), value); err != nil {
			return err
		}
		return txn.Set([]byte(authorPrefix+msg.Author), []byte{})
	})
	if err != nil {
		return fmt.Errorf("%w: %w", chat.ErrWriteFailed, err)
	}
	return nil
}

// Recent walks the message keys backwards from the newest.
func (s *BadgerStore) Recent(_ context.Context, limit int) ([]chat.Message, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	messages := make([]chat.Message, 0)
	if limit <= 0 {
		return messages, nil
	}

	err = db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seekKey := append([]byte(messagePrefix), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix) && len(messages) < limit; it.Next() {
			var msg chat.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return messages, nil
}

// ExistsAuthor checks the author index.
func (s *BadgerStore) ExistsAuthor(_ context.Context, name string) (bool, error) {
	db, err := s.handle()
	if err != nil {
		return false, err
	}

	exists := false
	err = db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(authorPrefix + name))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		case err != nil:
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to look up author: %w", err)
	}
	return exists, nil
}

// Close closes the database if it was opened.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

func (s *BadgerStore) handle() (*badger.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil || s.db.IsClosed() {
		return nil, errBadgerClosed
	}
	return s.db, nil
}
