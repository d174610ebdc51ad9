package hub

import "github.com/google/uuid"

// Session is one connected transport. Its outbox is written only by the
// hub's control goroutine and closed when the session is dropped.
type Session struct {
	id  string
	out chan Event

	// owned by the control goroutine
	name  string
	bound bool
}

func newSession(outboxSize int) *Session {
	return &Session{
		id:  uuid.NewString(),
		out: make(chan Event, outboxSize),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// Events yields everything addressed to this session. The channel is closed
// once the session is disconnected or the hub stops.
func (s *Session) Events() <-chan Event {
	return s.out
}
