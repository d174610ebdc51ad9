// Package hub coordinates participants, persistence and the automated
// assistant for the shared chat.
//
// A single control goroutine (Run) owns the participant registry, the
// sentinel flags, the set of connected sessions and every write to a
// session outbox. Store and model I/O happen on the calling session's
// goroutine or on deferred task goroutines, which talk to the control
// goroutine only through channels.
package hub

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/chathub/internal/service/ai"
	"github.com/zhouzirui/chathub/internal/service/presence"
	"github.com/zhouzirui/chathub/internal/store"
)

var (
	// ErrStopped is returned once Run has exited.
	ErrStopped = errors.New("hub stopped")
	// ErrSessionClosed is returned for actions on a disconnected session.
	ErrSessionClosed = errors.New("session closed")
)

// Assistant is the automated participant.
type Assistant interface {
	Persona() ai.Persona
	Generate(ctx context.Context, body, author string) string
}

// Options tunes the hub's timings and buffers.
type Options struct {
	ReplyDelay   time.Duration
	WelcomeDelay time.Duration
	// OutboxSize bounds undelivered events per session; a session that
	// falls this far behind is dropped.
	OutboxSize int
}

// DefaultOptions matches the one second pauses of the original chat.
func DefaultOptions() Options {
	return Options{
		ReplyDelay:   time.Second,
		WelcomeDelay: time.Second,
		OutboxSize:   256,
	}
}

type delivery struct {
	to    *Session // nil means every session
	event Event
}

type joinRequest struct {
	session *Session
	name    string
	reply   chan joinResult
}

type joinResult struct {
	size int
	ok   bool
}

type binding struct {
	name  string
	bound bool
	ok    bool
}

type bindingQuery struct {
	session *Session
	reply   chan binding
}

// Hub is the coordination core.
type Hub struct {
	store     store.Store
	assistant Assistant
	opts      Options
	log       *zap.Logger
	sched     *scheduler

	register    chan *Session
	unregister  chan *Session
	joins       chan joinRequest
	bindings    chan bindingQuery
	outbound    chan delivery
	sizes       chan chan int
	rosters     chan chan []string
	seedClaims  chan chan bool
	seedResults chan bool
	done        chan struct{}

	// owned by Run
	sessions map[*Session]struct{}
	registry *presence.Registry
	seeded   bool
	seeding  bool
}

// New wires a hub. Nothing happens until Run is started.
func New(st store.Store, assistant Assistant, opts Options, log *zap.Logger) *Hub {
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = DefaultOptions().OutboxSize
	}
	return &Hub{
		store:       st,
		assistant:   assistant,
		opts:        opts,
		log:         log,
		sched:       newScheduler(),
		register:    make(chan *Session),
		unregister:  make(chan *Session),
		joins:       make(chan joinRequest),
		bindings:    make(chan bindingQuery),
		outbound:    make(chan delivery),
		sizes:       make(chan chan int),
		rosters:     make(chan chan []string),
		seedClaims:  make(chan chan bool),
		seedResults: make(chan bool),
		done:        make(chan struct{}),
		sessions:    make(map[*Session]struct{}),
		registry:    presence.NewRegistry(),
	}
}

// Run processes hub events until ctx is cancelled. On exit pending deferred
// tasks are cancelled and every session outbox is closed.
func (h *Hub) Run(ctx context.Context) error {
	h.log.Info("hub started")
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return nil
		case s := <-h.register:
			h.sessions[s] = struct{}{}
			h.log.Debug("session connected", zap.String("session", s.id), zap.Int("sessions", len(h.sessions)))
		case s := <-h.unregister:
			h.drop(s)
		case req := <-h.joins:
			req.reply <- h.bind(req.session, req.name)
		case q := <-h.bindings:
			_, ok := h.sessions[q.session]
			q.reply <- binding{name: q.session.name, bound: q.session.bound, ok: ok}
		case d := <-h.outbound:
			h.deliver(d)
		case reply := <-h.sizes:
			reply <- h.registry.Size()
		case reply := <-h.rosters:
			reply <- h.registry.Names()
		case reply := <-h.seedClaims:
			claimed := !h.seeded && !h.seeding
			if claimed {
				h.seeding = true
			}
			reply <- claimed
		case ok := <-h.seedResults:
			h.seeding = false
			h.seeded = h.seeded || ok
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	h.sched.Stop()
	for s := range h.sessions {
		delete(h.sessions, s)
		close(s.out)
	}
	h.log.Info("hub stopped")
}

// bind attaches name to s. A session that was already bound releases its
// previous name first.
func (h *Hub) bind(s *Session, name string) joinResult {
	if _, ok := h.sessions[s]; !ok {
		return joinResult{}
	}

	if s.bound && s.name != name {
		h.registry.Leave(s.name)
		h.broadcast(participantEvent(EventParticipantLeft, s.name))
	}

	s.name = name
	s.bound = true
	h.registry.Join(name)
	return joinResult{size: h.registry.Size(), ok: true}
}

// drop removes s, closing its outbox. Bound sessions release their name.
func (h *Hub) drop(s *Session) {
	if _, ok := h.sessions[s]; !ok {
		return
	}
	delete(h.sessions, s)
	close(s.out)

	if s.bound {
		h.registry.Leave(s.name)
		h.log.Info("participant left", zap.String("name", s.name), zap.Int("participants", h.registry.Size()))
		h.broadcast(participantEvent(EventParticipantLeft, s.name))
	}
	h.log.Debug("session disconnected", zap.String("session", s.id), zap.Int("sessions", len(h.sessions)))
}

func (h *Hub) deliver(d delivery) {
	if d.to != nil {
		if _, ok := h.sessions[d.to]; ok {
			h.push(d.to, d.event)
		}
		return
	}
	h.broadcast(d.event)
}

func (h *Hub) broadcast(ev Event) {
	var slow []*Session
	for s := range h.sessions {
		if !h.tryPush(s, ev) {
			slow = append(slow, s)
		}
	}
	for _, s := range slow {
		h.log.Warn("dropping slow session", zap.String("session", s.id), zap.String("name", s.name))
		h.drop(s)
	}
}

func (h *Hub) push(s *Session, ev Event) {
	if !h.tryPush(s, ev) {
		h.log.Warn("dropping slow session", zap.String("session", s.id), zap.String("name", s.name))
		h.drop(s)
	}
}

func (h *Hub) tryPush(s *Session, ev Event) bool {
	select {
	case s.out <- ev:
		return true
	default:
		return false
	}
}

// enqueue hands v to the control goroutine.
func enqueue[T any](ctx context.Context, done <-chan struct{}, ch chan<- T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrStopped
	}
}

// await waits for the control goroutine's answer.
func await[T any](ctx context.Context, done <-chan struct{}, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-done:
		return zero, ErrStopped
	}
}

func (h *Hub) emit(ctx context.Context, ev Event) error {
	return enqueue(ctx, h.done, h.outbound, delivery{event: ev})
}

func (h *Hub) notify(ctx context.Context, s *Session, message string) error {
	return enqueue(ctx, h.done, h.outbound, delivery{to: s, event: errorEvent(message)})
}

func (h *Hub) size(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	if err := enqueue(ctx, h.done, h.sizes, reply); err != nil {
		return 0, err
	}
	return await(ctx, h.done, reply)
}

func (h *Hub) binding(ctx context.Context, s *Session) (binding, error) {
	reply := make(chan binding, 1)
	if err := enqueue(ctx, h.done, h.bindings, bindingQuery{session: s, reply: reply}); err != nil {
		return binding{}, err
	}
	return await(ctx, h.done, reply)
}
