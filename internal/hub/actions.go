package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/zhouzirui/chathub/internal/model/chat"
	"github.com/zhouzirui/chathub/internal/service/ai"
)

const maxNameLength = 64

var validate = validator.New()

// Connect registers a new unbound session. It receives broadcasts
// immediately but may not send until it joins.
func (h *Hub) Connect(ctx context.Context) (*Session, error) {
	s := newSession(h.opts.OutboxSize)
	if err := enqueue(ctx, h.done, h.register, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Disconnect removes s, releasing its name. It is safe to call more than
// once and after the hub has stopped.
func (h *Hub) Disconnect(s *Session) {
	_ = enqueue(context.Background(), h.done, h.unregister, s)
}

// Join binds name to s and announces it. When the joiner is the only
// participant a welcome from the assistant follows after the welcome delay.
func (h *Hub) Join(ctx context.Context, s *Session, name string) error {
	if err := validate.Var(name, fmt.Sprintf("required,max=%d", maxNameLength)); err != nil {
		_ = h.notify(ctx, s, fmt.Sprintf("Please choose a name between 1 and %d characters", maxNameLength))
		return fmt.Errorf("%w: invalid name: %w", chat.ErrInvalidAction, err)
	}

	reply := make(chan joinResult, 1)
	if err := enqueue(ctx, h.done, h.joins, joinRequest{session: s, name: name, reply: reply}); err != nil {
		return err
	}
	res, err := await(ctx, h.done, reply)
	if err != nil {
		return err
	}
	if !res.ok {
		return ErrSessionClosed
	}

	h.log.Info("participant joined", zap.String("name", name), zap.String("session", s.id), zap.Int("participants", res.size))

	if err := h.EnsureSentinel(ctx); err != nil {
		h.log.Error("failed to ensure assistant exists", zap.Error(err))
	}

	if err := h.emit(ctx, participantEvent(EventParticipantJoined, name)); err != nil {
		return err
	}

	if res.size == 1 {
		h.sched.After(h.opts.WelcomeDelay, func(ctx context.Context) {
			h.speak(ctx, h.assistant.Persona().WelcomeFor(name))
		})
	}
	return nil
}

// Send persists body under the session's name and broadcasts it followed by
// a refresh. The assistant's decision to reply is taken after the reply
// delay, against the registry as it is then.
func (h *Hub) Send(ctx context.Context, s *Session, body string) error {
	b, err := h.binding(ctx, s)
	if err != nil {
		return err
	}
	if !b.ok {
		return ErrSessionClosed
	}
	if !b.bound {
		_ = h.notify(ctx, s, "Please join the chat first")
		return fmt.Errorf("%w: send before join", chat.ErrInvalidAction)
	}

	msg := chat.NewMessage(b.name, body)
	msg.CreatedAt = time.Now().UTC()
	if err := h.store.Append(ctx, msg); err != nil {
		h.log.Error("failed to store message", zap.String("author", b.name), zap.Error(err))
		_ = h.notify(ctx, s, "Failed to send message: "+err.Error())
		return asWriteFailed(err)
	}

	if err := h.emit(ctx, messageEvent(msg)); err != nil {
		return err
	}
	if err := h.emit(ctx, refreshEvent()); err != nil {
		return err
	}

	h.sched.After(h.opts.ReplyDelay, func(ctx context.Context) {
		h.replyTo(ctx, msg)
	})
	return nil
}

// EnsureSentinel makes sure the assistant has at least one message in the
// store. Only the first successful call per process touches the store;
// calls made while another is in flight return immediately.
func (h *Hub) EnsureSentinel(ctx context.Context) (err error) {
	reply := make(chan bool, 1)
	if err := enqueue(ctx, h.done, h.seedClaims, reply); err != nil {
		return err
	}
	claimed, err := await(ctx, h.done, reply)
	if err != nil || !claimed {
		return err
	}

	defer func() {
		select {
		case h.seedResults <- err == nil:
		case <-h.done:
		}
	}()

	persona := h.assistant.Persona()
	exists, err := h.store.ExistsAuthor(ctx, persona.Name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := h.store.Append(ctx, chat.NewMessage(persona.Name, persona.Introduction)); err != nil {
		return err
	}
	h.log.Info("assistant added to message store", zap.String("name", persona.Name))
	return nil
}

// Notify delivers an error event to s alone.
func (h *Hub) Notify(ctx context.Context, s *Session, message string) error {
	return h.notify(ctx, s, message)
}

// Participants lists the connected display names.
func (h *Hub) Participants(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := enqueue(ctx, h.done, h.rosters, reply); err != nil {
		return nil, err
	}
	return await(ctx, h.done, reply)
}

func (h *Hub) replyTo(ctx context.Context, trigger chat.Message) {
	size, err := h.size(ctx)
	if err != nil {
		return
	}
	if !ai.ShouldRespond(size, trigger.Body) {
		h.log.Debug("assistant stays silent", zap.Uint32("message", trigger.ID), zap.Int("participants", size))
		return
	}

	h.speak(ctx, h.assistant.Generate(ctx, trigger.Body, trigger.Author))
}

// speak persists text as the assistant, then broadcasts it and a refresh.
func (h *Hub) speak(ctx context.Context, text string) {
	msg := chat.NewMessage(h.assistant.Persona().Name, text)
	msg.CreatedAt = time.Now().UTC()
	if err := h.store.Append(ctx, msg); err != nil {
		h.log.Error("failed to store assistant message", zap.Error(err))
		return
	}

	if err := h.emit(ctx, messageEvent(msg)); err != nil {
		return
	}
	_ = h.emit(ctx, refreshEvent())
}

func asWriteFailed(err error) error {
	if errors.Is(err, chat.ErrWriteFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", chat.ErrWriteFailed, err)
}
