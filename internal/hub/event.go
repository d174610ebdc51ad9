package hub

import (
	"time"

	"github.com/zhouzirui/chathub/internal/model/chat"
)

// EventType names an outbound event.
type EventType string

const (
	EventParticipantJoined EventType = "participant-joined"
	EventParticipantLeft   EventType = "participant-left"
	EventMessage           EventType = "message"
	// EventRefresh tells clients to re-fetch recent history.
	EventRefresh EventType = "refresh"
	// EventError only ever goes to the connection that caused it.
	EventError EventType = "error"
)

// Event is the outbound envelope written to every transport.
type Event struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// ParticipantPayload carries a joined or departed name.
type ParticipantPayload struct {
	Name string `json:"name"`
}

// MessagePayload is a chat line as broadcast to clients.
type MessagePayload struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload is delivered to a single connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

func newEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now().Unix()}
}

func participantEvent(t EventType, name string) Event {
	return newEvent(t, ParticipantPayload{Name: name})
}

func messageEvent(msg chat.Message) Event {
	return newEvent(EventMessage, MessagePayload{
		Author:    msg.Author,
		Body:      msg.Body,
		Timestamp: msg.CreatedAt,
	})
}

func refreshEvent() Event {
	return newEvent(EventRefresh, nil)
}

func errorEvent(message string) Event {
	return newEvent(EventError, ErrorPayload{Message: message})
}
