package chat

import (
	"time"

	"github.com/google/uuid"
)

// AssistantName is the author name of the automated participant.
const AssistantName = "AI Assistant"

// Message is one immutable line of the shared conversation.
type Message struct {
	ID        uint32    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMessage stamps a message with a writer-generated id. Ids are random
// 32-bit values and may collide.
func NewMessage(author, body string) Message {
	return Message{
		ID:     uuid.New().ID(),
		Author: author,
		Body:   body,
	}
}
