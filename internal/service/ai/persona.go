package ai

import (
	"fmt"

	"github.com/zhouzirui/chathub/internal/model/chat"
)

// Persona holds every canned text the assistant speaks or is prompted with.
type Persona struct {
	Name         string
	SystemPrompt string
	// Introduction is the first message ever written under Name in a store.
	Introduction string
	// Welcome is formatted with the joining participant's name.
	Welcome  string
	Fallback string
}

// DefaultPersona is the "AI Assistant" participant.
func DefaultPersona() Persona {
	return Persona{
		Name: chat.AssistantName,
		SystemPrompt: "You are an AI assistant named 'AI Assistant' in a chat application. " +
			"Respond in a friendly, helpful, and concise manner. " +
			"Keep responses to 1-2 short paragraphs maximum.",
		Introduction: "Hello everyone! I am the AI Assistant. I can respond to your messages " +
			"when asked directly or when you are the only one in the chat.",
		Welcome: "Hello %s! I'm the AI Assistant. Since you're the only one here, I'll respond to all " +
			"your messages. If more users join, I'll only respond when you ask me directly.",
		Fallback: "Sorry, I'm having trouble processing your request right now.",
	}
}

// WelcomeFor renders the welcome line for a participant who joined alone.
func (p Persona) WelcomeFor(name string) string {
	return fmt.Sprintf(p.Welcome, name)
}
