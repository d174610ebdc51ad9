package ai

import "strings"

// triggers are matched as plain substrings, so "said" or "main" also match "ai".
var triggers = []string{"ai", "assistant", "@ai"}

// ShouldRespond decides whether the assistant replies to body given how many
// distinct humans are connected.
func ShouldRespond(registrySize int, body string) bool {
	if registrySize == 1 {
		return true
	}

	lower := strings.ToLower(body)
	for _, trigger := range triggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}

// Triggers lists the words that make the assistant reply in a busy room.
func Triggers() []string {
	return append([]string(nil), triggers...)
}
