// Package llm provides the text-completion capability behind a single
// interface. Provider variants (Anthropic, OpenAI, Azure OpenAI, Gemini)
// are selected once at configuration time; callers never dispatch on the
// provider again.
package llm

import "context"

// Role constants for conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the text-completion capability. Implementations send the
// system prompt plus the message history and return the raw reply text.
type Client interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}

// UserTurn is a convenience constructor for a single user message slice.
func UserTurn(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}
