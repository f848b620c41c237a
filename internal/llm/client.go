// Package llm provides a thin chat-completion abstraction over the model
// provider used for extraction, correction, construct generation and pattern
// discovery.
package llm

import "context"

// Message is one chat message sent to the model.
type Message struct {
	Role    string
	Content string
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request describes a single chat completion call.
type Request struct {
	SystemPrompt string
	Messages     []Message
	Temperature  float64
	MaxTokens    int64
	// ForceJSON requests a JSON-object response format from the provider.
	ForceJSON bool
}

// Client defines the interface for chat completions.
type Client interface {
	// Complete performs one chat completion and returns the raw assistant text.
	Complete(ctx context.Context, req Request) (string, error)
}
