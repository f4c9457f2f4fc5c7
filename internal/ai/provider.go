package ai

import "context"

// Message is a provider-agnostic chat message.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// Provider is the interface that any completion backend must implement.
type Provider interface {
	// Complete sends a list of messages and returns the assistant's full
	// response text.
	Complete(ctx context.Context, messages []Message) (string, error)
}
