// Package llm is a small provider-neutral layer over the Anthropic, OpenAI
// and Gemini SDKs. Callers build a Request, optionally with a JSON Schema,
// and get back JSON that has already been validated against it.
package llm

import (
	"context"
	"encoding/json"
)

// Provider generates a completion for a Request.
type Provider interface {
	// Generate sends req to the model. When req.Schema is set the returned
	// Content is a JSON value that conforms to it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Name is the provider family, e.g. "anthropic".
	Name() string

	// ModelID is the model the provider sends requests to.
	ModelID() string
}

// Request is a single generation call.
type Request struct {
	System   string
	Messages []Message

	// Schema, when non-nil, switches the provider to its native
	// structured-output mode. Without it Content holds the raw text.
	Schema *Schema

	MaxTokens int

	// Temperature in [0, 1]. Zero leaves the provider default.
	Temperature float64
}

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserMessage is a shorthand for a single user turn.
func UserMessage(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}

// Schema is a named JSON Schema for structured output.
type Schema struct {
	// Name is kebab-case, e.g. "concept-hint". Anthropic and OpenAI use
	// it as the format name; it is also the validation cache key.
	Name        string
	Description string
	Definition  map[string]any
}

// Response is the provider output.
type Response struct {
	Content json.RawMessage
	Usage   Usage
	Model   string

	// StopReason is normalized to "end" or "max_tokens".
	StopReason string
}

// Usage is the token accounting for one request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
