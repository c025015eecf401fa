package llm

import (
	"context"
)

// Provider generates free-text completions. Evaluation reports are plain
// text, so providers never ask for structured output.
type Provider interface {
	// Generate sends the prompt and returns the model's text reply. An empty
	// reply is an *ErrInvalidResponse.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	// System is the system prompt. Sets the LLM's role and constraints.
	System string

	// Messages is the conversation. An evaluation sends one user message
	// holding every question with its transcribed answer.
	Messages []Message

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0.
	// Zero leaves the provider default in place.
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Stop reasons reported in Response.StopReason.
const (
	StopEnd       = "end"
	StopMaxTokens = "max_tokens"
)

// Response holds the LLM's output.
type Response struct {
	// Text is the reply, trimmed of surrounding whitespace.
	Text string

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason is StopEnd or StopMaxTokens. A report cut at the token
	// limit is still returned.
	StopReason string
}

// Truncated reports whether generation stopped at the token limit.
func (r *Response) Truncated() bool {
	return r.StopReason == StopMaxTokens
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
