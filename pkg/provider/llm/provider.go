// Package llm defines the Provider interface for Large Language Model backends.
//
// The meeting summarizer sends one prompt per summary section (overview, key
// points, action items) and needs nothing beyond a blocking completion, a
// token estimate to keep long transcripts inside the context window, and the
// model's limits. Implementations wrap a remote or local API (OpenAI, any
// OpenAI-compatible server, or the providers behind any-llm-go).
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Usage holds token accounting returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. For summaries this is a single
	// user message holding the prompt and transcript.
	Messages []Message

	// SystemPrompt is injected ahead of Messages. Providers without a native
	// system field prepend it as a "system" message.
	SystemPrompt string

	// Temperature in [0.0, 2.0]. Zero leaves the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero uses the provider default.
	MaxTokens int
}

// CompletionResponse is the full reply to a CompletionRequest.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req and waits for the full response. It returns promptly
	// with an error when ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates the context-window cost of messages. The estimate
	// should not undercount.
	CountTokens(messages []Message) (int, error)

	// Capabilities returns static limits of the underlying model.
	Capabilities() ModelCapabilities
}
