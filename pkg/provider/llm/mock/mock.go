// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify the prompts the summarizer sends and to
// feed controlled responses without a live LLM backend. Set fields before the
// first call; mutating them during a concurrent call is the caller's
// responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    CompleteResponse: &llm.CompletionResponse{Content: "- Ship on Friday"},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/meetscribe/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider. Zero values make methods
// return zero values and nil errors.
type Provider struct {
	mu sync.Mutex

	// ─── configurable responses ───

	// Respond, when set, computes the result of Complete and takes precedence
	// over CompleteResponse and CompleteErr. It runs without the mock's lock
	// held, so it may block on ctx.
	Respond func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// CompleteResponse is returned by Complete. May be nil.
	CompleteResponse *llm.CompletionResponse

	// CompleteErr, if non-nil, is returned as the error from Complete.
	CompleteErr error

	// TokenCount is returned by CountTokens. Zero falls back to
	// llm.EstimateTokens.
	TokenCount int

	// CountTokensErr, if non-nil, is returned as the error from CountTokens.
	CountTokensErr error

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities llm.ModelCapabilities

	// ─── call records ───

	CompleteCalls         []CompleteCall
	CountTokensCalls      [][]llm.Message
	CapabilitiesCallCount int
}

// Complete records the call and returns Respond's result, or CompleteResponse
// and CompleteErr.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	respond := p.Respond
	resp, err := p.CompleteResponse, p.CompleteErr
	p.mu.Unlock()

	if respond != nil {
		return respond(ctx, req)
	}
	return resp, err
}

// CountTokens records the call and returns TokenCount, CountTokensErr.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CountTokensCalls = append(p.CountTokensCalls, append([]llm.Message(nil), messages...))
	if p.CountTokensErr != nil {
		return 0, p.CountTokensErr
	}
	if p.TokenCount > 0 {
		return p.TokenCount, nil
	}
	return llm.EstimateTokens(messages), nil
}

// Capabilities records the call and returns ModelCapabilities.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CapabilitiesCallCount++
	return p.ModelCapabilities
}

// Calls returns a snapshot of the recorded Complete calls.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]CompleteCall(nil), p.CompleteCalls...)
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
	p.CountTokensCalls = nil
	p.CapabilitiesCallCount = 0
}

var _ llm.Provider = (*Provider)(nil)
