// Package mock provides a test double for [embeddings.Provider].
//
//	p := &mock.Provider{
//	    Vectors:         map[string][]float32{"budget": {1, 0, 0}},
//	    DimensionsValue: 3,
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/meetscribe/pkg/provider/embeddings"
)

var _ embeddings.Provider = (*Provider)(nil)

// Provider returns scripted vectors. Safe for concurrent use.
type Provider struct {
	// Vectors maps an exact input text to its vector.
	Vectors map[string][]float32

	// EmbedFunc, when set, is used for texts missing from Vectors.
	EmbedFunc func(text string) []float32

	// EmbedErr is returned by every Embed call when non-nil.
	EmbedErr error

	DimensionsValue int
	ModelIDValue    string

	mu    sync.Mutex
	calls []string
}

// Embed implements [embeddings.Provider]. Texts with no scripted vector get
// a zero vector of DimensionsValue length.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.calls = append(p.calls, text)
	p.mu.Unlock()

	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	if v, ok := p.Vectors[text]; ok {
		return v, nil
	}
	if p.EmbedFunc != nil {
		return p.EmbedFunc(text), nil
	}
	return make([]float32, p.DimensionsValue), nil
}

// Dimensions implements [embeddings.Provider].
func (p *Provider) Dimensions() int { return p.DimensionsValue }

// ModelID implements [embeddings.Provider].
func (p *Provider) ModelID() string {
	if p.ModelIDValue == "" {
		return "mock-embed"
	}
	return p.ModelIDValue
}

// Calls returns the texts passed to Embed, in order.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}
