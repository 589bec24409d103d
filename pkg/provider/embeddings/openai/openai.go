// Package openai embeds text through the OpenAI embeddings API or any server
// that speaks it, such as Ollama's /v1 endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/meetscribe/pkg/provider/embeddings"
)

// DefaultModel is used when no model is given.
const DefaultModel = oai.EmbeddingModelTextEmbedding3Small

var _ embeddings.Provider = (*Provider)(nil)

// knownDimensions maps model name fragments to their native vector length.
var knownDimensions = []struct {
	fragment string
	dims     int
}{
	{"text-embedding-3-large", 3072},
	{"text-embedding-3-small", 1536},
	{"text-embedding-ada-002", 1536},
	{"nomic-embed-text", 768},
	{"mxbai-embed-large", 1024},
	{"all-minilm", 384},
}

const fallbackDimensions = 1536

// Provider implements [embeddings.Provider].
type Provider struct {
	client oai.Client
	model  string

	// dims is non-zero when the caller fixed the vector length; it is then
	// also requested from the API.
	dims int
}

type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
	dims         int
}

// Option configures a [Provider].
type Option func(*config)

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithOrganization sets the OpenAI organization header.
func WithOrganization(org string) Option {
	return func(c *config) { c.organization = org }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithDimensions asks the model for vectors of length n. Only models that
// support shortening, like the text-embedding-3 family, honour it.
func WithDimensions(n int) Option {
	return func(c *config) { c.dims = n }
}

// New returns a Provider for model, or [DefaultModel] when model is empty.
// An API key is required unless a base URL is set.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	if apiKey == "" && cfg.baseURL == "" {
		return nil, errors.New("openai embeddings: api key must not be empty")
	}
	if cfg.dims < 0 {
		return nil, fmt.Errorf("openai embeddings: dimensions %d must not be negative", cfg.dims)
	}
	if model == "" {
		model = DefaultModel
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  model,
		dims:   cfg.dims,
	}, nil
}

// Embed implements [embeddings.Provider].
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	params := oai.EmbeddingNewParams{
		Model: p.model,
		Input: oai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
	}
	if p.dims > 0 {
		params.Dimensions = param.NewOpt(int64(p.dims))
	}
	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai embeddings: empty response")
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	if want := p.Dimensions(); len(vec) != want {
		return nil, fmt.Errorf("openai embeddings: model %s returned %d dimensions, want %d", p.model, len(vec), want)
	}
	return vec, nil
}

// Dimensions implements [embeddings.Provider].
func (p *Provider) Dimensions() int {
	if p.dims > 0 {
		return p.dims
	}
	return modelDimensions(p.model)
}

// ModelID implements [embeddings.Provider].
func (p *Provider) ModelID() string { return p.model }

func modelDimensions(model string) int {
	lower := strings.ToLower(model)
	for _, k := range knownDimensions {
		if strings.Contains(lower, k.fragment) {
			return k.dims
		}
	}
	return fallbackDimensions
}
