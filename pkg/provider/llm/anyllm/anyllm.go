// Package anyllm provides a multi-vendor LLM provider backed by
// github.com/mozilla-ai/any-llm-go. It lets the summarizer run against
// Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, llama.cpp, llamafile or
// OpenAI with one configuration switch.
//
// Usage:
//
//	p, err := anyllm.New("anthropic", "claude-3-5-haiku-latest", anyllmlib.WithAPIKey("sk-ant-..."))
//	p, err := anyllm.New("ollama", "llama3.1:8b")
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/meetscribe/pkg/provider/llm"
)

// backends maps provider names to any-llm-go constructors. Without an API key
// option each constructor falls back to its vendor's environment variable
// (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
var backends = map[string]func(...anyllmlib.Option) (anyllmlib.Provider, error){
	"openai":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anyllmoai.New(o...) },
	"anthropic": func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anthropic.New(o...) },
	"gemini":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return gemini.New(o...) },
	"ollama":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return ollama.New(o...) },
	"deepseek":  func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return deepseek.New(o...) },
	"mistral":   func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return mistral.New(o...) },
	"groq":      func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return groq.New(o...) },
	"llamacpp":  func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return llamacpp.New(o...) },
	"llamafile": func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return llamafile.New(o...) },
}

// Backends returns the supported provider names in sorted order.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Provider implements llm.Provider by wrapping an any-llm-go backend.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

var _ llm.Provider = (*Provider)(nil)

// New creates a Provider for the named backend (see [Backends]) and model.
func New(providerName string, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, errors.New("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, errors.New("anyllm: model must not be empty")
	}
	factory, ok := backends[strings.ToLower(providerName)]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported provider %q; supported: %s",
			providerName, strings.Join(Backends(), ", "))
	}
	backend, err := factory(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}
	return &Provider{backend: backend, model: model}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anyllm: no messages")
	}

	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("anyllm: empty choices in response")
	}

	result := &llm.CompletionResponse{
		Content: resp.Choices[0].Message.ContentString(),
	}
	if resp.Usage != nil {
		result.Usage = llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return result, nil
}

// CountTokens implements llm.Provider with the character-based estimate.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	return llm.EstimateTokens(messages), nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return modelCapabilities(p.model)
}

func (p *Provider) buildParams(req llm.CompletionRequest) anyllmlib.CompletionParams {
	messages := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, anyllmlib.Message{Role: m.Role, Content: m.Content})
	}

	params := anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: messages,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	return params
}

// capabilityRule matches a model family by substring.
type capabilityRule struct {
	match string
	caps  llm.ModelCapabilities
}

// capabilityRules is ordered most specific first.
var capabilityRules = []capabilityRule{
	{"gpt-4.1", llm.ModelCapabilities{ContextWindow: 1_047_576, MaxOutputTokens: 32_768}},
	{"gpt-4o", llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384}},
	{"gpt-4-turbo", llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}},
	{"gpt-4", llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 4_096}},
	{"gpt-3.5-turbo", llm.ModelCapabilities{ContextWindow: 16_385, MaxOutputTokens: 4_096}},
	{"o1-mini", llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 65_536}},
	{"claude-3-opus", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 4_096}},
	{"claude", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 8_192}},
	{"gemini-1.5-pro", llm.ModelCapabilities{ContextWindow: 2_097_152, MaxOutputTokens: 8_192}},
	{"gemini-1.5-flash", llm.ModelCapabilities{ContextWindow: 1_048_576, MaxOutputTokens: 8_192}},
	{"gemini-2", llm.ModelCapabilities{ContextWindow: 1_048_576, MaxOutputTokens: 8_192}},
	{"gemini", llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 8_192}},
	{"deepseek", llm.ModelCapabilities{ContextWindow: 64_000, MaxOutputTokens: 8_192}},
	{"mistral", llm.ModelCapabilities{ContextWindow: 32_000, MaxOutputTokens: 8_192}},
}

// modelCapabilities looks up known model families. o-series names are matched
// by prefix since "o1"/"o3" appear inside unrelated names. Unknown models get a
// conservative 8k window, which suits small local models.
func modelCapabilities(model string) llm.ModelCapabilities {
	lower := strings.ToLower(model)
	for _, r := range capabilityRules {
		if strings.Contains(lower, r.match) {
			return r.caps
		}
	}
	for _, prefix := range []string{"o1", "o3", "o4"} {
		if strings.HasPrefix(lower, prefix) {
			return llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000}
		}
	}
	return llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 2_048}
}
