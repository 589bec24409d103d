package anyllm

import (
	"slices"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/meetscribe/pkg/provider/llm"
)

// ── buildParams ───────────────────────────────────────────────────────────────

func TestBuildParams(t *testing.T) {
	p := &Provider{model: "claude-3-5-haiku-latest"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You summarize meetings.",
		Messages:     []llm.Message{{Role: "user", Content: "Summarize this."}},
		Temperature:  0.2,
		MaxTokens:    512,
	})

	if params.Model != "claude-3-5-haiku-latest" {
		t.Errorf("Model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first role = %q, want system", params.Messages[0].Role)
	}
	if params.Messages[1].Role != "user" {
		t.Errorf("second role = %q, want user", params.Messages[1].Role)
	}
	if params.Temperature == nil || *params.Temperature != 0.2 {
		t.Errorf("Temperature = %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 512 {
		t.Errorf("MaxTokens = %v", params.MaxTokens)
	}
}

func TestBuildParams_ZeroOptionalFields(t *testing.T) {
	p := &Provider{model: "llama3"}
	params := p.buildParams(llm.CompletionRequest{Messages: []llm.Message{{Role: "user", Content: "x"}}})
	if len(params.Messages) != 1 {
		t.Errorf("messages = %d, want 1 without system prompt", len(params.Messages))
	}
	if params.Temperature != nil || params.MaxTokens != nil {
		t.Error("zero Temperature/MaxTokens should be omitted")
	}
}

// ── modelCapabilities ─────────────────────────────────────────────────────────

func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model      string
		wantWindow int
		wantOutput int
	}{
		{"gpt-4o-mini", 128_000, 16_384},
		{"GPT-4O", 128_000, 16_384},
		{"gpt-4-turbo-preview", 128_000, 4_096},
		{"gpt-4", 8_192, 4_096},
		{"o1-mini", 128_000, 65_536},
		{"o3", 200_000, 100_000},
		{"claude-3-opus-20240229", 200_000, 4_096},
		{"claude-3-5-haiku-latest", 200_000, 8_192},
		{"claude-sonnet-4", 200_000, 8_192},
		{"gemini-1.5-pro", 2_097_152, 8_192},
		{"gemini-2.0-flash", 1_048_576, 8_192},
		{"gemini-exp", 128_000, 8_192},
		{"deepseek-chat", 64_000, 8_192},
		{"llama3.1:8b", 8_192, 2_048},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			caps := modelCapabilities(tt.model)
			if caps.ContextWindow != tt.wantWindow {
				t.Errorf("ContextWindow = %d, want %d", caps.ContextWindow, tt.wantWindow)
			}
			if caps.MaxOutputTokens != tt.wantOutput {
				t.Errorf("MaxOutputTokens = %d, want %d", caps.MaxOutputTokens, tt.wantOutput)
			}
		})
	}
}

// ── Constructor ───────────────────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
	}{
		{"empty provider", "", "gpt-4o"},
		{"empty model", "openai", ""},
		{"unsupported provider", "fakecloud", "some-model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.provider, tt.model, anyllmlib.WithAPIKey("dummy")); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNew_OpenAI_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New("openai", "gpt-4o"); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNew_Backends(t *testing.T) {
	tests := []struct {
		provider string
		opts     []anyllmlib.Option
	}{
		{"openai", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-test")}},
		{"Anthropic", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-ant-test")}},
		{"ollama", nil},
		{"llamacpp", nil},
		{"llamafile", nil},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := New(tt.provider, "some-model", tt.opts...)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if p.model != "some-model" {
				t.Errorf("model = %q", p.model)
			}
		})
	}
}

func TestBackends_Sorted(t *testing.T) {
	names := Backends()
	if len(names) != 9 {
		t.Errorf("backends = %d, want 9", len(names))
	}
	if !slices.IsSorted(names) {
		t.Errorf("not sorted: %v", names)
	}
}

func TestCountTokens(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	one, _ := p.CountTokens([]llm.Message{{Role: "user", Content: "Hello"}})
	two, _ := p.CountTokens([]llm.Message{
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi there, how can I help?"},
	})
	if one <= 0 || two <= one {
		t.Errorf("counts = %d, %d", one, two)
	}
	if zero, _ := p.CountTokens(nil); zero != 0 {
		t.Errorf("empty count = %d", zero)
	}
}
