package summarize

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/meetscribe/pkg/provider/llm"
	llmmock "github.com/MrWong99/meetscribe/pkg/provider/llm/mock"
	"github.com/MrWong99/meetscribe/pkg/types"
)

const transcript = "Welcome everyone. Today we plan the Q3 launch. Alice owns the landing page. " +
	"Bob will draft the press release by Friday. We agreed to ship on the 15th. Thanks all."

// respondBySection answers each of the three prompts differently.
func respondBySection(overview, keyPoints, actions string, errs map[string]error) func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		var section, content string
		switch req.SystemPrompt {
		case summaryPrompt:
			section, content = "overview", overview
		case keyPointsPrompt:
			section, content = "key_points", keyPoints
		case actionItemsPrompt:
			section, content = "actions", actions
		}
		if err := errs[section]; err != nil {
			return nil, err
		}
		return &llm.CompletionResponse{Content: content}, nil
	}
}

func TestLLMSummarizer_Summarize(t *testing.T) {
	p := &llmmock.Provider{
		Respond: respondBySection(
			"The team planned the Q3 launch.",
			"**Key Points:**\n- Q3 launch planning\n• Ship date set for the 15th\n- ok",
			"1. Alice: build the landing page\n2) Bob: draft the press release by Friday",
			nil,
		),
	}
	s := NewLLMSummarizer(p)

	got, err := s.Summarize(context.Background(), transcript, []string{"Alice", "Bob"})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	want := &types.Summary{
		Summary:     "The team planned the Q3 launch.",
		KeyPoints:   []string{"Q3 launch planning", "Ship date set for the 15th"},
		ActionItems: []string{"Alice: build the landing page", "Bob: draft the press release by Friday"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Summarize =\n%+v\nwant\n%+v", got, want)
	}

	calls := p.Calls()
	if len(calls) != 3 {
		t.Fatalf("Complete calls = %d, want 3", len(calls))
	}
	for _, c := range calls {
		content := c.Req.Messages[0].Content
		if !strings.Contains(content, "Participants: Alice, Bob") {
			t.Errorf("prompt missing participants: %q", content)
		}
		if !strings.Contains(content, "Bob will draft the press release") {
			t.Errorf("prompt missing transcript: %q", content)
		}
	}
}

func TestLLMSummarizer_OverviewFailureIsError(t *testing.T) {
	p := &llmmock.Provider{
		Respond: respondBySection("", "- a key point", "- an action", map[string]error{
			"overview": errors.New("model overloaded"),
		}),
	}
	_, err := NewLLMSummarizer(p).Summarize(context.Background(), transcript, nil)
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("err = %v, want wrapped model error", err)
	}
}

func TestLLMSummarizer_ListFailuresDegrade(t *testing.T) {
	p := &llmmock.Provider{
		Respond: respondBySection("Short overview here.", "", "", map[string]error{
			"key_points": errors.New("timeout"),
			"actions":    errors.New("timeout"),
		}),
	}
	got, err := NewLLMSummarizer(p).Summarize(context.Background(), transcript, nil)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got.Summary != "Short overview here." {
		t.Errorf("Summary = %q", got.Summary)
	}
	if got.KeyPoints == nil || len(got.KeyPoints) != 0 || got.ActionItems == nil || len(got.ActionItems) != 0 {
		t.Errorf("lists = %#v / %#v, want empty non-nil", got.KeyPoints, got.ActionItems)
	}
}

func TestLLMSummarizer_CopiedOverviewFallsBackToExtractive(t *testing.T) {
	p := &llmmock.Provider{Respond: respondBySection(transcript, "", "", nil)}
	got, err := NewLLMSummarizer(p).Summarize(context.Background(), transcript, nil)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got.Summary != Extractive(transcript) {
		t.Errorf("Summary = %q, want extractive fallback", got.Summary)
	}
}

func TestLLMSummarizer_EmptyTranscript(t *testing.T) {
	p := &llmmock.Provider{}
	if _, err := NewLLMSummarizer(p).Summarize(context.Background(), "  \n", nil); !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("err = %v, want ErrEmptyTranscript", err)
	}
	if len(p.Calls()) != 0 {
		t.Error("no LLM calls expected for empty transcript")
	}
}

func TestLLMSummarizer_ElidesLongTranscript(t *testing.T) {
	var maxLen atomic.Int64
	p := &llmmock.Provider{
		ModelCapabilities: llm.ModelCapabilities{ContextWindow: 2_000, MaxOutputTokens: 1_000},
		Respond: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			if n := int64(len(req.Messages[0].Content)); n > maxLen.Load() {
				maxLen.Store(n)
			}
			return &llm.CompletionResponse{Content: "- fine item"}, nil
		},
	}
	long := strings.Repeat("We discussed the budget again. ", 1_000) // ~31k chars
	if _, err := NewLLMSummarizer(p, WithMaxTokens(500)).Summarize(context.Background(), long, nil); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	// budget = 2000 - 500 - 256 = 1244 tokens ≈ 5k chars
	if got := maxLen.Load(); got > 6_000 || got == 0 {
		t.Errorf("largest prompt = %d chars, want it elided to fit the window", got)
	}
}

func TestParseBullets(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{"dash and bullet", "- first item\n• second item", 10, []string{"first item", "second item"}},
		{"star and numbers", "* starred item\n1. numbered one\n12) numbered two", 10, []string{"starred item", "numbered one", "numbered two"}},
		{"prose ignored", "Here are the items:\n- real item\nThat is all.", 10, []string{"real item"}},
		{"short dropped", "- ok\n- yes!\n- sixsix", 10, []string{"sixsix"}},
		{"bold stripped", "- **Owner:** Alice", 10, []string{"Owner: Alice"}},
		{"limit", "- item one\n- item two\n- item three", 2, []string{"item one", "item two"}},
		{"empty", "", 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseBullets(tt.in, tt.limit); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseBullets = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractive(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"One. Two", "One. Two."},
		{"A1. B2. C3. D4. E5", "A1. C3. E5."},
	}
	for _, tt := range tests {
		if got := Extractive(tt.in); got != tt.want {
			t.Errorf("Extractive(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestElideMiddle(t *testing.T) {
	got := elideMiddle("ääääääää", 5) // 16 bytes, multi-byte runes
	if !strings.Contains(got, "[...]") {
		t.Fatalf("elideMiddle = %q, want marker", got)
	}
	for _, part := range strings.Split(got, "\n[...]\n") {
		if !strings.HasPrefix(part, "ä") && part != "" {
			t.Errorf("cut mid-rune: %q", part)
		}
	}
	if got := elideMiddle("short", 100); got != "short" {
		t.Errorf("elideMiddle short = %q", got)
	}
}
