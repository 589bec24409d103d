package phonetic_test

import (
	"testing"

	"github.com/MrWong99/meetscribe/internal/transcript/phonetic"
)

func TestMatcher_Match(t *testing.T) {
	t.Parallel()

	names := []string{"John", "Catherine", "Ada Lovelace"}
	tests := []struct {
		phrase string
		want   string
		ok     bool
	}{
		{"Jon", "John", true},
		{"Katherine", "Catherine", true},
		{"Ada Lovelase", "Ada Lovelace", true},
		{"JOHN", "John", true},
		{"budget", "budget", false},
		{"", "", false},
	}
	m := phonetic.New()
	for _, tc := range tests {
		t.Run(tc.phrase, func(t *testing.T) {
			got, score, ok := m.Match(tc.phrase, names)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("Match(%q) = %q, %v, want %q, %v", tc.phrase, got, ok, tc.want, tc.ok)
			}
			if ok && score < 0.8 {
				t.Errorf("score = %f, want >= 0.8", score)
			}
			if !ok && score != 0 {
				t.Errorf("score = %f, want 0 without a match", score)
			}
		})
	}
}

func TestMatcher_NoNames(t *testing.T) {
	t.Parallel()

	got, _, ok := phonetic.New().Match("Jon", nil)
	if ok || got != "Jon" {
		t.Errorf("Match with no names = %q, %v", got, ok)
	}
}

func TestMatcher_Thresholds(t *testing.T) {
	t.Parallel()

	strict := phonetic.New(phonetic.WithPhoneticThreshold(0.99), phonetic.WithFuzzyThreshold(0.99))
	if _, _, ok := strict.Match("Jon", []string{"John"}); ok {
		t.Error("strict matcher accepted Jon for John")
	}
	loose := phonetic.New(phonetic.WithPhoneticThreshold(0.5))
	if got, _, ok := loose.Match("Jon", []string{"John"}); !ok || got != "John" {
		t.Errorf("loose Match = %q, %v", got, ok)
	}
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	ns := phonetic.Prepare([]string{" Ada Lovelace ", "", "  ", "Grace"})
	if ns.Len() != 2 {
		t.Errorf("Len = %d, want 2", ns.Len())
	}
	if ns.MaxWords() != 2 {
		t.Errorf("MaxWords = %d, want 2", ns.MaxWords())
	}
	got, _, ok := phonetic.New().MatchPrepared("Ada Lovelace", ns)
	if !ok || got != "Ada Lovelace" {
		t.Errorf("MatchPrepared = %q, %v, want trimmed canonical name", got, ok)
	}
}
