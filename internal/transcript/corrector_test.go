package transcript_test

import (
	"testing"

	"github.com/MrWong99/meetscribe/internal/transcript"
)

func TestCorrector_Correct(t *testing.T) {
	t.Parallel()

	names := []string{"John", "Catherine", "Ada Lovelace"}
	tests := []struct {
		name  string
		text  string
		want  string
		fixes int
	}{
		{"single word", "Thanks Jon, let's start.", "Thanks John, let's start.", 1},
		{"possessive kept", "That was Jon's idea.", "That was John's idea.", 1},
		{"multi-word name", "Ada Lovelase presented.\nKatherine agreed.", "Ada Lovelace presented.\nCatherine agreed.", 2},
		{"already correct", "John and Catherine met.", "John and Catherine met.", 0},
		{"lowercase ignored", "the jon boat", "the jon boat", 0},
		{"ordinary words", "Great work on the budget.", "Great work on the budget.", 0},
		{"empty", "", "", 0},
	}
	c := transcript.New()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, fixes := c.Correct(tc.text, names)
			if got != tc.want {
				t.Errorf("Correct(%q) = %q, want %q", tc.text, got, tc.want)
			}
			if len(fixes) != tc.fixes {
				t.Errorf("corrections = %+v, want %d", fixes, tc.fixes)
			}
		})
	}
}

func TestCorrector_Details(t *testing.T) {
	t.Parallel()

	_, fixes := transcript.New().Correct("Hi Jon", []string{"John"})
	if len(fixes) != 1 {
		t.Fatalf("corrections = %+v", fixes)
	}
	if fixes[0].Original != "Jon" || fixes[0].Corrected != "John" || fixes[0].Score <= 0 {
		t.Errorf("correction = %+v", fixes[0])
	}
}

func TestCorrector_NoNames(t *testing.T) {
	t.Parallel()

	text := "Jon spoke."
	got, fixes := transcript.New().Correct(text, nil)
	if got != text || fixes != nil {
		t.Errorf("Correct without names = %q, %v", got, fixes)
	}
}

func TestCorrector_MinLength(t *testing.T) {
	t.Parallel()

	c := transcript.New(transcript.WithMinLength(5))
	if got, _ := c.Correct("Hi Jon", []string{"John"}); got != "Hi Jon" {
		t.Errorf("short phrase corrected: %q", got)
	}
}
