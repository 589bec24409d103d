package postgres

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/MrWong99/meetscribe/pkg/types"
)

func TestEmbedText(t *testing.T) {
	rec := &types.MeetingRecord{
		Title:      "Planning",
		Transcript: "we agreed on scope",
		Summary:    &types.Summary{Summary: "Scope fixed.", KeyPoints: []string{"scope", "dates"}},
	}
	want := "Planning\nScope fixed.\nscope\ndates\nwe agreed on scope"
	if got := embedText(rec); got != want {
		t.Errorf("embedText = %q, want %q", got, want)
	}

	if got := embedText(&types.MeetingRecord{}); got != "" {
		t.Errorf("embedText(empty) = %q", got)
	}

	long := &types.MeetingRecord{Title: "Long", Transcript: strings.Repeat("é", maxEmbedRunes*2)}
	got := embedText(long)
	if n := utf8.RuneCountInString(got); n != maxEmbedRunes {
		t.Errorf("embedText rune count = %d, want %d", n, maxEmbedRunes)
	}
	if !strings.HasPrefix(got, "Long\n") {
		t.Errorf("title not kept first: %q", got[:10])
	}
}
