// Package transcript repairs participant names that speech-to-text engines
// misspell. Only capitalized words are candidates; punctuation, line breaks
// and the rest of the text are left exactly as transcribed.
package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/meetscribe/internal/transcript/phonetic"
)

const defaultMinLength = 3

// Correction records one substitution.
type Correction struct {
	Original  string  `json:"original"`
	Corrected string  `json:"corrected"`
	Score     float64 `json:"score"`
}

// Option configures a [Corrector].
type Option func(*Corrector)

// WithMatcher replaces the default [phonetic.Matcher].
func WithMatcher(m *phonetic.Matcher) Option {
	return func(c *Corrector) { c.matcher = m }
}

// WithMinLength sets the shortest phrase, in runes, considered for
// correction. Default 3.
func WithMinLength(n int) Option {
	return func(c *Corrector) { c.minLength = n }
}

// Corrector aligns misheard names with the meeting's participant list. It is
// safe for concurrent use.
type Corrector struct {
	matcher   *phonetic.Matcher
	minLength int
}

// New returns a Corrector backed by a default [phonetic.Matcher].
func New(opts ...Option) *Corrector {
	c := &Corrector{minLength: defaultMinLength}
	for _, o := range opts {
		o(c)
	}
	if c.matcher == nil {
		c.matcher = phonetic.New()
	}
	return c
}

// Correct returns text with misheard names replaced by their canonical
// spelling from names, and the substitutions made. At each word the longest
// matching phrase wins, so multi-word names beat a partial single-word match.
func (c *Corrector) Correct(text string, names []string) (string, []Correction) {
	ns := phonetic.Prepare(names)
	if ns.Len() == 0 {
		return text, nil
	}
	ws := words(text)

	var (
		b     strings.Builder
		fixes []Correction
		last  int
	)
	for i := 0; i < len(ws); {
		consumed := 0
		for n := min(ns.MaxWords(), len(ws)-i); n >= 1; n-- {
			window := ws[i : i+n]
			if !c.candidate(text, window) {
				continue
			}
			start, end := window[0].start, window[n-1].end
			phrase := text[start:end]
			best, score, ok := c.matcher.MatchPrepared(phrase, ns)
			if !ok {
				continue
			}
			if !strings.EqualFold(best, phrase) {
				b.WriteString(text[last:start])
				b.WriteString(best)
				last = end
				fixes = append(fixes, Correction{Original: phrase, Corrected: best, Score: score})
			}
			consumed = n
			break
		}
		if consumed == 0 {
			consumed = 1
		}
		i += consumed
	}
	if len(fixes) == 0 {
		return text, nil
	}
	b.WriteString(text[last:])
	return b.String(), fixes
}

// candidate reports whether window reads like a spoken name: its words are
// separated by single spaces, its first and last words are capitalized and
// it is long enough.
func (c *Corrector) candidate(text string, window []span) bool {
	for i := 1; i < len(window); i++ {
		if text[window[i-1].end:window[i].start] != " " {
			return false
		}
	}
	if !capitalized(text[window[0].start:]) || !capitalized(text[window[len(window)-1].start:]) {
		return false
	}
	return utf8.RuneCountInString(text[window[0].start:window[len(window)-1].end]) >= c.minLength
}

type span struct{ start, end int }

// words returns the byte spans of runs of letters, digits and inner hyphens.
// Apostrophes end a word so possessives keep their suffix.
func words(text string) []span {
	var (
		out   []span
		start = -1
	)
	for i, r := range text {
		inWord := unicode.IsLetter(r) || unicode.IsDigit(r) || (r == '-' && start >= 0)
		switch {
		case inWord && start < 0:
			start = i
		case !inWord && start >= 0:
			out = append(out, span{start, i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, span{start, len(text)})
	}
	return out
}

func capitalized(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}
