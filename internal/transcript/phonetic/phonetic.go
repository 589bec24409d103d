// Package phonetic scores how closely a spoken phrase sounds like a known
// name. It combines Double Metaphone codes with Jaro-Winkler similarity.
//
// A name is a phonetic candidate when any of its Double Metaphone codes
// overlaps the phrase's codes; candidates are accepted above the phonetic
// threshold. Names without a code overlap can still match on spelling alone,
// but only above the stricter fuzzy threshold.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.92
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a name whose
// codes overlap the phrase. Default 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a name without a
// code overlap. Default 0.92.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Matcher with the given options applied.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Names is a list of names with their phonetic codes computed once.
type Names struct {
	entries  []name
	maxWords int
}

type name struct {
	original string
	lower    string
	tokens   []string
	codes    map[string]struct{}
}

// Prepare computes the codes for names. Blank names are skipped.
func Prepare(names []string) *Names {
	ns := &Names{}
	for _, n := range names {
		lower := strings.ToLower(strings.TrimSpace(n))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		ns.entries = append(ns.entries, name{
			original: strings.TrimSpace(n),
			lower:    lower,
			tokens:   tokens,
			codes:    codes(tokens),
		})
		ns.maxWords = max(ns.maxWords, len(tokens))
	}
	return ns
}

// MaxWords is the word count of the longest name, or 0 when there are none.
func (ns *Names) MaxWords() int { return ns.maxWords }

// Len reports the number of usable names.
func (ns *Names) Len() int { return len(ns.entries) }

// Match returns the name that phrase most likely stands for. When matched is
// false, best is phrase unchanged and score is 0.
func (m *Matcher) Match(phrase string, names []string) (best string, score float64, matched bool) {
	return m.MatchPrepared(phrase, Prepare(names))
}

// MatchPrepared is [Matcher.Match] against precomputed names.
func (m *Matcher) MatchPrepared(phrase string, ns *Names) (best string, score float64, matched bool) {
	lower := strings.ToLower(strings.TrimSpace(phrase))
	if lower == "" || ns == nil || len(ns.entries) == 0 {
		return phrase, 0, false
	}
	tokens := strings.Fields(lower)
	in := codes(tokens)

	var (
		found     string
		bestScore float64
		byCode    bool
	)
	for _, n := range ns.entries {
		s := similarity(tokens, n.tokens, lower, n.lower)
		if overlaps(in, n.codes) {
			if s >= m.phoneticThreshold && (!byCode || s > bestScore) {
				found, bestScore, byCode = n.original, s, true
			}
			continue
		}
		if !byCode && s >= m.fuzzyThreshold && s > bestScore {
			found, bestScore = n.original, s
		}
	}
	if found == "" {
		return phrase, 0, false
	}
	return found, bestScore, true
}

// codes is the union of the Double Metaphone codes of tokens.
func codes(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		primary, secondary := matchr.DoubleMetaphone(t)
		if primary != "" {
			set[primary] = struct{}{}
		}
		if secondary != "" {
			set[secondary] = struct{}{}
		}
	}
	return set
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score of the full strings, the strings
// with spaces removed, and, for equal word counts, the weakest aligned word
// pair. A multi-word phrase never scores on a single shared word alone.
func similarity(inTokens, nameTokens []string, in, nm string) float64 {
	score := matchr.JaroWinkler(in, nm, false)
	if len(inTokens) > 1 || len(nameTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inTokens, ""), strings.Join(nameTokens, ""), false); s > score {
			score = s
		}
	}
	if len(inTokens) == len(nameTokens) && len(inTokens) > 1 {
		weakest := 1.0
		for i := range inTokens {
			weakest = min(weakest, matchr.JaroWinkler(inTokens[i], nameTokens[i], false))
		}
		score = max(score, weakest)
	}
	return score
}
