// Package phonetic matches spoken tokens against a list of known phrases by
// pronunciation similarity.
//
// The transcript normalizer uses it for two jobs: recognising the wake phrase
// when it survives into the transcript ("hey jarvis" transcribed as
// "hey, Travis") and aligning misheard words with the configured vocabulary.
//
// Matching runs in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each input token and each known phrase. A phrase whose codes overlap
//     with the input's becomes a candidate.
//
//  2. Jaro-Winkler ranking: among candidates, the phrase with the highest
//     Jaro-Winkler similarity (case-insensitive, on the original strings)
//     wins, provided it clears the phonetic threshold. When no phonetic
//     candidate exists, a stricter pure-similarity pass runs instead.
//
// Multi-word phrases are supported; the matcher scores full strings,
// space-stripped concatenations and the best token pair, and keeps the
// highest.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched phrase to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher scores spoken tokens against known phrases. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] with the supplied options applied.
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

// Match finds the phrase most phonetically similar to word.
//
// word may be a single token or a space-separated n-gram. When matched is
// false, corrected equals word unchanged and confidence is 0; otherwise
// corrected is the winning phrase in its original casing.
func (m *Matcher) Match(word string, phrases []string) (corrected string, confidence float64, matched bool) {
	if len(phrases) == 0 || strings.TrimSpace(word) == "" {
		return word, 0, false
	}

	wordLower := strings.ToLower(strings.TrimSpace(word))
	wordTokens := strings.Fields(wordLower)
	inputCodes := codesForTokens(wordTokens)

	type candidate struct {
		phrase   string
		score    float64
		phonetic bool
	}

	var best candidate

	for _, phrase := range phrases {
		phraseLower := strings.ToLower(strings.TrimSpace(phrase))
		if phraseLower == "" {
			continue
		}
		phraseTokens := strings.Fields(phraseLower)

		phraseCodes := codesForTokens(phraseTokens)
		phoneticMatch := codesOverlap(inputCodes, phraseCodes)

		jwScore := bestJWScore(wordTokens, phraseTokens, wordLower, phraseLower)

		if phoneticMatch {
			if jwScore >= m.phoneticThreshold {
				if !best.phonetic || jwScore > best.score {
					best = candidate{phrase: phrase, score: jwScore, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if jwScore >= m.fuzzyThreshold && jwScore > best.score {
				best = candidate{phrase: phrase, score: jwScore, phonetic: false}
			}
		}
	}

	if best.phrase != "" {
		return best.phrase, best.score, true
	}
	return word, 0, false
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the input
// and the phrase using three strategies: full strings, space-stripped
// concatenations, and the best pairwise token score. The mix keeps one
// spoken word that maps to two phrase words (and vice versa) matchable.
func bestJWScore(inputTokens, phraseTokens []string, inputFull, phraseFull string) float64 {
	score := matchr.JaroWinkler(inputFull, phraseFull, false)

	if len(inputTokens) > 1 || len(phraseTokens) > 1 {
		concat1 := strings.Join(inputTokens, "")
		concat2 := strings.Join(phraseTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, it := range inputTokens {
		for _, pt := range phraseTokens {
			if s := matchr.JaroWinkler(it, pt, false); s > score {
				score = s
			}
		}
	}

	return score
}
