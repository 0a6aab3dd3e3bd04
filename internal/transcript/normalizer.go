// Package transcript cleans raw speech-to-text output before it reaches the
// conversation backend.
//
// Transcription engines routinely mangle the wake phrase ("hey jarvis" comes
// back as "Hey, Travis.") and domain vocabulary the acoustic model never saw.
// [Normalizer] strips wake-phrase residue from the start of an utterance and
// rewrites configured vocabulary using phonetic matching, so the backend sees
// what the user actually said. Whether the cleaned text is worth sending at
// all is the caller's decision.
package transcript

import (
	"sort"
	"strings"
	"unicode"

	"github.com/MrWong99/earshot/internal/transcript/phonetic"
)

// Config controls what [Normalizer] strips and rewrites.
type Config struct {
	// WakePhrases are stripped from the start of an utterance when the
	// leading tokens phonetically match one of them, word by word. List
	// partial forms explicitly if the engine tends to drop words
	// ("hey jarvis", "jarvis").
	WakePhrases []string

	// Corrections maps misheard vocabulary to its replacement. Keys may
	// span multiple words and are matched word by word, phonetically and
	// case-insensitively, so "cooper netties" catches "Cooper Nettie's"
	// too. An empty replacement deletes the matched words.
	Corrections map[string]string

	// PhoneticThreshold and FuzzyThreshold tune correction matching.
	// Zero values use the matcher defaults.
	PhoneticThreshold float64
	FuzzyThreshold    float64
}

// Wake-phrase alignment runs laxer than corrections: residue only ever sits
// at the start of an utterance, so a false positive costs a couple of filler
// tokens, while corrections rewrite words anywhere in the text.
const (
	wakePhoneticThreshold = 0.60
	wakeFuzzyThreshold    = 0.80
)

type correction struct {
	words []string
	repl  string
}

// Normalizer rewrites raw transcripts per a fixed configuration. It is
// stateless after construction and safe for concurrent use.
type Normalizer struct {
	wakePhrases [][]string // tokenized, longest first
	// Correction keys grouped by word count, so a two-token window only
	// competes against two-word keys and cannot swallow a neighbor of a
	// single-word match.
	byWidth     map[int][]correction
	maxKeyWords int
	matcher     *phonetic.Matcher
	wakeMatcher *phonetic.Matcher
}

// NewNormalizer builds a [Normalizer] from cfg. A zero Config yields a
// normalizer that only collapses whitespace.
func NewNormalizer(cfg Config) *Normalizer {
	var opts []phonetic.Option
	if cfg.PhoneticThreshold > 0 {
		opts = append(opts, phonetic.WithPhoneticThreshold(cfg.PhoneticThreshold))
	}
	if cfg.FuzzyThreshold > 0 {
		opts = append(opts, phonetic.WithFuzzyThreshold(cfg.FuzzyThreshold))
	}

	n := &Normalizer{
		byWidth: make(map[int][]correction),
		matcher: phonetic.New(opts...),
		wakeMatcher: phonetic.New(
			phonetic.WithPhoneticThreshold(wakePhoneticThreshold),
			phonetic.WithFuzzyThreshold(wakeFuzzyThreshold),
		),
	}

	for _, phrase := range cfg.WakePhrases {
		tokens := strings.Fields(strings.ToLower(phrase))
		if len(tokens) == 0 {
			continue
		}
		n.wakePhrases = append(n.wakePhrases, tokens)
	}
	// Longer phrases first so "hey jarvis" wins over a bare "hey".
	sort.SliceStable(n.wakePhrases, func(i, j int) bool {
		return len(n.wakePhrases[i]) > len(n.wakePhrases[j])
	})

	for key, repl := range cfg.Corrections {
		words := strings.Fields(strings.ToLower(key))
		if len(words) == 0 {
			continue
		}
		n.byWidth[len(words)] = append(n.byWidth[len(words)], correction{words: words, repl: repl})
		if len(words) > n.maxKeyWords {
			n.maxKeyWords = len(words)
		}
	}
	// Map order is random; sort so overlapping keys resolve the same way
	// on every run.
	for _, entries := range n.byWidth {
		sort.Slice(entries, func(i, j int) bool {
			return strings.Join(entries[i].words, " ") < strings.Join(entries[j].words, " ")
		})
	}

	return n
}

// Normalize returns raw with wake-phrase residue removed, corrections
// applied and whitespace collapsed. The result may be empty.
func (n *Normalizer) Normalize(raw string) string {
	tokens := strings.Fields(raw)
	tokens = n.stripWakePrefix(tokens)
	tokens = n.applyCorrections(tokens)
	return strings.Join(tokens, " ")
}

// stripWakePrefix drops the leading tokens when they align with a configured
// wake phrase: "Hey, Travis." matches "hey jarvis" because each token
// phonetically matches its counterpart, while "hey how" does not. Only the
// first matching phrase is stripped.
func (n *Normalizer) stripWakePrefix(tokens []string) []string {
	for _, phrase := range n.wakePhrases {
		if len(tokens) < len(phrase) {
			continue
		}
		cores, ok := coresOf(tokens[:len(phrase)])
		if !ok || !aligns(n.wakeMatcher, cores, phrase) {
			continue
		}
		tokens = tokens[len(phrase):]
		// A dash or ellipsis the engine left between wake phrase and
		// utterance goes with it.
		for len(tokens) > 0 {
			if _, core, _ := splitPunct(tokens[0]); core != "" {
				break
			}
			tokens = tokens[1:]
		}
		return tokens
	}
	return tokens
}

// applyCorrections walks the tokens and replaces windows that align with a
// correction key of the same word count, widest window first. Punctuation
// around a window survives the replacement; punctuation between its words
// does not.
func (n *Normalizer) applyCorrections(tokens []string) []string {
	if n.maxKeyWords == 0 || len(tokens) == 0 {
		return tokens
	}

	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		width := n.maxKeyWords
		if rest := len(tokens) - i; width > rest {
			width = rest
		}

		replaced := false
		for w := width; w >= 1 && !replaced; w-- {
			entries := n.byWidth[w]
			if len(entries) == 0 {
				continue
			}
			window := tokens[i : i+w]
			cores, ok := coresOf(window)
			if !ok {
				continue
			}
			for _, c := range entries {
				if !aligns(n.matcher, cores, c.words) {
					continue
				}
				lead, _, _ := splitPunct(window[0])
				_, _, trail := splitPunct(window[w-1])
				if c.repl != "" {
					out = append(out, lead+c.repl+trail)
				}
				i += w
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, tokens[i])
			i++
		}
	}
	return out
}

// aligns reports whether every core phonetically matches the word at the
// same position. Both slices must have equal length.
func aligns(m *phonetic.Matcher, cores, words []string) bool {
	for i, want := range words {
		if _, _, ok := m.Match(cores[i], []string{want}); !ok {
			return false
		}
	}
	return true
}

// coresOf strips surrounding punctuation from each token. ok is false when
// any token has no word left.
func coresOf(tokens []string) (cores []string, ok bool) {
	cores = make([]string, len(tokens))
	for i, tok := range tokens {
		_, cores[i], _ = splitPunct(tok)
		if cores[i] == "" {
			return nil, false
		}
	}
	return cores, true
}

// splitPunct separates leading and trailing punctuation from a token.
// Interior punctuation ("can't") stays in the core. An all-punctuation
// token yields an empty core with everything in lead.
func splitPunct(tok string) (lead, core, trail string) {
	core = strings.TrimFunc(tok, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	if core == "" {
		return tok, "", ""
	}
	i := strings.Index(tok, core)
	return tok[:i], core, tok[i+len(core):]
}
