// Package wer computes corpus-level word error rate between predicted and
// reference texts. Word error rate is the word-level edit distance between a
// prediction and its reference, normalized by the reference length; the
// corpus rate pools distances and lengths across all pairs before dividing.
package wer

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/rubriq/appraise/internal/domain"
)

// Compute returns the corpus word error rate for the given prediction and
// reference texts. Texts are tokenized on Unicode whitespace; distances and
// reference lengths are summed across all pairs before dividing, so longer
// references carry proportionally more weight.
//
// The slices must have equal length and the references must contain at least
// one word in total; violations are reported as configuration errors.
func Compute(predictions, references []string) (float64, error) {
	if len(predictions) != len(references) {
		return 0, domain.NewConfigError(
			"predictions and references should have the same number of elements. predictions has %d elements while references has %d elements",
			len(predictions), len(references))
	}

	enc := newTokenEncoder()

	var totalDistance, totalWords int
	for i := range references {
		refTokens := strings.Fields(references[i])
		ref, err := enc.encode(refTokens)
		if err != nil {
			return 0, err
		}
		pred, err := enc.encode(strings.Fields(predictions[i]))
		if err != nil {
			return 0, err
		}

		totalDistance += levenshtein.ComputeDistance(ref, pred)
		totalWords += len(refTokens)
	}

	if totalWords == 0 {
		return 0, domain.NewConfigError("reference corpus contains no words")
	}

	return float64(totalDistance) / float64(totalWords), nil
}

// tokenEncoder maps distinct word tokens to distinct runes so that a
// rune-level edit distance over the encoded strings equals the word-level
// edit distance over the original token sequences.
type tokenEncoder struct {
	vocab map[string]rune
	next  rune
}

func newTokenEncoder() *tokenEncoder {
	return &tokenEncoder{vocab: make(map[string]rune), next: 0}
}

// encode converts a token sequence into a string of vocabulary runes.
// The surrogate range is skipped because Go strings cannot carry those code
// points without replacement, which would alias distinct tokens.
func (e *tokenEncoder) encode(tokens []string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(tokens))
	for _, tok := range tokens {
		r, ok := e.vocab[tok]
		if !ok {
			if e.next > unicode.MaxRune {
				return "", domain.NewInternalError("word error rate vocabulary exceeds %d distinct tokens", int(unicode.MaxRune))
			}
			r = e.next
			e.vocab[tok] = r
			e.next++
			if e.next == 0xD800 {
				e.next = 0xE000
			}
		}
		sb.WriteRune(r)
	}
	return sb.String(), nil
}
