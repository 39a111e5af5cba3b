// Package composition checks generated text against the vocabulary it was built from.
package composition

import (
	"fmt"
	"strings"

	"github.com/example/lingoloop/pkg/models"
)

const (
	// MinWordRatio and MaxWordRatio bound the accepted word count relative to the target.
	MinWordRatio = 0.7
	MaxWordRatio = 1.5

	ratioEpsilon = 1e-9
)

// Validate reports whether text respects the selection it was generated from.
// All findings are returned in the result; the inputs are never modified.
func Validate(text string, selection models.WordSelection, targetWordCount int) models.ValidationResult {
	errs := []string{}

	count := len(strings.Fields(text))
	lo := MinWordRatio * float64(targetWordCount)
	hi := MaxWordRatio * float64(targetWordCount)
	if float64(count) < lo-ratioEpsilon || float64(count) > hi+ratioEpsilon {
		errs = append(errs, fmt.Sprintf("word count %d outside expected range [%.0f, %.0f] for target %d",
			count, lo, hi, targetWordCount))
	}

	lower := strings.ToLower(text)
	for _, w := range selection.NewWords {
		if !strings.Contains(lower, strings.ToLower(w)) {
			errs = append(errs, fmt.Sprintf("missing new word %q", w))
		}
	}

	return models.ValidationResult{
		Valid:     len(errs) == 0,
		Errors:    errs,
		WordCount: count,
	}
}
