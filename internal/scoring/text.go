package scoring

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/MikeSquared-Agency/Matchmaker/internal/textnorm"
)

// TextSimilarity is 1 - editDistance/maxLen over folded strings, in [0,1].
// Two empty strings are not considered similar.
func TextSimilarity(a, b string) float64 {
	a, b = textnorm.Fold(a), textnorm.Fold(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	dist := levenshtein.ComputeDistance(a, b)
	return clamp(1-float64(dist)/float64(maxLen), 0, 1)
}

// TokenOverlap is |shared words| / |smaller word set| over words of at least
// minTokenLen runes.
func TokenOverlap(a, b string) float64 {
	wa := wordSet(textnorm.Words(a, minTokenLen))
	wb := wordSet(textnorm.Words(b, minTokenLen))
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	shared := 0
	for w := range wa {
		if wb[w] {
			shared++
		}
	}
	smaller := len(wa)
	if len(wb) < smaller {
		smaller = len(wb)
	}
	return float64(shared) / float64(smaller)
}

func wordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
