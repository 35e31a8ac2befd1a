package harmonize

import (
	"strings"

	"github.com/agext/levenshtein"
)

// Similarity scores two normalized names in [0, 1], where 1 is identical.
type Similarity func(a, b string) float64

// LevenshteinSimilarity scores by edit distance relative to the longer
// string. This is the default: it handles transliteration drift well
// ("Kandahar" vs "Qandahar").
func LevenshteinSimilarity(a, b string) float64 {
	return levenshtein.Similarity(a, b, nil)
}

// JaccardSimilarity scores by word-set overlap. It is more forgiving of
// reordered multi-word names ("Northern Bahr el Ghazal" vs "Bahr el Ghazal
// Northern") and stricter about single-word typos.
func JaccardSimilarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1
	}
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}

// SimilarityByName returns the named strategy, defaulting to Levenshtein
// for unrecognized names.
func SimilarityByName(name string) Similarity {
	if strings.EqualFold(name, "jaccard") {
		return JaccardSimilarity
	}
	return LevenshteinSimilarity
}
