package analyzer

import "strings"

// N-gram overlap is used instead of embeddings so the score is
// deterministic and auditable without a model call: it feeds a
// threshold-gated decision that must be reproducible offline.
const (
	bigramWeight  = 0.5
	trigramWeight = 0.5
)

// Similarity computes word n-gram Jaccard similarity between two
// normalized texts. The result is in [0,1]; either text empty yields 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)

	bigramSim := jaccard(ngramSet(wordsA, 2), ngramSet(wordsB, 2))
	trigramSim := jaccard(ngramSet(wordsA, 3), ngramSet(wordsB, 3))

	return bigramWeight*bigramSim + trigramWeight*trigramSim
}

// ngramSet returns the set of contiguous word n-grams. Texts with fewer
// than n words produce an empty set.
func ngramSet(words []string, n int) map[string]struct{} {
	if len(words) < n {
		return nil
	}
	set := make(map[string]struct{}, len(words)-n+1)
	for i := 0; i+n <= len(words); i++ {
		set[strings.Join(words[i:i+n], " ")] = struct{}{}
	}
	return set
}

// jaccard is |intersection| / |union|, defined as 0 when either set is
// empty so the ratio never divides by zero.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for gram := range a {
		if _, ok := b[gram]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
