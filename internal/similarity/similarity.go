// Package similarity scores how alike two short texts are.
package similarity

import "strings"

// Scorer returns a similarity in [0,1] between two strings
type Scorer interface {
	Similarity(a, b string) float64
}

// Jaccard compares lowercased whitespace token sets
type Jaccard struct{}

var _ Scorer = Jaccard{}

func (Jaccard) Similarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	union := len(setA)
	intersection := 0
	for tok := range setB {
		if _, ok := setA[tok]; ok {
			intersection++
		} else {
			union++
		}
	}

	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
