// Package refine reduces raw model candidates to a short, non-duplicate list.
package refine

import (
	"sort"

	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/hkmcoding/landie-next-sub000/internal/similarity"
)

const (
	// TitleDuplicateThreshold drops a candidate whose title is this close to
	// any pending title
	TitleDuplicateThreshold = 0.7
	// SectionDuplicateThreshold applies when the candidate targets the same
	// section as a pending suggestion
	SectionDuplicateThreshold = 0.5
	// MaxSuggestions is the size of the final list
	MaxSuggestions = 3
)

// Score ranks a candidate: priority weight counts double, confidence breaks ties
func Score(s models.Suggestion) float64 {
	return float64(s.Priority.Weight())*2 + s.ConfidenceScore
}

// Dedupe removes candidates too similar to existing pending suggestions.
// Order of the survivors is preserved.
func Dedupe(scorer similarity.Scorer, candidates, existing []models.Suggestion) []models.Suggestion {
	if len(existing) == 0 {
		return candidates
	}

	kept := make([]models.Suggestion, 0, len(candidates))
	for _, c := range candidates {
		if !isDuplicate(scorer, c, existing) {
			kept = append(kept, c)
		}
	}
	return kept
}

func isDuplicate(scorer similarity.Scorer, candidate models.Suggestion, existing []models.Suggestion) bool {
	for _, e := range existing {
		sim := scorer.Similarity(candidate.Title, e.Title)
		if sim > TitleDuplicateThreshold {
			return true
		}
		if candidate.Section() == e.Section() && sim > SectionDuplicateThreshold {
			return true
		}
	}
	return false
}

// Consolidate keeps the single best candidate per target section. Groups are
// emitted in order of first appearance; ties keep the earlier candidate.
func Consolidate(candidates []models.Suggestion) []models.Suggestion {
	var order []string
	best := make(map[string]models.Suggestion)

	for _, c := range candidates {
		section := c.Section()
		current, seen := best[section]
		if !seen {
			order = append(order, section)
			best[section] = c
			continue
		}
		if Score(c) > Score(current) {
			best[section] = c
		}
	}

	out := make([]models.Suggestion, 0, len(order))
	for _, section := range order {
		out = append(out, best[section])
	}
	return out
}

// Fallback picks the top MaxSuggestions by Score without calling a model
func Fallback(candidates []models.Suggestion) []models.Suggestion {
	sorted := make([]models.Suggestion, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Score(sorted[i]) > Score(sorted[j])
	})
	if len(sorted) > MaxSuggestions {
		sorted = sorted[:MaxSuggestions]
	}
	return sorted
}
