package refine

import (
	"context"
	"fmt"
	"strings"

	"github.com/hkmcoding/landie-next-sub000/internal/llm"
	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/sirupsen/logrus"
)

const selectionSystemPrompt = `You are a conversion copywriting expert reviewing improvement ideas for a personal landing page.
Pick the ideas that will most improve conversions with content-only changes.
Respond only with JSON of the form {"selected_indices":[i,j,k]} using the 1-based numbers shown.`

// Selection is the outcome of a best-of-N pass
type Selection struct {
	Suggestions  []models.Suggestion
	UsedFallback bool
	Completion   *llm.Completion // nil when no model call succeeded
}

// Selector asks the model to choose the best candidates
type Selector struct {
	client llm.Client
}

func NewSelector(client llm.Client) *Selector {
	return &Selector{client: client}
}

// SelectBest returns at most MaxSuggestions candidates. Model or parse
// failures fall back to score ordering and are never returned as errors.
func (s *Selector) SelectBest(ctx context.Context, candidates []models.Suggestion, snap models.Snapshot) Selection {
	if len(candidates) <= MaxSuggestions {
		return Selection{Suggestions: candidates}
	}

	if s.client == nil {
		return Selection{Suggestions: Fallback(candidates), UsedFallback: true}
	}

	completion, err := s.client.Complete(ctx, llm.Request{
		System:      selectionSystemPrompt,
		User:        BuildSelectionPrompt(candidates, snap),
		MaxTokens:   100,
		Temperature: 0.1,
	})
	if err != nil {
		logrus.Warnf("Best-of-N selection call failed, using score fallback: %v", err)
		return Selection{Suggestions: Fallback(candidates), UsedFallback: true}
	}

	indices, err := llm.ParseSelection(completion.Content)
	if err != nil {
		logrus.Warnf("Best-of-N selection unparsable, using score fallback: %v", err)
		return Selection{Suggestions: Fallback(candidates), UsedFallback: true, Completion: completion}
	}

	picked := mapIndices(candidates, indices)
	if len(picked) == 0 {
		logrus.Warn("Best-of-N selection returned no usable indices, using score fallback")
		return Selection{Suggestions: Fallback(candidates), UsedFallback: true, Completion: completion}
	}

	return Selection{Suggestions: picked, Completion: completion}
}

// mapIndices converts 1-based indices to candidates, skipping out-of-range
// and repeated entries
func mapIndices(candidates []models.Suggestion, indices []int) []models.Suggestion {
	seen := make(map[int]bool)
	var picked []models.Suggestion
	for _, idx := range indices {
		if idx < 1 || idx > len(candidates) || seen[idx] {
			continue
		}
		seen[idx] = true
		picked = append(picked, candidates[idx-1])
		if len(picked) == MaxSuggestions {
			break
		}
	}
	return picked
}

// BuildSelectionPrompt lists candidates with their 1-based index
func BuildSelectionPrompt(candidates []models.Suggestion, snap models.Snapshot) string {
	a := snap.Analytics
	var b strings.Builder

	fmt.Fprintf(&b, "Page metrics: %d views, %d CTA clicks, %.2f%% conversion rate.\n\n", a.PageViews, a.CTAClicks, a.ConversionRate)
	b.WriteString("Candidate suggestions:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s (priority: %s, section: %s)\n", i+1, c.Title, c.Priority, c.Section())
	}
	fmt.Fprintf(&b, "\nSelect exactly %d suggestions. Prefer different sections.", MaxSuggestions)
	return b.String()
}
