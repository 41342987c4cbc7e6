package refine

import (
	"context"
	"errors"
	"testing"

	"github.com/hkmcoding/landie-next-sub000/internal/llm"
	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/hkmcoding/landie-next-sub000/internal/similarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockModel is a mock implementation of llm.Client
type MockModel struct {
	mock.Mock
}

func (m *MockModel) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	args := m.Called(ctx, req)
	if c := args.Get(0); c != nil {
		return c.(*llm.Completion), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockModel) Model() string {
	return "mock"
}

func candidate(title, section string, priority models.Priority, confidence float64) models.Suggestion {
	return models.Suggestion{
		Title:           title,
		TargetSection:   section,
		Priority:        priority,
		ConfidenceScore: confidence,
	}
}

func titles(suggestions []models.Suggestion) []string {
	out := make([]string, len(suggestions))
	for i, s := range suggestions {
		out[i] = s.Title
	}
	return out
}

func TestScore(t *testing.T) {
	assert.InDelta(t, 6.9, Score(candidate("a", "cta", models.PriorityHigh, 0.9)), 1e-9)
	assert.InDelta(t, 4.5, Score(candidate("b", "cta", models.PriorityMedium, 0.5)), 1e-9)
	assert.InDelta(t, 2.4, Score(candidate("c", "cta", models.PriorityLow, 0.4)), 1e-9)
}

func TestDedupe(t *testing.T) {
	scorer := similarity.Jaccard{}

	tests := []struct {
		name       string
		candidates []models.Suggestion
		existing   []models.Suggestion
		expected   []string
	}{
		{
			name:       "Near-identical title is removed",
			candidates: []models.Suggestion{candidate("Improve your Bio text", "bio", models.PriorityHigh, 0.8)},
			existing:   []models.Suggestion{candidate("Improve your bio", "services", models.PriorityLow, 0.5)},
			expected:   []string{},
		},
		{
			name:       "Same section with moderate overlap is removed",
			candidates: []models.Suggestion{candidate("Rewrite CTA button label", "cta", models.PriorityHigh, 0.8)},
			existing:   []models.Suggestion{candidate("Rewrite CTA button copy", "cta", models.PriorityLow, 0.5)},
			expected:   []string{},
		},
		{
			name:       "Different section with moderate overlap is kept",
			candidates: []models.Suggestion{candidate("Rewrite CTA button label", "header", models.PriorityHigh, 0.8)},
			existing:   []models.Suggestion{candidate("Rewrite CTA button copy", "cta", models.PriorityLow, 0.5)},
			expected:   []string{"Rewrite CTA button label"},
		},
		{
			name: "Order is preserved",
			candidates: []models.Suggestion{
				candidate("Add testimonials", "testimonials", models.PriorityHigh, 0.9),
				candidate("Improve your bio now", "bio", models.PriorityHigh, 0.9),
				candidate("Clarify headline", "header", models.PriorityLow, 0.3),
			},
			existing: []models.Suggestion{candidate("Improve your bio", "bio", models.PriorityLow, 0.5)},
			expected: []string{"Add testimonials", "Clarify headline"},
		},
		{
			name:       "No existing suggestions",
			candidates: []models.Suggestion{candidate("Add testimonials", "testimonials", models.PriorityHigh, 0.9)},
			existing:   nil,
			expected:   []string{"Add testimonials"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dedupe(scorer, tt.candidates, tt.existing)
			assert.Equal(t, tt.expected, titles(got))
		})
	}
}

func TestConsolidate_KeepsHighestPerSection(t *testing.T) {
	got := Consolidate([]models.Suggestion{
		candidate("Low CTA", "cta", models.PriorityLow, 0.4),
		candidate("High CTA", "cta", models.PriorityHigh, 0.9),
	})

	require.Len(t, got, 1)
	assert.Equal(t, "High CTA", got[0].Title)
}

func TestConsolidate_GroupOrderAndTies(t *testing.T) {
	got := Consolidate([]models.Suggestion{
		candidate("Bio first", "bio", models.PriorityMedium, 0.5),
		candidate("No section", "", models.PriorityLow, 0.2),
		candidate("CTA only", "cta", models.PriorityHigh, 0.7),
		candidate("Bio tie", "bio", models.PriorityMedium, 0.5),
		candidate("General better", "general", models.PriorityHigh, 0.1),
	})

	assert.Equal(t, []string{"Bio first", "General better", "CTA only"}, titles(got))
}

func TestFallback(t *testing.T) {
	got := Fallback([]models.Suggestion{
		candidate("a", "bio", models.PriorityLow, 0.9),
		candidate("b", "cta", models.PriorityHigh, 0.5),
		candidate("c", "header", models.PriorityMedium, 0.9),
		candidate("d", "services", models.PriorityHigh, 0.5),
		candidate("e", "highlights", models.PriorityHigh, 0.8),
	})

	assert.Equal(t, []string{"e", "b", "d"}, titles(got))
}

func fiveCandidates() []models.Suggestion {
	return []models.Suggestion{
		candidate("Bio", "bio", models.PriorityLow, 0.6),
		candidate("CTA", "cta", models.PriorityHigh, 0.9),
		candidate("Header", "header", models.PriorityMedium, 0.7),
		candidate("Testimonials", "testimonials", models.PriorityHigh, 0.6),
		candidate("Services", "services", models.PriorityMedium, 0.8),
	}
}

func TestSelector_SmallInputSkipsModel(t *testing.T) {
	model := &MockModel{}
	selector := NewSelector(model)

	input := fiveCandidates()[:3]
	sel := selector.SelectBest(context.Background(), input, models.Snapshot{})

	assert.Equal(t, input, sel.Suggestions)
	assert.False(t, sel.UsedFallback)
	model.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestSelector_UsesModelIndices(t *testing.T) {
	model := &MockModel{}
	model.On("Complete", mock.Anything, mock.AnythingOfType("llm.Request")).
		Return(&llm.Completion{Content: `{"selected_indices":[5,1,1,9,3]}`}, nil)

	sel := NewSelector(model).SelectBest(context.Background(), fiveCandidates(), models.Snapshot{})

	assert.False(t, sel.UsedFallback)
	assert.Equal(t, []string{"Services", "Bio", "Header"}, titles(sel.Suggestions))
	model.AssertExpectations(t)
}

func TestSelector_FallbackOnError(t *testing.T) {
	model := &MockModel{}
	model.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	sel := NewSelector(model).SelectBest(context.Background(), fiveCandidates(), models.Snapshot{})

	assert.True(t, sel.UsedFallback)
	assert.Equal(t, []string{"CTA", "Testimonials", "Services"}, titles(sel.Suggestions))
}

func TestSelector_FallbackOnMalformedResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "Prose", content: "I would pick 1, 2 and 3"},
		{name: "Wrong key", content: `{"picks":[1,2,3]}`},
		{name: "All out of range", content: `{"selected_indices":[0,6,42]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &MockModel{}
			model.On("Complete", mock.Anything, mock.Anything).Return(&llm.Completion{Content: tt.content}, nil)

			sel := NewSelector(model).SelectBest(context.Background(), fiveCandidates(), models.Snapshot{})

			assert.True(t, sel.UsedFallback)
			assert.Equal(t, []string{"CTA", "Testimonials", "Services"}, titles(sel.Suggestions))
		})
	}
}

func TestBuildSelectionPrompt(t *testing.T) {
	snap := models.Snapshot{Analytics: models.AnalyticsSnapshot{PageViews: 250, CTAClicks: 5, ConversionRate: 2}}
	prompt := BuildSelectionPrompt(fiveCandidates(), snap)

	assert.Contains(t, prompt, "1. Bio (priority: low, section: bio)")
	assert.Contains(t, prompt, "5. Services (priority: medium, section: services)")
	assert.Contains(t, prompt, "250 views")
}

// Seven raw candidates across five sections reduce to three distinct-section
// suggestions ranked by score when the selector falls back.
func TestPipeline_SevenCandidatesToThree(t *testing.T) {
	raw := []models.Suggestion{
		candidate("Rewrite bio opener", "bio", models.PriorityMedium, 0.6),
		candidate("Stronger CTA verb", "cta", models.PriorityHigh, 0.7),
		candidate("Bio with outcomes", "bio", models.PriorityHigh, 0.8),
		candidate("Lead with a testimonial", "testimonials", models.PriorityHigh, 0.9),
		candidate("Benefit-led headline", "header", models.PriorityMedium, 0.9),
		candidate("Reorder services by demand", "services", models.PriorityLow, 0.9),
		candidate("CTA urgency line", "cta", models.PriorityMedium, 0.95),
	}

	deduped := Dedupe(similarity.Jaccard{}, raw, nil)
	consolidated := Consolidate(deduped)
	require.Len(t, consolidated, 5)

	sel := NewSelector(nil).SelectBest(context.Background(), consolidated, models.Snapshot{})
	require.Len(t, sel.Suggestions, 3)
	assert.True(t, sel.UsedFallback)
	assert.Equal(t, []string{"Lead with a testimonial", "Bio with outcomes", "Stronger CTA verb"}, titles(sel.Suggestions))

	sections := map[string]bool{}
	for _, s := range sel.Suggestions {
		sections[s.Section()] = true
	}
	assert.Len(t, sections, 3)
}
