package suggestions

import (
	"strings"
	"testing"

	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestDetectIssues(t *testing.T) {
	tests := []struct {
		name     string
		snap     models.Snapshot
		expected []string
	}{
		{
			name: "healthy page",
			snap: models.Snapshot{
				Analytics: models.AnalyticsSnapshot{PageViews: 500, CTAClicks: 25, ConversionRate: 5},
				Content:   models.ContentSummary{BioWordCount: 60},
			},
			expected: nil,
		},
		{
			name: "empty page",
			snap: models.Snapshot{},
			expected: []string{
				"Low traffic: only 0 page views",
				"Low conversion rate: 0.00% (target is at least 2%)",
				"No call-to-action clicks recorded",
				"Bio is too short (0 words)",
			},
		},
		{
			name: "long bio only",
			snap: models.Snapshot{
				Analytics: models.AnalyticsSnapshot{PageViews: 500, CTAClicks: 25, ConversionRate: 5},
				Content:   models.ContentSummary{BioWordCount: 101},
			},
			expected: []string{"Bio is too long (101 words)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectIssues(tt.snap))
		})
	}
}

func TestBuildUserPrompt_CapsExistingTitles(t *testing.T) {
	existing := []models.Suggestion{
		{Title: "First"}, {Title: "Second"}, {Title: "Third"}, {Title: "Fourth"},
	}
	prompt := BuildUserPrompt(models.Snapshot{}, "unknown", existing)

	assert.Contains(t, prompt, "- Third\n")
	assert.NotContains(t, prompt, "Fourth")
	assert.Contains(t, prompt, analysisFocus[AnalysisComprehensive])
	assert.True(t, strings.HasSuffix(prompt, "where possible."))
}

func TestBuildUserPrompt_IncludesOnboarding(t *testing.T) {
	snap := models.Snapshot{Content: models.ContentSummary{
		Headline:   "Design that sells",
		Onboarding: &models.OnboardingMeta{Profession: "Designer", TargetAudience: "Startups"},
	}}
	prompt := BuildUserPrompt(snap, AnalysisEngagement, nil)

	assert.Contains(t, prompt, "Profession: Designer")
	assert.Contains(t, prompt, "Target audience: Startups")
	assert.Contains(t, prompt, `Headline: "Design that sells"`)
	assert.NotContains(t, prompt, "ALREADY SUGGESTED")
	assert.Contains(t, prompt, analysisFocus[AnalysisEngagement])
}
