package impact

import (
	"testing"
	"time"

	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestScoreConfidence(t *testing.T) {
	measuredAt := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		before, after models.AnalyticsSnapshot
		age           time.Duration
		expected      models.ConfidenceLevel
		score         int
	}{
		{
			name:     "large sample, old, all metrics improving",
			before:   models.AnalyticsSnapshot{PageViews: 1500, CTAClicks: 30, ConversionRate: 2, AvgSessionDuration: 40},
			after:    models.AnalyticsSnapshot{PageViews: 1600, CTAClicks: 48, ConversionRate: 3, AvgSessionDuration: 50},
			age:      40 * day,
			expected: models.ConfidenceHigh,
			score:    7,
		},
		{
			name:     "small sample, two weeks, two metrics agree",
			before:   models.AnalyticsSnapshot{PageViews: 50, CTAClicks: 5, ConversionRate: 10, AvgSessionDuration: 30},
			after:    models.AnalyticsSnapshot{PageViews: 60, CTAClicks: 5, ConversionRate: 12, AvgSessionDuration: 25},
			age:      20 * day,
			expected: models.ConfidenceMedium,
			score:    3,
		},
		{
			name:     "tiny sample, fresh, no movement",
			before:   models.AnalyticsSnapshot{PageViews: 5, CTAClicks: 1, ConversionRate: 20},
			after:    models.AnalyticsSnapshot{PageViews: 5, CTAClicks: 1, ConversionRate: 20},
			age:      day,
			expected: models.ConfidenceLow,
			score:    0,
		},
		{
			name:     "declining metrics still count as consistent",
			before:   models.AnalyticsSnapshot{PageViews: 400, CTAClicks: 20, ConversionRate: 5, AvgSessionDuration: 60},
			after:    models.AnalyticsSnapshot{PageViews: 200, CTAClicks: 4, ConversionRate: 2, AvgSessionDuration: 30},
			age:      30 * day,
			expected: models.ConfidenceHigh,
			score:    6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, score := ScoreConfidence(tt.before, tt.after, measuredAt.Add(-tt.age), measuredAt)
			assert.Equal(t, tt.expected, level)
			assert.Equal(t, tt.score, score)
		})
	}
}

func TestConsistentMetrics_ZeroOverall(t *testing.T) {
	assert.Equal(t, 0, consistentMetrics(Improvement{PageViews: 10, ConversionRate: -5}))
}
