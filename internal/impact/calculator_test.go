package impact

import (
	"testing"

	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestPercentChange(t *testing.T) {
	tests := []struct {
		before, after float64
		expected      float64
	}{
		{0, 0, 0},
		{0, 5, 100},
		{100, 150, 50},
		{100, 50, -50},
		{40, 40, 0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.expected, PercentChange(tt.before, tt.after), 1e-9, "before=%v after=%v", tt.before, tt.after)
	}
}

func TestCalculateImprovement(t *testing.T) {
	before := models.AnalyticsSnapshot{PageViews: 100, UniqueVisitors: 80, CTAClicks: 10, ConversionRate: 10, AvgSessionDuration: 60}
	after := models.AnalyticsSnapshot{PageViews: 150, UniqueVisitors: 80, CTAClicks: 20, ConversionRate: 5, AvgSessionDuration: 90}

	imp := CalculateImprovement(before, after)

	assert.InDelta(t, 50.0, imp.PageViews, 1e-9)
	assert.InDelta(t, 0.0, imp.UniqueVisitors, 1e-9)
	assert.InDelta(t, 100.0, imp.CTAClicks, 1e-9)
	assert.InDelta(t, -50.0, imp.ConversionRate, 1e-9)
	assert.InDelta(t, 50.0, imp.SessionDuration, 1e-9)
	// 0.4*-50 + 0.3*100 + 0.2*50 + 0.1*50
	assert.InDelta(t, 25.0, imp.Overall, 1e-9)
}

func TestCalculateImprovement_FromZero(t *testing.T) {
	imp := CalculateImprovement(models.AnalyticsSnapshot{}, models.AnalyticsSnapshot{PageViews: 12, CTAClicks: 1, ConversionRate: 8.3})

	assert.Equal(t, 100.0, imp.PageViews)
	assert.Equal(t, 100.0, imp.CTAClicks)
	assert.Equal(t, 100.0, imp.ConversionRate)
	assert.Equal(t, 0.0, imp.SessionDuration)
	assert.InDelta(t, 90.0, imp.Overall, 1e-9)
}
