package impact

import (
	"time"

	"github.com/hkmcoding/landie-next-sub000/internal/models"
)

const day = 24 * time.Hour

// ScoreConfidence grades a measurement from sample size, elapsed time and
// how many metrics moved in the same direction as the overall score. The
// raw point total is returned alongside the level.
func ScoreConfidence(before, after models.AnalyticsSnapshot, implementedAt, measuredAt time.Time) (models.ConfidenceLevel, int) {
	score := 0

	views := min(before.PageViews, after.PageViews)
	switch {
	case views >= 1000:
		score += 3
	case views >= 100:
		score += 2
	case views >= 10:
		score += 1
	}

	age := measuredAt.Sub(implementedAt)
	switch {
	case age >= 30*day:
		score += 2
	case age >= 14*day:
		score += 1
	}

	switch consistent := consistentMetrics(CalculateImprovement(before, after)); {
	case consistent >= 3:
		score += 2
	case consistent >= 2:
		score += 1
	}

	switch {
	case score >= 6:
		return models.ConfidenceHigh, score
	case score >= 3:
		return models.ConfidenceMedium, score
	default:
		return models.ConfidenceLow, score
	}
}

// consistentMetrics counts deltas whose sign matches the overall improvement.
// A zero overall has no direction, so nothing agrees with it.
func consistentMetrics(imp Improvement) int {
	direction := sign(imp.Overall)
	if direction == 0 {
		return 0
	}
	n := 0
	for _, d := range imp.weightedDeltas() {
		if sign(d) == direction {
			n++
		}
	}
	return n
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
