// Package impact measures whether implemented suggestions moved the page's
// metrics, and how much that measurement can be trusted.
package impact

import "github.com/hkmcoding/landie-next-sub000/internal/models"

// Weights of each metric in the overall improvement score
const (
	ConversionRateWeight  = 0.4
	CTAClicksWeight       = 0.3
	PageViewsWeight       = 0.2
	SessionDurationWeight = 0.1
)

// Improvement holds per-metric percent changes and the weighted overall score
type Improvement struct {
	PageViews       float64 `json:"page_views"`
	UniqueVisitors  float64 `json:"unique_visitors"`
	CTAClicks       float64 `json:"cta_clicks"`
	ConversionRate  float64 `json:"conversion_rate"`
	SessionDuration float64 `json:"session_duration"`
	Overall         float64 `json:"overall"`
}

// PercentChange is (after-before)/before*100, with 0 when both are zero and
// 100 when only before is zero
func PercentChange(before, after float64) float64 {
	if before == 0 {
		if after == 0 {
			return 0
		}
		if after > 0 {
			return 100
		}
		return -100
	}
	return (after - before) / before * 100
}

// CalculateImprovement compares two analytics snapshots
func CalculateImprovement(before, after models.AnalyticsSnapshot) Improvement {
	imp := Improvement{
		PageViews:       PercentChange(float64(before.PageViews), float64(after.PageViews)),
		UniqueVisitors:  PercentChange(float64(before.UniqueVisitors), float64(after.UniqueVisitors)),
		CTAClicks:       PercentChange(float64(before.CTAClicks), float64(after.CTAClicks)),
		ConversionRate:  PercentChange(before.ConversionRate, after.ConversionRate),
		SessionDuration: PercentChange(before.AvgSessionDuration, after.AvgSessionDuration),
	}
	imp.Overall = ConversionRateWeight*imp.ConversionRate +
		CTAClicksWeight*imp.CTAClicks +
		PageViewsWeight*imp.PageViews +
		SessionDurationWeight*imp.SessionDuration
	return imp
}

// weightedDeltas are the four metrics that make up Overall
func (i Improvement) weightedDeltas() [4]float64 {
	return [4]float64{i.ConversionRate, i.CTAClicks, i.PageViews, i.SessionDuration}
}
