package impact

import "github.com/hkmcoding/landie-next-sub000/internal/models"

// StableThreshold is the absolute percent change below which a series is
// considered flat
const StableThreshold = 5.0

type Direction string

const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
	Stable     Direction = "stable"
)

type PageDirection string

const (
	Improving PageDirection = "improving"
	Declining PageDirection = "declining"
	Steady    PageDirection = "stable"
)

// Trend is the direction of a single series
type Trend struct {
	Direction Direction `json:"direction"`
	ChangePct float64   `json:"change_pct"`
}

// PageTrendResult combines the per-metric trends
type PageTrendResult struct {
	PageViews      Trend         `json:"page_views"`
	CTAClicks      Trend         `json:"cta_clicks"`
	ConversionRate Trend         `json:"conversion_rate"`
	Overall        PageDirection `json:"overall"`
}

// TrendDirection splits the series in half by index and compares the
// average of the second half against the first
func TrendDirection(series []models.DataPoint) Trend {
	mid := len(series) / 2
	first := mean(series[:mid])
	second := mean(series[mid:])

	change := 0.0
	if first != 0 {
		change = (second - first) / first * 100
	}

	switch {
	case change >= StableThreshold:
		return Trend{Direction: Increasing, ChangePct: change}
	case change <= -StableThreshold:
		return Trend{Direction: Decreasing, ChangePct: change}
	default:
		return Trend{Direction: Stable, ChangePct: change}
	}
}

// PageTrend classifies the page: improving when conversion rises or both
// views and clicks rise, declining under the mirrored condition
func PageTrend(views, clicks, conversion []models.DataPoint) PageTrendResult {
	r := PageTrendResult{
		PageViews:      TrendDirection(views),
		CTAClicks:      TrendDirection(clicks),
		ConversionRate: TrendDirection(conversion),
	}

	both := func(d Direction) bool {
		return r.PageViews.Direction == d && r.CTAClicks.Direction == d
	}
	switch {
	case r.ConversionRate.Direction == Increasing || both(Increasing):
		r.Overall = Improving
	case r.ConversionRate.Direction == Decreasing || both(Decreasing):
		r.Overall = Declining
	default:
		r.Overall = Steady
	}
	return r
}

func mean(points []models.DataPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points))
}
