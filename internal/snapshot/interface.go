package snapshot

import (
	"context"
	"time"

	"github.com/hkmcoding/landie-next-sub000/internal/models"
)

// Reader returns the current analytics and content for a page. Errors are
// returned as-is; callers decide whether to substitute Default.
type Reader interface {
	Read(ctx context.Context, userID, landingPageID string) (*models.Snapshot, error)
}

// SeriesReader returns per-day metrics for trend analysis. A page the user
// does not own is reported as errs.ErrNotFound.
type SeriesReader interface {
	DailyMetrics(ctx context.Context, userID, landingPageID string, since time.Time) (*models.DailyMetrics, error)
}

// AnalyticsSource aggregates tracked page events. Events carry no owner, so
// callers check ownership first.
type AnalyticsSource interface {
	PageAnalytics(ctx context.Context, landingPageID string, since time.Time) (*models.AnalyticsSnapshot, error)
	DailyMetrics(ctx context.Context, landingPageID string, since time.Time) (*models.DailyMetrics, error)
}

// ContentSource reads the page's current content counts
type ContentSource interface {
	PageContent(ctx context.Context, userID, landingPageID string) (*models.ContentSummary, error)
	OwnsPage(ctx context.Context, userID, landingPageID string) (bool, error)
}
