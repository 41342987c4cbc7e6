package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/hkmcoding/landie-next-sub000/internal/errs"
	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultWindow is how far back analytics are aggregated for a snapshot
const DefaultWindow = 30 * 24 * time.Hour

// Service combines an analytics source and a content source into snapshots
type Service struct {
	analytics AnalyticsSource
	content   ContentSource
	window    time.Duration
	now       func() time.Time
}

// Ensure Service implements Reader and SeriesReader
var (
	_ Reader       = (*Service)(nil)
	_ SeriesReader = (*Service)(nil)
)

// NewService creates a snapshot reader over the given sources
func NewService(analytics AnalyticsSource, content ContentSource, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{
		analytics: analytics,
		content:   content,
		window:    window,
		now:       time.Now,
	}
}

// Read fetches analytics for the trailing window plus the content summary
func (s *Service) Read(ctx context.Context, userID, landingPageID string) (*models.Snapshot, error) {
	now := s.now()

	analytics, err := s.analytics.PageAnalytics(ctx, landingPageID, now.Add(-s.window))
	if err != nil {
		return nil, fmt.Errorf("failed to read analytics for page %s: %w", landingPageID, err)
	}

	content, err := s.content.PageContent(ctx, userID, landingPageID)
	if err != nil {
		return nil, fmt.Errorf("failed to read content for page %s: %w", landingPageID, err)
	}

	a := analytics.WithDerivedConversion()
	if a.Timestamp.IsZero() {
		a.Timestamp = now
	}

	logrus.WithFields(logrus.Fields{
		"user_id":         userID,
		"landing_page_id": landingPageID,
		"page_views":      a.PageViews,
		"cta_clicks":      a.CTAClicks,
	}).Debug("Snapshot read")

	return &models.Snapshot{
		UserID:        userID,
		LandingPageID: landingPageID,
		Analytics:     a,
		Content:       *content,
	}, nil
}

// DailyMetrics reads the page's daily series once the user is confirmed as
// its owner. An empty userID skips the check.
func (s *Service) DailyMetrics(ctx context.Context, userID, landingPageID string, since time.Time) (*models.DailyMetrics, error) {
	if userID != "" {
		owned, err := s.content.OwnsPage(ctx, userID, landingPageID)
		if err != nil {
			return nil, fmt.Errorf("failed to check owner of page %s: %w", landingPageID, err)
		}
		if !owned {
			return nil, errs.NotFound("landing page", landingPageID)
		}
	}
	return s.analytics.DailyMetrics(ctx, landingPageID, since)
}

// Default is the all-zero snapshot used when a read fails and the caller
// prefers degraded output over aborting
func Default(userID, landingPageID string) *models.Snapshot {
	return &models.Snapshot{
		UserID:        userID,
		LandingPageID: landingPageID,
		Analytics:     models.AnalyticsSnapshot{Timestamp: time.Now()},
		IsDefault:     true,
	}
}
