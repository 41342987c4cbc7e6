package storage

import (
	"context"
	"time"

	"github.com/hkmcoding/landie-next-sub000/internal/models"
)

// SuggestionStore defines the persistence contract for suggestion generation
// and the suggestion lifecycle
type SuggestionStore interface {
	PendingSuggestions(ctx context.Context, userID, landingPageID string) ([]models.Suggestion, error)
	ListSuggestions(ctx context.Context, userID, landingPageID string, status models.SuggestionStatus) ([]models.Suggestion, error)
	GetSuggestion(ctx context.Context, id string) (*models.Suggestion, error)
	SaveAnalysisSession(ctx context.Context, session *models.AnalysisSession) error
	LatestAnalysisAt(ctx context.Context, userID, landingPageID string) (time.Time, error)
	// InsertSuggestions writes the whole batch or nothing
	InsertSuggestions(ctx context.Context, suggestions []models.Suggestion) error
	// MarkImplemented moves a pending suggestion to implemented and records
	// the implementation in one transaction
	MarkImplemented(ctx context.Context, impl *models.SuggestionImplementation, at time.Time) error
	MarkDismissed(ctx context.Context, suggestionID string, at time.Time) error
}

// ImplementationStore defines the persistence contract for impact measurement
type ImplementationStore interface {
	EligibleImplementations(ctx context.Context, userID, landingPageID string, createdBefore time.Time) ([]models.SuggestionImplementation, error)
	GetImplementation(ctx context.Context, id string) (*models.SuggestionImplementation, error)
	// SaveMeasurement overwrites any previous after-snapshot
	SaveMeasurement(ctx context.Context, id string, after models.AnalyticsSnapshot, measuredAt time.Time, confidence models.ConfidenceLevel) error
	MeasuredImplementations(ctx context.Context, userID, landingPageID string) ([]models.SuggestionImplementation, error)
	CountPendingMeasurements(ctx context.Context, userID, landingPageID string, createdBefore time.Time) (int, error)
	PagesWithPendingMeasurements(ctx context.Context, createdBefore time.Time) ([]models.PageRef, error)
}
