package impact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hkmcoding/landie-next-sub000/internal/config"
	"github.com/hkmcoding/landie-next-sub000/internal/errs"
	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/hkmcoding/landie-next-sub000/internal/snapshot"
	"github.com/hkmcoding/landie-next-sub000/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	rankedLimit      = 3
	DefaultTrendDays = 30
)

// MeasureDetail is the per-implementation outcome of a batch run
type MeasureDetail struct {
	ImplementationID string                 `json:"implementation_id"`
	SuggestionID     string                 `json:"suggestion_id"`
	SuggestionTitle  string                 `json:"suggestion_title,omitempty"`
	LandingPageID    string                 `json:"landing_page_id"`
	Success          bool                   `json:"success"`
	Improvement      *Improvement           `json:"improvement,omitempty"`
	Confidence       models.ConfidenceLevel `json:"confidence,omitempty"`
	Error            string                 `json:"error,omitempty"`
}

// MeasureBatchResult summarizes a MeasurePendingImpacts run
type MeasureBatchResult struct {
	Measured int             `json:"measured"`
	Failed   int             `json:"failed"`
	Details  []MeasureDetail `json:"details"`
}

// Measurement is the result of measuring one implementation
type Measurement struct {
	Implementation  models.SuggestionImplementation `json:"implementation"`
	Improvement     Improvement                     `json:"improvement"`
	Confidence      models.ConfidenceLevel          `json:"confidence"`
	ConfidenceScore int                             `json:"confidence_score"`
}

// ImplementationImpact is a measured implementation with its improvement
type ImplementationImpact struct {
	ImplementationID string                 `json:"implementation_id"`
	SuggestionID     string                 `json:"suggestion_id"`
	SuggestionTitle  string                 `json:"suggestion_title"`
	SuggestionType   models.SuggestionType  `json:"suggestion_type"`
	TargetSection    string                 `json:"target_section"`
	Improvement      Improvement            `json:"improvement"`
	Confidence       models.ConfidenceLevel `json:"confidence"`
	ImplementedAt    time.Time              `json:"implemented_at"`
	MeasuredAt       *time.Time             `json:"measured_at,omitempty"`
}

// TypeAverage aggregates improvements for one suggestion type
type TypeAverage struct {
	SuggestionType     models.SuggestionType `json:"suggestion_type"`
	Count              int                   `json:"count"`
	AverageImprovement float64               `json:"average_improvement"`
	SuccessRate        float64               `json:"success_rate"`
}

// Comparison ranks measured implementations
type Comparison struct {
	Best   []ImplementationImpact `json:"best"`
	Worst  []ImplementationImpact `json:"worst"`
	ByType []TypeAverage          `json:"by_type"`
}

// Summary aggregates measured implementations. SuccessRate is the fraction
// in [0,1] with a positive overall improvement.
type Summary struct {
	MeasuredCount       int     `json:"measured_count"`
	AverageImprovement  float64 `json:"average_improvement"`
	BestImprovement     float64 `json:"best_improvement"`
	WorstImprovement    float64 `json:"worst_improvement"`
	SuccessRate         float64 `json:"success_rate"`
	PendingMeasurements int     `json:"pending_measurements"`
}

// Service measures implementations and reports on them
type Service struct {
	config *config.Config
	store  storage.ImplementationStore
	reader snapshot.Reader
	series snapshot.SeriesReader
	now    func() time.Time
}

// NewService creates an impact service
func NewService(cfg *config.Config, store storage.ImplementationStore, reader snapshot.Reader, series snapshot.SeriesReader) *Service {
	return &Service{
		config: cfg,
		store:  store,
		reader: reader,
		series: series,
		now:    time.Now,
	}
}

func (s *Service) cutoff() time.Time {
	return s.now().Add(-s.config.MeasurementDelay)
}

// PendingPages lists every page with implementations due for measurement
func (s *Service) PendingPages(ctx context.Context) ([]models.PageRef, error) {
	refs, err := s.store.PagesWithPendingMeasurements(ctx, s.cutoff())
	if err != nil {
		return nil, &errs.PersistenceError{Op: "pages_with_pending_measurements", Cause: err}
	}
	return refs, nil
}

// MeasurePendingImpacts measures every implementation that has a
// before-snapshot, no after-snapshot and is older than the measurement
// delay. An empty landingPageID covers all of the user's pages. Item
// failures are reported in the result; only the eligibility query fails the
// call.
func (s *Service) MeasurePendingImpacts(ctx context.Context, userID, landingPageID string) (*MeasureBatchResult, error) {
	eligible, err := s.store.EligibleImplementations(ctx, userID, landingPageID, s.cutoff())
	if err != nil {
		return nil, &errs.PersistenceError{Op: "eligible_implementations", Cause: err}
	}

	details := make([]MeasureDetail, len(eligible))

	var g errgroup.Group
	g.SetLimit(max(s.config.MeasureWorkers, 1))
	for i, impl := range eligible {
		g.Go(func() error {
			details[i] = s.measureDetail(ctx, impl)
			return nil
		})
	}
	_ = g.Wait()

	result := &MeasureBatchResult{Details: details}
	for _, d := range details {
		if d.Success {
			result.Measured++
		} else {
			result.Failed++
		}
	}

	logrus.WithFields(logrus.Fields{
		"user_id":         userID,
		"landing_page_id": landingPageID,
		"measured":        result.Measured,
		"failed":          result.Failed,
	}).Info("Pending impacts measured")

	return result, nil
}

func (s *Service) measureDetail(ctx context.Context, impl models.SuggestionImplementation) MeasureDetail {
	detail := MeasureDetail{
		ImplementationID: impl.ID,
		SuggestionID:     impl.SuggestionID,
		SuggestionTitle:  impl.SuggestionTitle,
		LandingPageID:    impl.LandingPageID,
	}

	m, err := s.measure(ctx, impl)
	if err != nil {
		logrus.Warnf("Failed to measure implementation %s: %v", impl.ID, err)
		detail.Error = err.Error()
		return detail
	}

	detail.Success = true
	detail.Improvement = &m.Improvement
	detail.Confidence = m.Confidence
	return detail
}

// MeasureImplementationImpact measures one implementation now, regardless of
// its age. Measuring again overwrites the previous after-snapshot. A
// non-empty userID must own the implementation.
func (s *Service) MeasureImplementationImpact(ctx context.Context, implementationID, userID string) (*Measurement, error) {
	impl, err := s.store.GetImplementation(ctx, implementationID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		return nil, &errs.PersistenceError{Op: "get_implementation", Cause: err}
	}
	if userID != "" && impl.UserID != userID {
		return nil, errs.NotFound("implementation", implementationID)
	}
	return s.measure(ctx, *impl)
}

func (s *Service) measure(ctx context.Context, impl models.SuggestionImplementation) (*Measurement, error) {
	if impl.BeforeAnalytics == nil {
		return nil, fmt.Errorf("implementation %s has no before snapshot", impl.ID)
	}

	snap, err := s.reader.Read(ctx, impl.UserID, impl.LandingPageID)
	if err != nil {
		return nil, fmt.Errorf("failed to read current snapshot: %w", err)
	}

	measuredAt := s.now()
	after := snap.Analytics
	improvement := CalculateImprovement(*impl.BeforeAnalytics, after)
	level, score := ScoreConfidence(*impl.BeforeAnalytics, after, impl.CreatedAt, measuredAt)

	if err := s.store.SaveMeasurement(ctx, impl.ID, after, measuredAt, level); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		return nil, &errs.PersistenceError{Op: "save_measurement", Cause: err}
	}

	impl.AfterAnalytics = &after
	impl.ImpactMeasuredAt = &measuredAt
	impl.Confidence = level

	logrus.WithFields(logrus.Fields{
		"implementation_id": impl.ID,
		"overall":           improvement.Overall,
		"confidence":        level,
	}).Debug("Implementation measured")

	return &Measurement{
		Implementation:  impl,
		Improvement:     improvement,
		Confidence:      level,
		ConfidenceScore: score,
	}, nil
}

func (s *Service) measuredImpacts(ctx context.Context, userID, landingPageID string) ([]ImplementationImpact, error) {
	measured, err := s.store.MeasuredImplementations(ctx, userID, landingPageID)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "measured_implementations", Cause: err}
	}

	impacts := make([]ImplementationImpact, 0, len(measured))
	for _, impl := range measured {
		if impl.BeforeAnalytics == nil || impl.AfterAnalytics == nil {
			continue
		}
		impacts = append(impacts, ImplementationImpact{
			ImplementationID: impl.ID,
			SuggestionID:     impl.SuggestionID,
			SuggestionTitle:  impl.SuggestionTitle,
			SuggestionType:   impl.SuggestionType,
			TargetSection:    impl.TargetSection,
			Improvement:      CalculateImprovement(*impl.BeforeAnalytics, *impl.AfterAnalytics),
			Confidence:       impl.Confidence,
			ImplementedAt:    impl.CreatedAt,
			MeasuredAt:       impl.ImpactMeasuredAt,
		})
	}
	return impacts, nil
}

// CompareImplementations returns the three best and three worst measured
// implementations plus averages per suggestion type
func (s *Service) CompareImplementations(ctx context.Context, userID, landingPageID string) (*Comparison, error) {
	impacts, err := s.measuredImpacts(ctx, userID, landingPageID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(impacts, func(i, j int) bool {
		return impacts[i].Improvement.Overall > impacts[j].Improvement.Overall
	})

	c := &Comparison{
		Best:   []ImplementationImpact{},
		Worst:  []ImplementationImpact{},
		ByType: []TypeAverage{},
	}
	for i := 0; i < len(impacts) && i < rankedLimit; i++ {
		c.Best = append(c.Best, impacts[i])
	}
	for i := len(impacts) - 1; i >= 0 && len(c.Worst) < rankedLimit; i-- {
		c.Worst = append(c.Worst, impacts[i])
	}

	groups := make(map[models.SuggestionType][]float64)
	for _, imp := range impacts {
		groups[imp.SuggestionType] = append(groups[imp.SuggestionType], imp.Improvement.Overall)
	}
	for t, overall := range groups {
		avg, rate := averageAndSuccess(overall)
		c.ByType = append(c.ByType, TypeAverage{
			SuggestionType:     t,
			Count:              len(overall),
			AverageImprovement: avg,
			SuccessRate:        rate,
		})
	}
	sort.Slice(c.ByType, func(i, j int) bool {
		a, b := c.ByType[i], c.ByType[j]
		if a.AverageImprovement != b.AverageImprovement {
			return a.AverageImprovement > b.AverageImprovement
		}
		return a.SuggestionType < b.SuggestionType
	})

	return c, nil
}

// GetImpactSummary aggregates measured implementations. With nothing
// measured the aggregates are zero; PendingMeasurements still counts
// eligible rows.
func (s *Service) GetImpactSummary(ctx context.Context, userID, landingPageID string) (*Summary, error) {
	impacts, err := s.measuredImpacts(ctx, userID, landingPageID)
	if err != nil {
		return nil, err
	}

	pending, err := s.store.CountPendingMeasurements(ctx, userID, landingPageID, s.cutoff())
	if err != nil {
		return nil, &errs.PersistenceError{Op: "count_pending_measurements", Cause: err}
	}

	summary := &Summary{MeasuredCount: len(impacts), PendingMeasurements: pending}
	if len(impacts) == 0 {
		return summary, nil
	}

	overall := make([]float64, len(impacts))
	for i, imp := range impacts {
		overall[i] = imp.Improvement.Overall
	}
	summary.AverageImprovement, summary.SuccessRate = averageAndSuccess(overall)
	summary.BestImprovement = overall[0]
	summary.WorstImprovement = overall[0]
	for _, v := range overall[1:] {
		summary.BestImprovement = max(summary.BestImprovement, v)
		summary.WorstImprovement = min(summary.WorstImprovement, v)
	}
	return summary, nil
}

func averageAndSuccess(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum, positive := 0.0, 0
	for _, v := range values {
		sum += v
		if v > 0 {
			positive++
		}
	}
	n := float64(len(values))
	return sum / n, float64(positive) / n
}

// GetPageTrends classifies the page's daily series over the last days.
// Pages the user does not own are reported as not found.
func (s *Service) GetPageTrends(ctx context.Context, userID, landingPageID string, days int) (*PageTrendResult, error) {
	if days <= 0 {
		days = DefaultTrendDays
	}

	since := s.now().Add(-time.Duration(days) * day)
	daily, err := s.series.DailyMetrics(ctx, userID, landingPageID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to read daily metrics for page %s: %w", landingPageID, err)
	}

	trend := PageTrend(daily.PageViews, daily.CTAClicks, daily.ConversionRate)
	logrus.WithFields(logrus.Fields{
		"user_id":         userID,
		"landing_page_id": landingPageID,
		"days":            days,
		"overall":         trend.Overall,
	}).Debug("Page trends computed")
	return &trend, nil
}
