package impact

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/hkmcoding/landie-next-sub000/internal/config"
	"github.com/hkmcoding/landie-next-sub000/internal/errs"
	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/hkmcoding/landie-next-sub000/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pageReader returns the current analytics per landing page
type pageReader struct {
	mu    sync.Mutex
	pages map[string]models.AnalyticsSnapshot
}

func (r *pageReader) Read(ctx context.Context, userID, landingPageID string) (*models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.pages[landingPageID]
	if !ok {
		return nil, fmt.Errorf("no analytics for page %s", landingPageID)
	}
	return &models.Snapshot{UserID: userID, LandingPageID: landingPageID, Analytics: a}, nil
}

func (r *pageReader) set(landingPageID string, a models.AnalyticsSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[landingPageID] = a
}

type fakeSeries struct {
	daily *models.DailyMetrics
	since time.Time
	owner string // empty means any user
}

func (f *fakeSeries) DailyMetrics(ctx context.Context, userID, landingPageID string, since time.Time) (*models.DailyMetrics, error) {
	if f.owner != "" && userID != f.owner {
		return nil, errs.NotFound("landing page", landingPageID)
	}
	f.since = since
	if f.daily == nil {
		return nil, errors.New("clickhouse down")
	}
	return f.daily, nil
}

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

var baseline = models.AnalyticsSnapshot{PageViews: 1000, CTAClicks: 100, ConversionRate: 10, AvgSessionDuration: 100}

// scaled multiplies every tracked metric of baseline by f
func scaled(f float64) models.AnalyticsSnapshot {
	return models.AnalyticsSnapshot{
		PageViews:          int(math.Round(1000 * f)),
		CTAClicks:          int(math.Round(100 * f)),
		ConversionRate:     10 * f,
		AvgSessionDuration: 100 * f,
	}
}

func newTestService(store storage.ImplementationStore, reader *pageReader, series *fakeSeries) *Service {
	cfg := &config.Config{MeasurementDelay: 7 * day, MeasureWorkers: 2}
	svc := NewService(cfg, store, reader, series)
	svc.now = func() time.Time { return testNow }
	return svc
}

func pendingImpl(id, page string, age time.Duration) models.SuggestionImplementation {
	before := baseline
	return models.SuggestionImplementation{
		ID:              id,
		SuggestionID:    "sug-" + id,
		UserID:          "user-1",
		LandingPageID:   page,
		BeforeAnalytics: &before,
		CreatedAt:       testNow.Add(-age),
	}
}

func measuredImpl(id string, t models.SuggestionType, f float64) models.SuggestionImplementation {
	impl := pendingImpl(id, "page-1", 20*day)
	after := scaled(f)
	measuredAt := testNow.Add(-day)
	impl.AfterAnalytics = &after
	impl.ImpactMeasuredAt = &measuredAt
	impl.SuggestionType = t
	impl.SuggestionTitle = "Title " + id
	return impl
}

func TestMeasurePendingImpacts(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.PutImplementation(pendingImpl("a", "page-1", 10*day))
	store.PutImplementation(pendingImpl("b", "page-2", 9*day))
	store.PutImplementation(pendingImpl("broken", "page-3", 8*day))
	store.PutImplementation(pendingImpl("fresh", "page-1", 2*day))

	reader := &pageReader{pages: map[string]models.AnalyticsSnapshot{
		"page-1": scaled(1.5),
		"page-2": scaled(0.5),
	}}
	svc := newTestService(store, reader, &fakeSeries{})

	result, err := svc.MeasurePendingImpacts(ctx, "user-1", "")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Measured)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Details, 3)

	assert.Equal(t, "a", result.Details[0].ImplementationID)
	assert.True(t, result.Details[0].Success)
	assert.InDelta(t, 50.0, result.Details[0].Improvement.Overall, 1e-6)

	assert.Equal(t, "b", result.Details[1].ImplementationID)
	assert.InDelta(t, -50.0, result.Details[1].Improvement.Overall, 1e-6)

	assert.Equal(t, "broken", result.Details[2].ImplementationID)
	assert.False(t, result.Details[2].Success)
	assert.Contains(t, result.Details[2].Error, "no analytics for page page-3")

	pending, err := store.CountPendingMeasurements(ctx, "user-1", "", testNow.Add(-7*day))
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	measured, err := store.GetImplementation(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, measured.ImpactMeasuredAt)
	assert.Equal(t, testNow, *measured.ImpactMeasuredAt)
	assert.Equal(t, 1500, measured.AfterAnalytics.PageViews)
}

func TestMeasurePendingImpacts_SinglePage(t *testing.T) {
	store := storage.NewMemoryStore()
	store.PutImplementation(pendingImpl("a", "page-1", 10*day))
	store.PutImplementation(pendingImpl("b", "page-2", 10*day))

	reader := &pageReader{pages: map[string]models.AnalyticsSnapshot{"page-1": baseline, "page-2": baseline}}
	svc := newTestService(store, reader, &fakeSeries{})

	result, err := svc.MeasurePendingImpacts(context.Background(), "user-1", "page-2")
	require.NoError(t, err)
	require.Len(t, result.Details, 1)
	assert.Equal(t, "b", result.Details[0].ImplementationID)
}

type failingImplementationStore struct {
	*storage.MemoryStore
}

func (f *failingImplementationStore) EligibleImplementations(ctx context.Context, userID, landingPageID string, createdBefore time.Time) ([]models.SuggestionImplementation, error) {
	return nil, errors.New("connection refused")
}

func TestMeasurePendingImpacts_QueryFailure(t *testing.T) {
	svc := newTestService(&failingImplementationStore{storage.NewMemoryStore()}, &pageReader{}, &fakeSeries{})

	_, err := svc.MeasurePendingImpacts(context.Background(), "user-1", "")

	require.Error(t, err)
	assert.True(t, errs.IsPersistence(err))
}

func TestMeasureImplementationImpact_Overwrites(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.PutImplementation(pendingImpl("a", "page-1", 3*day))

	reader := &pageReader{pages: map[string]models.AnalyticsSnapshot{"page-1": scaled(1.2)}}
	svc := newTestService(store, reader, &fakeSeries{})

	first, err := svc.MeasureImplementationImpact(ctx, "a", "user-1")
	require.NoError(t, err)
	assert.InDelta(t, 20.0, first.Improvement.Overall, 1e-6)

	reader.set("page-1", scaled(1.4))
	second, err := svc.MeasureImplementationImpact(ctx, "a", "")
	require.NoError(t, err)
	assert.InDelta(t, 40.0, second.Improvement.Overall, 1e-6)

	measured, err := store.MeasuredImplementations(ctx, "user-1", "page-1")
	require.NoError(t, err)
	require.Len(t, measured, 1)
	assert.Equal(t, 1400, measured[0].AfterAnalytics.PageViews)
	assert.Equal(t, 1000, measured[0].BeforeAnalytics.PageViews)
}

func TestMeasureImplementationImpact_Errors(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.PutImplementation(pendingImpl("a", "page-1", 10*day))
	noBefore := pendingImpl("nobefore", "page-1", 10*day)
	noBefore.BeforeAnalytics = nil
	store.PutImplementation(noBefore)

	reader := &pageReader{pages: map[string]models.AnalyticsSnapshot{"page-1": baseline}}
	svc := newTestService(store, reader, &fakeSeries{})

	_, err := svc.MeasureImplementationImpact(ctx, "missing", "user-1")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	_, err = svc.MeasureImplementationImpact(ctx, "a", "user-2")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	_, err = svc.MeasureImplementationImpact(ctx, "nobefore", "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no before snapshot")
}

func TestGetImpactSummary_Empty(t *testing.T) {
	store := storage.NewMemoryStore()
	store.PutImplementation(pendingImpl("eligible", "page-1", 10*day))
	store.PutImplementation(pendingImpl("fresh", "page-1", day))

	svc := newTestService(store, &pageReader{}, &fakeSeries{})
	summary, err := svc.GetImpactSummary(context.Background(), "user-1", "page-1")
	require.NoError(t, err)

	assert.Equal(t, Summary{PendingMeasurements: 1}, *summary)
}

func TestGetImpactSummary(t *testing.T) {
	store := storage.NewMemoryStore()
	store.PutImplementation(measuredImpl("up", models.SuggestionTypeContent, 1.5))
	store.PutImplementation(measuredImpl("down", models.SuggestionTypeConversion, 0.8))
	store.PutImplementation(measuredImpl("slight", models.SuggestionTypeContent, 1.1))

	svc := newTestService(store, &pageReader{}, &fakeSeries{})
	summary, err := svc.GetImpactSummary(context.Background(), "user-1", "page-1")
	require.NoError(t, err)

	assert.Equal(t, 3, summary.MeasuredCount)
	assert.InDelta(t, 40.0/3, summary.AverageImprovement, 1e-6)
	assert.InDelta(t, 50.0, summary.BestImprovement, 1e-6)
	assert.InDelta(t, -20.0, summary.WorstImprovement, 1e-6)
	assert.InDelta(t, 2.0/3, summary.SuccessRate, 1e-9)
	assert.Equal(t, 0, summary.PendingMeasurements)
}

func TestCompareImplementations(t *testing.T) {
	store := storage.NewMemoryStore()
	store.PutImplementation(measuredImpl("c50", models.SuggestionTypeContent, 1.5))
	store.PutImplementation(measuredImpl("c10", models.SuggestionTypeContent, 1.1))
	store.PutImplementation(measuredImpl("v-20", models.SuggestionTypeConversion, 0.8))
	store.PutImplementation(measuredImpl("e40", models.SuggestionTypeEngagement, 1.4))

	svc := newTestService(store, &pageReader{}, &fakeSeries{})
	c, err := svc.CompareImplementations(context.Background(), "user-1", "page-1")
	require.NoError(t, err)

	ids := func(list []ImplementationImpact) []string {
		out := make([]string, len(list))
		for i, imp := range list {
			out[i] = imp.ImplementationID
		}
		return out
	}
	assert.Equal(t, []string{"c50", "e40", "c10"}, ids(c.Best))
	assert.Equal(t, []string{"v-20", "c10", "e40"}, ids(c.Worst))

	require.Len(t, c.ByType, 3)
	assert.Equal(t, models.SuggestionTypeEngagement, c.ByType[0].SuggestionType)
	assert.Equal(t, models.SuggestionTypeContent, c.ByType[1].SuggestionType)
	assert.Equal(t, 2, c.ByType[1].Count)
	assert.InDelta(t, 30.0, c.ByType[1].AverageImprovement, 1e-6)
	assert.Equal(t, 1.0, c.ByType[1].SuccessRate)
	assert.Equal(t, models.SuggestionTypeConversion, c.ByType[2].SuggestionType)
	assert.Equal(t, 0.0, c.ByType[2].SuccessRate)
}

func TestCompareImplementations_TiedAveragesOrderedByType(t *testing.T) {
	store := storage.NewMemoryStore()
	store.PutImplementation(measuredImpl("s", models.SuggestionTypeSEO, 1.2))
	store.PutImplementation(measuredImpl("e", models.SuggestionTypeEngagement, 1.2))
	store.PutImplementation(measuredImpl("c", models.SuggestionTypeContent, 1.2))
	store.PutImplementation(measuredImpl("p", models.SuggestionTypePerformance, 1.5))

	svc := newTestService(store, &pageReader{}, &fakeSeries{})

	for i := 0; i < 20; i++ {
		c, err := svc.CompareImplementations(context.Background(), "user-1", "page-1")
		require.NoError(t, err)

		types := make([]models.SuggestionType, len(c.ByType))
		for j, avg := range c.ByType {
			types[j] = avg.SuggestionType
		}
		require.Equal(t, []models.SuggestionType{
			models.SuggestionTypePerformance,
			models.SuggestionTypeContent,
			models.SuggestionTypeEngagement,
			models.SuggestionTypeSEO,
		}, types)
	}
}

func TestCompareImplementations_Empty(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore(), &pageReader{}, &fakeSeries{})
	c, err := svc.CompareImplementations(context.Background(), "user-1", "page-1")
	require.NoError(t, err)

	assert.Empty(t, c.Best)
	assert.Empty(t, c.Worst)
	assert.Empty(t, c.ByType)
}

func TestGetPageTrends(t *testing.T) {
	series := &fakeSeries{daily: &models.DailyMetrics{
		PageViews:      trendSeries(10, 10, 20, 20),
		CTAClicks:      trendSeries(1, 1, 1, 1),
		ConversionRate: trendSeries(10, 10, 5, 5),
	}}
	svc := newTestService(storage.NewMemoryStore(), &pageReader{}, series)

	trend, err := svc.GetPageTrends(context.Background(), "user-1", "page-1", 14)
	require.NoError(t, err)

	assert.Equal(t, Declining, trend.Overall)
	assert.Equal(t, Increasing, trend.PageViews.Direction)
	assert.Equal(t, testNow.Add(-14*day), series.since)

	_, err = svc.GetPageTrends(context.Background(), "user-1", "page-1", 0)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(-30*day), series.since)

	series.daily = nil
	_, err = svc.GetPageTrends(context.Background(), "user-1", "page-1", 7)
	assert.Error(t, err)
}

func TestGetPageTrends_OtherUsersPage(t *testing.T) {
	series := &fakeSeries{owner: "user-1", daily: &models.DailyMetrics{
		PageViews: trendSeries(10, 20),
	}}
	svc := newTestService(storage.NewMemoryStore(), &pageReader{}, series)

	trend, err := svc.GetPageTrends(context.Background(), "someone-else", "page-1", 14)

	assert.Nil(t, trend)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.True(t, series.since.IsZero())
}

func trendSeries(values ...float64) []models.DataPoint {
	return series(values...)
}

func TestPendingPages(t *testing.T) {
	store := storage.NewMemoryStore()
	store.PutImplementation(pendingImpl("a", "page-2", 10*day))
	store.PutImplementation(pendingImpl("b", "page-1", 10*day))
	store.PutImplementation(pendingImpl("fresh", "page-3", day))

	svc := newTestService(store, &pageReader{}, &fakeSeries{})
	refs, err := svc.PendingPages(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []models.PageRef{
		{UserID: "user-1", LandingPageID: "page-1"},
		{UserID: "user-1", LandingPageID: "page-2"},
	}, refs)
}
