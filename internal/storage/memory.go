package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hkmcoding/landie-next-sub000/internal/errs"
	"github.com/hkmcoding/landie-next-sub000/internal/models"
)

// MemoryStore is an in-process store with the same transition rules as
// PostgresStore. It backs the service and handler tests.
type MemoryStore struct {
	mu              sync.RWMutex
	suggestions     map[string]models.Suggestion
	sessions        map[string]models.AnalysisSession
	implementations map[string]models.SuggestionImplementation
}

var (
	_ SuggestionStore     = (*MemoryStore)(nil)
	_ ImplementationStore = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		suggestions:     make(map[string]models.Suggestion),
		sessions:        make(map[string]models.AnalysisSession),
		implementations: make(map[string]models.SuggestionImplementation),
	}
}

func (m *MemoryStore) PendingSuggestions(ctx context.Context, userID, landingPageID string) ([]models.Suggestion, error) {
	return m.ListSuggestions(ctx, userID, landingPageID, models.StatusPending)
}

func (m *MemoryStore) ListSuggestions(ctx context.Context, userID, landingPageID string, status models.SuggestionStatus) ([]models.Suggestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Suggestion
	for _, s := range m.suggestions {
		if s.UserID != userID || s.LandingPageID != landingPageID {
			continue
		}
		if status != "" && s.Status != status {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) GetSuggestion(ctx context.Context, id string) (*models.Suggestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.suggestions[id]
	if !ok {
		return nil, errs.NotFound("suggestion", id)
	}
	return &s, nil
}

func (m *MemoryStore) SaveAnalysisSession(ctx context.Context, session *models.AnalysisSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = *session
	return nil
}

// Sessions returns every stored session
func (m *MemoryStore) Sessions() []models.AnalysisSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.AnalysisSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *MemoryStore) LatestAnalysisAt(ctx context.Context, userID, landingPageID string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest time.Time
	for _, s := range m.sessions {
		if s.UserID == userID && s.LandingPageID == landingPageID && s.CreatedAt.After(latest) {
			latest = s.CreatedAt
		}
	}
	return latest, nil
}

func (m *MemoryStore) InsertSuggestions(ctx context.Context, suggestions []models.Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range suggestions {
		if _, exists := m.suggestions[s.ID]; exists {
			return fmt.Errorf("duplicate suggestion id %s", s.ID)
		}
	}
	for _, s := range suggestions {
		m.suggestions[s.ID] = s
	}
	return nil
}

func (m *MemoryStore) transition(suggestionID string, status models.SuggestionStatus, at time.Time) error {
	s, ok := m.suggestions[suggestionID]
	if !ok {
		return errs.NotFound("suggestion", suggestionID)
	}
	if s.Status != models.StatusPending {
		return fmt.Errorf("suggestion %s is %s: %w", suggestionID, s.Status, errs.ErrInvalidTransition)
	}

	s.Status = status
	switch status {
	case models.StatusImplemented:
		s.ImplementedAt = &at
	case models.StatusDismissed:
		s.DismissedAt = &at
	}
	m.suggestions[suggestionID] = s
	return nil
}

func (m *MemoryStore) MarkImplemented(ctx context.Context, impl *models.SuggestionImplementation, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transition(impl.SuggestionID, models.StatusImplemented, at); err != nil {
		return err
	}
	m.implementations[impl.ID] = *impl
	return nil
}

func (m *MemoryStore) MarkDismissed(ctx context.Context, suggestionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.transition(suggestionID, models.StatusDismissed, at)
}

// PutImplementation stores an implementation directly, bypassing the
// suggestion transition
func (m *MemoryStore) PutImplementation(impl models.SuggestionImplementation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.implementations[impl.ID] = impl
}

// withSuggestion fills the joined suggestion fields
func (m *MemoryStore) withSuggestion(impl models.SuggestionImplementation) models.SuggestionImplementation {
	if s, ok := m.suggestions[impl.SuggestionID]; ok {
		impl.SuggestionType = s.SuggestionType
		impl.SuggestionTitle = s.Title
		impl.TargetSection = s.TargetSection
	}
	return impl
}

func (m *MemoryStore) filterImplementations(userID, landingPageID string, keep func(models.SuggestionImplementation) bool) []models.SuggestionImplementation {
	var out []models.SuggestionImplementation
	for _, impl := range m.implementations {
		if impl.UserID != userID {
			continue
		}
		if landingPageID != "" && impl.LandingPageID != landingPageID {
			continue
		}
		if keep(impl) {
			out = append(out, m.withSuggestion(impl))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func pendingBefore(createdBefore time.Time) func(models.SuggestionImplementation) bool {
	return func(impl models.SuggestionImplementation) bool {
		return impl.BeforeAnalytics != nil && impl.AfterAnalytics == nil && !impl.CreatedAt.After(createdBefore)
	}
}

func (m *MemoryStore) EligibleImplementations(ctx context.Context, userID, landingPageID string, createdBefore time.Time) ([]models.SuggestionImplementation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.filterImplementations(userID, landingPageID, pendingBefore(createdBefore)), nil
}

func (m *MemoryStore) GetImplementation(ctx context.Context, id string) (*models.SuggestionImplementation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	impl, ok := m.implementations[id]
	if !ok {
		return nil, errs.NotFound("implementation", id)
	}
	impl = m.withSuggestion(impl)
	return &impl, nil
}

func (m *MemoryStore) SaveMeasurement(ctx context.Context, id string, after models.AnalyticsSnapshot, measuredAt time.Time, confidence models.ConfidenceLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	impl, ok := m.implementations[id]
	if !ok {
		return errs.NotFound("implementation", id)
	}
	impl.AfterAnalytics = &after
	impl.ImpactMeasuredAt = &measuredAt
	impl.Confidence = confidence
	m.implementations[id] = impl
	return nil
}

func (m *MemoryStore) MeasuredImplementations(ctx context.Context, userID, landingPageID string) ([]models.SuggestionImplementation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.filterImplementations(userID, landingPageID, func(impl models.SuggestionImplementation) bool {
		return impl.BeforeAnalytics != nil && impl.AfterAnalytics != nil
	}), nil
}

func (m *MemoryStore) CountPendingMeasurements(ctx context.Context, userID, landingPageID string, createdBefore time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.filterImplementations(userID, landingPageID, pendingBefore(createdBefore))), nil
}

func (m *MemoryStore) PagesWithPendingMeasurements(ctx context.Context, createdBefore time.Time) ([]models.PageRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[models.PageRef]bool)
	var refs []models.PageRef
	keep := pendingBefore(createdBefore)
	for _, impl := range m.implementations {
		ref := models.PageRef{UserID: impl.UserID, LandingPageID: impl.LandingPageID}
		if keep(impl) && !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].UserID != refs[j].UserID {
			return refs[i].UserID < refs[j].UserID
		}
		return refs[i].LandingPageID < refs[j].LandingPageID
	})
	return refs, nil
}
