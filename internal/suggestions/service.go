package suggestions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hkmcoding/landie-next-sub000/internal/archive"
	"github.com/hkmcoding/landie-next-sub000/internal/config"
	"github.com/hkmcoding/landie-next-sub000/internal/errs"
	"github.com/hkmcoding/landie-next-sub000/internal/llm"
	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/hkmcoding/landie-next-sub000/internal/refine"
	"github.com/hkmcoding/landie-next-sub000/internal/similarity"
	"github.com/hkmcoding/landie-next-sub000/internal/snapshot"
	"github.com/hkmcoding/landie-next-sub000/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	generationMaxTokens   = 2000
	generationTemperature = 0.7
)

// AnalyzeRequest identifies the page to analyze and why
type AnalyzeRequest struct {
	UserID        string
	LandingPageID string
	AnalysisType  string
	TriggerEvent  string
}

// AnalyzeResult is the outcome of a successful generation run
type AnalyzeResult struct {
	Suggestions  []models.Suggestion    `json:"suggestions"`
	Session      models.AnalysisSession `json:"session"`
	UsedFallback bool                   `json:"used_fallback"` // selector fell back to score ranking
}

// ImplementRequest carries what the owner actually applied
type ImplementRequest struct {
	Content string
	Partial bool
}

// Service generates suggestions and manages their lifecycle
type Service struct {
	config   *config.Config
	store    storage.SuggestionStore
	reader   snapshot.Reader
	model    llm.Client
	selector *refine.Selector
	scorer   similarity.Scorer
	archive  archive.Archive // optional
	now      func() time.Time
	newID    func() string
}

// NewService creates a suggestion service. archive may be nil.
func NewService(cfg *config.Config, store storage.SuggestionStore, reader snapshot.Reader, model llm.Client, arch archive.Archive) *Service {
	return &Service{
		config:   cfg,
		store:    store,
		reader:   reader,
		model:    model,
		selector: refine.NewSelector(model),
		scorer:   similarity.Jaccard{},
		archive:  arch,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Analyze runs one generation: snapshot, prompt, model call, refinement and
// persistence. Failures after the prompt stage are returned as
// *errs.AnalysisFailed.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	if s.model == nil {
		return nil, &errs.ConfigurationError{Setting: "MODEL_PROVIDER", Reason: "no model client configured"}
	}
	if req.AnalysisType == "" {
		req.AnalysisType = AnalysisComprehensive
	}
	if !ValidAnalysisType(req.AnalysisType) {
		return nil, fmt.Errorf("unknown analysis type %q: %w", req.AnalysisType, errs.ErrInvalidInput)
	}
	if req.TriggerEvent == "" {
		req.TriggerEvent = "manual"
	}

	started := s.now()
	logger := logrus.WithFields(logrus.Fields{
		"user_id":         req.UserID,
		"landing_page_id": req.LandingPageID,
		"analysis_type":   req.AnalysisType,
	})

	snap, err := s.reader.Read(ctx, req.UserID, req.LandingPageID)
	if err != nil {
		logger.Warnf("Snapshot unavailable, analyzing with default metrics: %v", err)
		snap = snapshot.Default(req.UserID, req.LandingPageID)
	}

	existing, err := s.store.PendingSuggestions(ctx, req.UserID, req.LandingPageID)
	if err != nil {
		return nil, &errs.AnalysisFailed{Stage: errs.StagePrompt, Cause: &errs.PersistenceError{Op: "load_pending", Cause: err}}
	}

	userPrompt := BuildUserPrompt(*snap, req.AnalysisType, existing)
	if estimated := llm.EstimateTokens(systemPrompt, userPrompt); estimated > s.config.MaxInputTokens {
		return nil, fmt.Errorf("prompt needs about %d tokens, limit is %d: %w", estimated, s.config.MaxInputTokens, errs.ErrInputTooLarge)
	}

	completion, err := s.model.Complete(ctx, llm.Request{
		System:      systemPrompt,
		User:        userPrompt,
		MaxTokens:   generationMaxTokens,
		Temperature: generationTemperature,
	})
	if err != nil {
		return nil, &errs.AnalysisFailed{Stage: errs.StageModel, Cause: err}
	}

	payloads, err := llm.ParseSuggestions(completion.Content)
	if err != nil {
		return nil, &errs.AnalysisFailed{Stage: errs.StageParse, Cause: err}
	}

	candidates := make([]models.Suggestion, 0, len(payloads))
	for _, p := range payloads {
		candidates = append(candidates, p.ToSuggestion())
	}

	unique := refine.Dedupe(s.scorer, candidates, existing)
	consolidated := refine.Consolidate(unique)
	selection := s.selector.SelectBest(ctx, consolidated, *snap)

	logger.WithFields(logrus.Fields{
		"candidates":   len(candidates),
		"unique":       len(unique),
		"consolidated": len(consolidated),
		"selected":     len(selection.Suggestions),
		"fallback":     selection.UsedFallback,
	}).Info("Suggestions refined")

	now := s.now()
	session := models.AnalysisSession{
		ID:                   s.newID(),
		UserID:               req.UserID,
		LandingPageID:        req.LandingPageID,
		AnalysisType:         req.AnalysisType,
		TriggerEvent:         req.TriggerEvent,
		Snapshot:             *snap,
		CandidatesGenerated:  len(candidates),
		SuggestionsGenerated: len(selection.Suggestions),
		PromptTokens:         completion.PromptTokens,
		CompletionTokens:     completion.CompletionTokens,
		AIModel:              modelName(completion, s.model),
		PromptVersion:        s.config.PromptVersion,
		CreatedAt:            now,
	}
	if sel := selection.Completion; sel != nil {
		session.PromptTokens += sel.PromptTokens
		session.CompletionTokens += sel.CompletionTokens
	}
	session.ProcessingTime = now.Sub(started)

	final := make([]models.Suggestion, len(selection.Suggestions))
	for i, sug := range selection.Suggestions {
		sug.ID = s.newID()
		sug.UserID = req.UserID
		sug.LandingPageID = req.LandingPageID
		sug.AnalysisSessionID = session.ID
		sug.Status = models.StatusPending
		sug.CreatedAt = now
		sug.AIModel = session.AIModel
		sug.AIPromptVersion = session.PromptVersion
		final[i] = sug
	}

	if err := s.store.SaveAnalysisSession(ctx, &session); err != nil {
		return nil, &errs.AnalysisFailed{Stage: errs.StageSession, Cause: &errs.PersistenceError{Op: "save_session", Cause: err}}
	}

	if len(final) > 0 {
		if err := s.store.InsertSuggestions(ctx, final); err != nil {
			return nil, &errs.AnalysisFailed{
				Stage:        errs.StagePersist,
				SessionSaved: true,
				Cause:        &errs.PersistenceError{Op: "insert_suggestions", Cause: err},
			}
		}
	}

	if s.archive != nil {
		record := archive.SessionRecord{Session: session, Suggestions: final}
		if err := archive.StoreSession(ctx, s.archive, record); err != nil {
			logger.Warnf("Failed to archive analysis session %s: %v", session.ID, err)
		}
	}

	logger.WithFields(logrus.Fields{
		"session_id":  session.ID,
		"suggestions": len(final),
		"tokens":      session.PromptTokens + session.CompletionTokens,
	}).Info("Analysis completed")

	return &AnalyzeResult{
		Suggestions:  final,
		Session:      session,
		UsedFallback: selection.UsedFallback,
	}, nil
}

func modelName(c *llm.Completion, client llm.Client) string {
	if c.Model != "" {
		return c.Model
	}
	return client.Model()
}

// List returns a page's suggestions, newest first. An empty status lists all.
func (s *Service) List(ctx context.Context, userID, landingPageID string, status models.SuggestionStatus) ([]models.Suggestion, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, errs.ErrInvalidInput)
	}
	list, err := s.store.ListSuggestions(ctx, userID, landingPageID, status)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "list_suggestions", Cause: err}
	}
	return list, nil
}

// Implement moves a pending suggestion to implemented and records a
// before-snapshot for later impact measurement. A failed snapshot read is
// stored as a missing before-snapshot, which excludes the implementation
// from measurement.
func (s *Service) Implement(ctx context.Context, suggestionID, userID string, req ImplementRequest) (*models.SuggestionImplementation, error) {
	sug, err := s.owned(ctx, suggestionID, userID)
	if err != nil {
		return nil, err
	}
	if sug.Status != models.StatusPending {
		return nil, fmt.Errorf("suggestion %s is %s: %w", sug.ID, sug.Status, errs.ErrInvalidTransition)
	}

	impl := &models.SuggestionImplementation{
		ID:                    s.newID(),
		SuggestionID:          sug.ID,
		UserID:                sug.UserID,
		LandingPageID:         sug.LandingPageID,
		ImplementedContent:    req.Content,
		PartialImplementation: req.Partial,
		SuggestionType:        sug.SuggestionType,
		SuggestionTitle:       sug.Title,
		TargetSection:         sug.TargetSection,
	}
	if impl.ImplementedContent == "" {
		impl.ImplementedContent = sug.SuggestedContent
	}

	snap, err := s.reader.Read(ctx, sug.UserID, sug.LandingPageID)
	if err != nil {
		logrus.Warnf("No before-snapshot for suggestion %s, impact will not be measurable: %v", sug.ID, err)
	} else {
		before := snap.Analytics
		impl.BeforeAnalytics = &before
	}

	now := s.now()
	impl.CreatedAt = now
	if err := s.store.MarkImplemented(ctx, impl, now); err != nil {
		return nil, storeErr("mark_implemented", err)
	}

	logrus.WithFields(logrus.Fields{
		"suggestion_id":     sug.ID,
		"implementation_id": impl.ID,
		"partial":           req.Partial,
	}).Info("Suggestion implemented")
	return impl, nil
}

// Dismiss moves a pending suggestion to dismissed
func (s *Service) Dismiss(ctx context.Context, suggestionID, userID string) error {
	if _, err := s.owned(ctx, suggestionID, userID); err != nil {
		return err
	}
	if err := s.store.MarkDismissed(ctx, suggestionID, s.now()); err != nil {
		return storeErr("mark_dismissed", err)
	}
	logrus.Infof("Suggestion %s dismissed", suggestionID)
	return nil
}

// ArchivedSession loads a generation run from the archive
func (s *Service) ArchivedSession(ctx context.Context, userID, landingPageID, sessionID string) (*archive.SessionRecord, error) {
	if s.archive == nil {
		return nil, &errs.ConfigurationError{Setting: "AZURE_STORAGE_ACCOUNT", Reason: "session archive is not configured"}
	}
	return archive.LoadSession(ctx, s.archive, userID, landingPageID, sessionID)
}

// owned loads a suggestion and hides it from other users. An empty userID
// skips the ownership check.
func (s *Service) owned(ctx context.Context, suggestionID, userID string) (*models.Suggestion, error) {
	sug, err := s.store.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return nil, storeErr("get_suggestion", err)
	}
	if userID != "" && sug.UserID != userID {
		return nil, errs.NotFound("suggestion", suggestionID)
	}
	return sug, nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrInvalidTransition) {
		return err
	}
	return &errs.PersistenceError{Op: op, Cause: err}
}
