package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hkmcoding/landie-next-sub000/internal/errs"
	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

//go:embed schema.sql
var schemaSQL string

// bioPreviewChars caps the bio text carried in a content summary
const bioPreviewChars = 300

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures
const uniqueViolation = "23505"

// PostgresStore persists suggestions, sessions and implementations, and reads
// the dashboard's page content tables
type PostgresStore struct {
	db *sql.DB
}

// Ensure PostgresStore implements the store interfaces
var (
	_ SuggestionStore     = (*PostgresStore)(nil)
	_ ImplementationStore = (*PostgresStore)(nil)
)

// NewPostgresStore opens a pooled connection and verifies it
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database (ping failed): %w", err)
	}

	logrus.Info("Connected to PostgreSQL")
	return &PostgresStore{db: db}, nil
}

// Migrate creates the engine's tables if they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const suggestionColumns = `id, user_id, landing_page_id, analysis_session_id, suggestion_type, title, description,
	reasoning, priority, target_section, suggested_content, confidence_score, status, created_at,
	implemented_at, dismissed_at, ai_model, ai_prompt_version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSuggestion(row rowScanner) (*models.Suggestion, error) {
	var (
		s             models.Suggestion
		sessionID     sql.NullString
		implementedAt sql.NullTime
		dismissedAt   sql.NullTime
	)
	err := row.Scan(&s.ID, &s.UserID, &s.LandingPageID, &sessionID, &s.SuggestionType, &s.Title, &s.Description,
		&s.Reasoning, &s.Priority, &s.TargetSection, &s.SuggestedContent, &s.ConfidenceScore, &s.Status, &s.CreatedAt,
		&implementedAt, &dismissedAt, &s.AIModel, &s.AIPromptVersion)
	if err != nil {
		return nil, err
	}
	s.AnalysisSessionID = sessionID.String
	if implementedAt.Valid {
		s.ImplementedAt = &implementedAt.Time
	}
	if dismissedAt.Valid {
		s.DismissedAt = &dismissedAt.Time
	}
	return &s, nil
}

func (s *PostgresStore) querySuggestions(ctx context.Context, query string, args ...any) ([]models.Suggestion, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Suggestion
	for rows.Next() {
		sug, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		out = append(out, *sug)
	}
	return out, rows.Err()
}

// PendingSuggestions returns pending suggestions, newest first
func (s *PostgresStore) PendingSuggestions(ctx context.Context, userID, landingPageID string) ([]models.Suggestion, error) {
	return s.ListSuggestions(ctx, userID, landingPageID, models.StatusPending)
}

// ListSuggestions returns suggestions for a page; an empty status returns all
func (s *PostgresStore) ListSuggestions(ctx context.Context, userID, landingPageID string, status models.SuggestionStatus) ([]models.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE user_id = $1 AND landing_page_id = $2`
	args := []any{userID, landingPageID}
	if status != "" {
		query += ` AND status = $3`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	out, err := s.querySuggestions(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetSuggestion(ctx context.Context, id string) (*models.Suggestion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+suggestionColumns+` FROM suggestions WHERE id = $1`, id)
	sug, err := scanSuggestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("suggestion", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestion %s: %w", id, err)
	}
	return sug, nil
}

func (s *PostgresStore) SaveAnalysisSession(ctx context.Context, session *models.AnalysisSession) error {
	snapshotJSON, err := json.Marshal(session.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_sessions (
			id, user_id, landing_page_id, analysis_type, trigger_event, snapshot, candidates_generated,
			suggestions_generated, prompt_tokens, completion_tokens, processing_time_ms, ai_model,
			prompt_version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		session.ID, session.UserID, session.LandingPageID, session.AnalysisType, session.TriggerEvent,
		snapshotJSON, session.CandidatesGenerated, session.SuggestionsGenerated, session.PromptTokens,
		session.CompletionTokens, session.ProcessingTime.Milliseconds(), session.AIModel,
		session.PromptVersion, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis session: %w", err)
	}
	return nil
}

// LatestAnalysisAt returns the time of the newest session, zero when none
func (s *PostgresStore) LatestAnalysisAt(ctx context.Context, userID, landingPageID string) (time.Time, error) {
	var latest sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT max(created_at) FROM analysis_sessions WHERE user_id = $1 AND landing_page_id = $2`,
		userID, landingPageID,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest analysis: %w", err)
	}
	return latest.Time, nil
}

// InsertSuggestions writes the batch with a single multi-row INSERT inside a
// transaction
func (s *PostgresStore) InsertSuggestions(ctx context.Context, suggestions []models.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	query, args := buildSuggestionInsert(suggestions)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert suggestions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit suggestions: %w", err)
	}
	return nil
}

const suggestionInsertColumns = 16

// buildSuggestionInsert renders one multi-row INSERT with numbered
// placeholders, suggestionInsertColumns per row
func buildSuggestionInsert(suggestions []models.Suggestion) (string, []any) {
	var (
		placeholders []string
		args         []any
	)
	for i, sug := range suggestions {
		ph := make([]string, suggestionInsertColumns)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", i*suggestionInsertColumns+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")

		var sessionID any
		if sug.AnalysisSessionID != "" {
			sessionID = sug.AnalysisSessionID
		}
		args = append(args, sug.ID, sug.UserID, sug.LandingPageID, sessionID, string(sug.SuggestionType),
			sug.Title, sug.Description, sug.Reasoning, string(sug.Priority), sug.TargetSection,
			sug.SuggestedContent, sug.ConfidenceScore, string(sug.Status), sug.CreatedAt, sug.AIModel,
			sug.AIPromptVersion)
	}

	query := `INSERT INTO suggestions (
			id, user_id, landing_page_id, analysis_session_id, suggestion_type, title, description,
			reasoning, priority, target_section, suggested_content, confidence_score, status, created_at,
			ai_model, ai_prompt_version
		) VALUES ` + strings.Join(placeholders, ", ")
	return query, args
}

// transitionColumns maps a target status to the timestamp it sets
var transitionColumns = map[models.SuggestionStatus]string{
	models.StatusImplemented: "implemented_at",
	models.StatusDismissed:   "dismissed_at",
}

func transitionQuery(status models.SuggestionStatus) (string, error) {
	column, ok := transitionColumns[status]
	if !ok {
		return "", fmt.Errorf("no transition to status %q: %w", status, errs.ErrInvalidTransition)
	}
	return fmt.Sprintf(`UPDATE suggestions SET status = $1, %s = $2 WHERE id = $3 AND status = 'pending'`, column), nil
}

// classifyFailedTransition explains why no pending row was updated, given the
// result of reading the row's current status
func classifyFailedTransition(suggestionID, current string, readErr error) error {
	if errors.Is(readErr, sql.ErrNoRows) {
		return errs.NotFound("suggestion", suggestionID)
	}
	if readErr != nil {
		return fmt.Errorf("failed to read suggestion status: %w", readErr)
	}
	return fmt.Errorf("suggestion %s is %s: %w", suggestionID, current, errs.ErrInvalidTransition)
}

// implementationInsertError maps a unique violation on suggestion_id to an
// invalid transition
func implementationInsertError(suggestionID string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("suggestion %s already has an implementation: %w", suggestionID, errs.ErrInvalidTransition)
	}
	return fmt.Errorf("failed to insert implementation: %w", err)
}

// transitionFromPending updates status only when the row is still pending and
// distinguishes unknown ids from invalid transitions
func transitionFromPending(ctx context.Context, tx *sql.Tx, suggestionID string, status models.SuggestionStatus, at time.Time) error {
	query, err := transitionQuery(status)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, string(status), at, suggestionID)
	if err != nil {
		return fmt.Errorf("failed to update suggestion status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM suggestions WHERE id = $1`, suggestionID).Scan(&current)
	return classifyFailedTransition(suggestionID, current, err)
}

func (s *PostgresStore) MarkImplemented(ctx context.Context, impl *models.SuggestionImplementation, at time.Time) error {
	before, err := marshalNullable(impl.BeforeAnalytics)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := transitionFromPending(ctx, tx, impl.SuggestionID, models.StatusImplemented, at); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO suggestion_implementations (
			id, suggestion_id, user_id, landing_page_id, before_analytics, implemented_content,
			partial_implementation, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		impl.ID, impl.SuggestionID, impl.UserID, impl.LandingPageID, before, impl.ImplementedContent,
		impl.PartialImplementation, impl.CreatedAt,
	)
	if err := implementationInsertError(impl.SuggestionID, err); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit implementation: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkDismissed(ctx context.Context, suggestionID string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := transitionFromPending(ctx, tx, suggestionID, models.StatusDismissed, at); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dismissal: %w", err)
	}
	return nil
}

const implementationColumns = `i.id, i.suggestion_id, i.user_id, i.landing_page_id, i.before_analytics,
	i.implemented_content, i.partial_implementation, i.after_analytics, i.impact_measured_at, i.confidence,
	i.created_at, s.suggestion_type, s.title, s.target_section`

func scanImplementation(row rowScanner) (*models.SuggestionImplementation, error) {
	var (
		impl       models.SuggestionImplementation
		before     []byte
		after      []byte
		measuredAt sql.NullTime
	)
	err := row.Scan(&impl.ID, &impl.SuggestionID, &impl.UserID, &impl.LandingPageID, &before,
		&impl.ImplementedContent, &impl.PartialImplementation, &after, &measuredAt, &impl.Confidence,
		&impl.CreatedAt, &impl.SuggestionType, &impl.SuggestionTitle, &impl.TargetSection)
	if err != nil {
		return nil, err
	}

	if impl.BeforeAnalytics, err = unmarshalNullable(before); err != nil {
		return nil, fmt.Errorf("failed to decode before_analytics: %w", err)
	}
	if impl.AfterAnalytics, err = unmarshalNullable(after); err != nil {
		return nil, fmt.Errorf("failed to decode after_analytics: %w", err)
	}
	if measuredAt.Valid {
		impl.ImpactMeasuredAt = &measuredAt.Time
	}
	return &impl, nil
}

func (s *PostgresStore) queryImplementations(ctx context.Context, query string, args ...any) ([]models.SuggestionImplementation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SuggestionImplementation
	for rows.Next() {
		impl, err := scanImplementation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan implementation: %w", err)
		}
		out = append(out, *impl)
	}
	return out, rows.Err()
}

// pageFilter appends the optional landing page condition
func pageFilter(query string, args []any, landingPageID string) (string, []any) {
	if landingPageID == "" {
		return query, args
	}
	args = append(args, landingPageID)
	return query + fmt.Sprintf(" AND i.landing_page_id = $%d", len(args)), args
}

func (s *PostgresStore) EligibleImplementations(ctx context.Context, userID, landingPageID string, createdBefore time.Time) ([]models.SuggestionImplementation, error) {
	query := `SELECT ` + implementationColumns + `
		FROM suggestion_implementations i JOIN suggestions s ON s.id = i.suggestion_id
		WHERE i.user_id = $1 AND i.before_analytics IS NOT NULL AND i.after_analytics IS NULL
		AND i.created_at <= $2`
	query, args := pageFilter(query, []any{userID, createdBefore}, landingPageID)
	query += ` ORDER BY i.created_at ASC`

	out, err := s.queryImplementations(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible implementations: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetImplementation(ctx context.Context, id string) (*models.SuggestionImplementation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+implementationColumns+`
		FROM suggestion_implementations i JOIN suggestions s ON s.id = i.suggestion_id
		WHERE i.id = $1`, id)
	impl, err := scanImplementation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("implementation", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get implementation %s: %w", id, err)
	}
	return impl, nil
}

func (s *PostgresStore) SaveMeasurement(ctx context.Context, id string, after models.AnalyticsSnapshot, measuredAt time.Time, confidence models.ConfidenceLevel) error {
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return fmt.Errorf("failed to marshal after_analytics: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE suggestion_implementations
		SET after_analytics = $1, impact_measured_at = $2, confidence = $3
		WHERE id = $4`,
		afterJSON, measuredAt, string(confidence), id,
	)
	if err != nil {
		return fmt.Errorf("failed to save measurement: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return errs.NotFound("implementation", id)
	}
	return nil
}

func (s *PostgresStore) MeasuredImplementations(ctx context.Context, userID, landingPageID string) ([]models.SuggestionImplementation, error) {
	query := `SELECT ` + implementationColumns + `
		FROM suggestion_implementations i JOIN suggestions s ON s.id = i.suggestion_id
		WHERE i.user_id = $1 AND i.before_analytics IS NOT NULL AND i.after_analytics IS NOT NULL`
	query, args := pageFilter(query, []any{userID}, landingPageID)
	query += ` ORDER BY i.impact_measured_at DESC`

	out, err := s.queryImplementations(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query measured implementations: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountPendingMeasurements(ctx context.Context, userID, landingPageID string, createdBefore time.Time) (int, error) {
	query := `SELECT count(*) FROM suggestion_implementations i
		WHERE i.user_id = $1 AND i.before_analytics IS NOT NULL AND i.after_analytics IS NULL
		AND i.created_at <= $2`
	query, args := pageFilter(query, []any{userID, createdBefore}, landingPageID)

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending measurements: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) PagesWithPendingMeasurements(ctx context.Context, createdBefore time.Time) ([]models.PageRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT user_id, landing_page_id FROM suggestion_implementations
		WHERE before_analytics IS NOT NULL AND after_analytics IS NULL AND created_at <= $1
		ORDER BY user_id, landing_page_id`, createdBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages with pending measurements: %w", err)
	}
	defer rows.Close()

	var refs []models.PageRef
	for rows.Next() {
		var ref models.PageRef
		if err := rows.Scan(&ref.UserID, &ref.LandingPageID); err != nil {
			return nil, fmt.Errorf("failed to scan page ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// PageContent summarizes the dashboard-owned content tables for one page
func (s *PostgresStore) PageContent(ctx context.Context, userID, landingPageID string) (*models.ContentSummary, error) {
	var (
		summary  models.ContentSummary
		headline sql.NullString
		bio      sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			lp.headline,
			lp.bio,
			(SELECT count(*) FROM services WHERE landing_page_id = lp.id),
			(SELECT count(*) FROM highlights WHERE landing_page_id = lp.id),
			(SELECT count(*) FROM testimonials WHERE landing_page_id = lp.id),
			(SELECT count(*) FROM social_links WHERE landing_page_id = lp.id)
		FROM landing_pages lp
		WHERE lp.id = $1 AND lp.user_id = $2`,
		landingPageID, userID,
	).Scan(&headline, &bio, &summary.ServicesCount, &summary.HighlightsCount, &summary.TestimonialsCount, &summary.SocialLinksCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("landing page", landingPageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}

	summary.Headline = headline.String
	summary.BioLength = len(bio.String)
	summary.BioWordCount = len(strings.Fields(bio.String))
	summary.BioText = truncateRunes(bio.String, bioPreviewChars)

	onboarding, err := s.onboarding(ctx, landingPageID)
	if err != nil {
		logrus.Warnf("Failed to read onboarding metadata for page %s: %v", landingPageID, err)
	}
	summary.Onboarding = onboarding

	return &summary, nil
}

// OwnsPage reports whether the landing page belongs to the user
func (s *PostgresStore) OwnsPage(ctx context.Context, userID, landingPageID string) (bool, error) {
	var owned bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM landing_pages WHERE id = $1 AND user_id = $2)`,
		landingPageID, userID,
	).Scan(&owned)
	if err != nil {
		return false, fmt.Errorf("failed to check page owner: %w", err)
	}
	return owned, nil
}

func (s *PostgresStore) onboarding(ctx context.Context, landingPageID string) (*models.OnboardingMeta, error) {
	var (
		meta                        models.OnboardingMeta
		profession, audience, goals sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT profession, target_audience, goal, completed
		FROM onboarding_progress WHERE landing_page_id = $1`, landingPageID,
	).Scan(&profession, &audience, &goals, &meta.Completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	meta.Profession = profession.String
	meta.TargetAudience = audience.String
	meta.Goal = goals.String
	return &meta, nil
}

func marshalNullable(a *models.AnalyticsSnapshot) (any, error) {
	if a == nil {
		return nil, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analytics snapshot: %w", err)
	}
	return data, nil
}

func unmarshalNullable(data []byte) (*models.AnalyticsSnapshot, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var a models.AnalyticsSnapshot
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
