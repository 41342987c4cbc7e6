package models

import (
	"strings"
	"time"
)

// AnalyticsSnapshot is a point-in-time read of a landing page's traffic
type AnalyticsSnapshot struct {
	PageViews          int       `json:"page_views"`
	UniqueVisitors     int       `json:"unique_visitors"`
	CTAClicks          int       `json:"cta_clicks"`
	ConversionRate     float64   `json:"conversion_rate"`      // percent, cta_clicks/page_views*100
	AvgSessionDuration float64   `json:"avg_session_duration"` // seconds
	Timestamp          time.Time `json:"timestamp"`
}

// WithDerivedConversion fills ConversionRate from clicks and views when the
// source did not supply one.
func (a AnalyticsSnapshot) WithDerivedConversion() AnalyticsSnapshot {
	if a.ConversionRate == 0 && a.PageViews > 0 {
		a.ConversionRate = float64(a.CTAClicks) / float64(a.PageViews) * 100
	}
	return a
}

// OnboardingMeta is the optional wizard metadata attached to a page
type OnboardingMeta struct {
	Profession     string `json:"profession,omitempty"`
	TargetAudience string `json:"target_audience,omitempty"`
	Goal           string `json:"goal,omitempty"`
	Completed      bool   `json:"completed"`
}

// ContentSummary describes the page's current content
type ContentSummary struct {
	Headline          string          `json:"headline"`
	BioText           string          `json:"bio_text"` // truncated
	BioLength         int             `json:"bio_length"`
	BioWordCount      int             `json:"bio_word_count"`
	ServicesCount     int             `json:"services_count"`
	HighlightsCount   int             `json:"highlights_count"`
	TestimonialsCount int             `json:"testimonials_count"`
	SocialLinksCount  int             `json:"social_links_count"`
	Onboarding        *OnboardingMeta `json:"onboarding,omitempty"`
}

// Snapshot bundles analytics and content for one (user, page) pair
type Snapshot struct {
	UserID        string            `json:"user_id"`
	LandingPageID string            `json:"landing_page_id"`
	Analytics     AnalyticsSnapshot `json:"analytics"`
	Content       ContentSummary    `json:"content"`
	IsDefault     bool              `json:"is_default"` // true when the all-zero fallback was used
}

// DataPoint is one day of a metric time series
type DataPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// DailyMetrics holds the per-day series used for trend analysis
type DailyMetrics struct {
	PageViews      []DataPoint `json:"page_views"`
	CTAClicks      []DataPoint `json:"cta_clicks"`
	ConversionRate []DataPoint `json:"conversion_rate"`
}

type SuggestionType string

const (
	SuggestionTypePerformance SuggestionType = "performance"
	SuggestionTypeContent     SuggestionType = "content"
	SuggestionTypeConversion  SuggestionType = "conversion"
	SuggestionTypeEngagement  SuggestionType = "engagement"
	SuggestionTypeSEO         SuggestionType = "seo"
)

// Valid reports whether t is one of the known suggestion types
func (t SuggestionType) Valid() bool {
	switch t {
	case SuggestionTypePerformance, SuggestionTypeContent, SuggestionTypeConversion,
		SuggestionTypeEngagement, SuggestionTypeSEO:
		return true
	}
	return false
}

// NormalizeSuggestionType maps loose model output ("Content | conversion",
// "seo/content") to the first valid type, defaulting to content.
func NormalizeSuggestionType(raw string) SuggestionType {
	fields := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return r == '|' || r == ',' || r == '/' || r == ' '
	})
	for _, f := range fields {
		if t := SuggestionType(strings.TrimSpace(f)); t.Valid() {
			return t
		}
	}
	return SuggestionTypeContent
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Weight is used by the candidate scoring formula
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

func (p Priority) Valid() bool {
	return p.Weight() > 0
}

type SuggestionStatus string

const (
	StatusPending     SuggestionStatus = "pending"
	StatusTesting     SuggestionStatus = "testing"
	StatusImplemented SuggestionStatus = "implemented"
	StatusDismissed   SuggestionStatus = "dismissed"
)

func (s SuggestionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusTesting, StatusImplemented, StatusDismissed:
		return true
	}
	return false
}

// DefaultSection is the consolidation group for suggestions without a target
const DefaultSection = "general"

// Suggestion is an optimization proposal for a landing page
type Suggestion struct {
	ID                string           `json:"id"`
	UserID            string           `json:"user_id"`
	LandingPageID     string           `json:"landing_page_id"`
	AnalysisSessionID string           `json:"analysis_session_id,omitempty"`
	SuggestionType    SuggestionType   `json:"suggestion_type"`
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	Reasoning         string           `json:"reasoning"`
	Priority          Priority         `json:"priority"`
	TargetSection     string           `json:"target_section"` // "bio", "services", "testimonials", "cta", "header", "highlights"
	SuggestedContent  string           `json:"suggested_content"`
	ConfidenceScore   float64          `json:"confidence_score"` // 0-1
	Status            SuggestionStatus `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	ImplementedAt     *time.Time       `json:"implemented_at,omitempty"`
	DismissedAt       *time.Time       `json:"dismissed_at,omitempty"`
	AIModel           string           `json:"ai_model"`
	AIPromptVersion   string           `json:"ai_prompt_version"`
}

// Section returns the target section, or "general" when none was given
func (s Suggestion) Section() string {
	if sec := strings.TrimSpace(s.TargetSection); sec != "" {
		return strings.ToLower(sec)
	}
	return DefaultSection
}

// AnalysisSession is the audit record of one generation run
type AnalysisSession struct {
	ID                   string        `json:"id"`
	UserID               string        `json:"user_id"`
	LandingPageID        string        `json:"landing_page_id"`
	AnalysisType         string        `json:"analysis_type"`
	TriggerEvent         string        `json:"trigger_event"`
	Snapshot             Snapshot      `json:"snapshot"`
	CandidatesGenerated  int           `json:"candidates_generated"`
	SuggestionsGenerated int           `json:"suggestions_generated"`
	PromptTokens         int           `json:"prompt_tokens"`
	CompletionTokens     int           `json:"completion_tokens"`
	ProcessingTime       time.Duration `json:"processing_time"`
	AIModel              string        `json:"ai_model"`
	PromptVersion        string        `json:"prompt_version"`
	CreatedAt            time.Time     `json:"created_at"`
}

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// SuggestionImplementation records that a suggestion was acted on
type SuggestionImplementation struct {
	ID                    string             `json:"id"`
	SuggestionID          string             `json:"suggestion_id"`
	UserID                string             `json:"user_id"`
	LandingPageID         string             `json:"landing_page_id"`
	BeforeAnalytics       *AnalyticsSnapshot `json:"before_analytics,omitempty"`
	ImplementedContent    string             `json:"implemented_content"`
	PartialImplementation bool               `json:"partial_implementation"`
	AfterAnalytics        *AnalyticsSnapshot `json:"after_analytics,omitempty"`
	ImpactMeasuredAt      *time.Time         `json:"impact_measured_at,omitempty"`
	Confidence            ConfidenceLevel    `json:"confidence,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`

	// Joined from the suggestion when listing for comparisons
	SuggestionType  SuggestionType `json:"suggestion_type,omitempty"`
	SuggestionTitle string         `json:"suggestion_title,omitempty"`
	TargetSection   string         `json:"target_section,omitempty"`
}

// Measured reports whether an after-snapshot has been attached
func (i SuggestionImplementation) Measured() bool {
	return i.AfterAnalytics != nil && i.ImpactMeasuredAt != nil
}

// PageRef identifies a landing page owned by a user
type PageRef struct {
	UserID        string `json:"user_id"`
	LandingPageID string `json:"landing_page_id"`
}
