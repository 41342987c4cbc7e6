package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hkmcoding/landie-next-sub000/internal/errs"
	"github.com/hkmcoding/landie-next-sub000/internal/models"
)

// SuggestionPayload is one element of the model's "suggestions" array
type SuggestionPayload struct {
	SuggestionType   string   `json:"suggestion_type"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Reasoning        string   `json:"reasoning"`
	Priority         string   `json:"priority"`
	TargetSection    string   `json:"target_section"`
	SuggestedContent string   `json:"suggested_content"`
	ConfidenceScore  *float64 `json:"confidence_score"`
}

type suggestionsEnvelope struct {
	Suggestions *[]SuggestionPayload `json:"suggestions"`
}

type selectionEnvelope struct {
	SelectedIndices *[]int `json:"selected_indices"`
}

// ToSuggestion converts a validated payload into a pending suggestion
func (p SuggestionPayload) ToSuggestion() models.Suggestion {
	s := models.Suggestion{
		SuggestionType:   models.NormalizeSuggestionType(p.SuggestionType),
		Title:            strings.TrimSpace(p.Title),
		Description:      strings.TrimSpace(p.Description),
		Reasoning:        strings.TrimSpace(p.Reasoning),
		Priority:         models.Priority(strings.ToLower(strings.TrimSpace(p.Priority))),
		TargetSection:    strings.ToLower(strings.TrimSpace(p.TargetSection)),
		SuggestedContent: p.SuggestedContent,
		Status:           models.StatusPending,
	}
	if p.ConfidenceScore != nil {
		s.ConfidenceScore = *p.ConfidenceScore
	}
	return s
}

func (p SuggestionPayload) validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(p.Description) == "" {
		return fmt.Errorf("description is required for %q", p.Title)
	}
	if !models.Priority(strings.ToLower(strings.TrimSpace(p.Priority))).Valid() {
		return fmt.Errorf("invalid priority %q for %q", p.Priority, p.Title)
	}
	if p.ConfidenceScore == nil {
		return fmt.Errorf("confidence_score is required for %q", p.Title)
	}
	if *p.ConfidenceScore < 0 || *p.ConfidenceScore > 1 {
		return fmt.Errorf("confidence_score %v out of range for %q", *p.ConfidenceScore, p.Title)
	}
	return nil
}

// ParseSuggestions decodes {"suggestions":[...]} and validates every entry
func ParseSuggestions(content string) ([]SuggestionPayload, error) {
	var env suggestionsEnvelope
	if err := decodeStrict(content, &env); err != nil {
		return nil, &errs.ParseError{Payload: content, Cause: err}
	}
	if env.Suggestions == nil {
		return nil, &errs.ParseError{Payload: content, Cause: fmt.Errorf("missing suggestions array")}
	}
	if len(*env.Suggestions) == 0 {
		return nil, &errs.ParseError{Payload: content, Cause: fmt.Errorf("empty suggestions array")}
	}

	for i, p := range *env.Suggestions {
		if err := p.validate(); err != nil {
			return nil, &errs.ParseError{Payload: content, Cause: fmt.Errorf("suggestion %d: %w", i, err)}
		}
	}
	return *env.Suggestions, nil
}

// ParseSelection decodes {"selected_indices":[...]}
func ParseSelection(content string) ([]int, error) {
	var env selectionEnvelope
	if err := decodeStrict(content, &env); err != nil {
		return nil, &errs.ParseError{Payload: content, Cause: err}
	}
	if env.SelectedIndices == nil {
		return nil, &errs.ParseError{Payload: content, Cause: fmt.Errorf("missing selected_indices array")}
	}
	return *env.SelectedIndices, nil
}

// decodeStrict rejects unknown top-level keys and trailing data
func decodeStrict(content string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(stripFences(content))))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON object")
	}
	return nil
}

// stripFences removes a ```json ... ``` wrapper some models add
func stripFences(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
