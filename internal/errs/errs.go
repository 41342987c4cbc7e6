// Package errs holds the typed failures surfaced by the engine.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is wrapped when a suggestion or implementation id is unknown
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a status change is attempted
	// from a suggestion that is no longer pending
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInputTooLarge is returned before any model call when the prompt
	// would exceed the token budget
	ErrInputTooLarge = errors.New("input too large")

	// ErrInvalidInput marks requests rejected before any work starts, such
	// as an unknown analysis type or status filter
	ErrInvalidInput = errors.New("invalid input")
)

// NotFound wraps ErrNotFound with the entity and id
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// ConfigurationError signals missing or invalid settings such as model
// credentials. It is never retried.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Setting, e.Reason)
}

// ExternalModelError covers transport failures, non-2xx replies and refusals
// from the suggestion model.
type ExternalModelError struct {
	Provider   string
	StatusCode int
	Cause      error
}

func (e *ExternalModelError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s model call failed with status %d: %v", e.Provider, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s model call failed: %v", e.Provider, e.Cause)
}

func (e *ExternalModelError) Unwrap() error { return e.Cause }

// ParseError is returned when the model reply does not match the expected
// JSON shape.
type ParseError struct {
	Payload string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse model response: %v", e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// PersistenceError marks a data-store failure so callers can tell
// "generated but not saved" apart from "failed to generate".
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// Stages reported by AnalysisFailed
const (
	StagePrompt   = "prompt"
	StageModel    = "model"
	StageParse    = "parse"
	StageSession  = "persist_session"
	StagePersist  = "persist_suggestions"
	StageSnapshot = "snapshot"
)

// AnalysisFailed is the single failure type returned by suggestion
// generation. SessionSaved is true when the audit session was written
// before the failure.
type AnalysisFailed struct {
	Stage        string
	SessionSaved bool
	Cause        error
}

func (e *AnalysisFailed) Error() string {
	if e.SessionSaved {
		return fmt.Sprintf("analysis failed at %s (session saved): %v", e.Stage, e.Cause)
	}
	return fmt.Sprintf("analysis failed at %s: %v", e.Stage, e.Cause)
}

func (e *AnalysisFailed) Unwrap() error { return e.Cause }

// IsPersistence reports whether err carries a PersistenceError
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
