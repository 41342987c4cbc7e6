package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hkmcoding/landie-next-sub000/internal/models"
)

// SessionPath is the blob name for an analysis session
func SessionPath(userID, landingPageID, sessionID string) string {
	return fmt.Sprintf("sessions/%s/%s/%s.json", userID, landingPageID, sessionID)
}

// SessionRecord is the archived form of a generation run
type SessionRecord struct {
	Session     models.AnalysisSession `json:"session"`
	Suggestions []models.Suggestion    `json:"suggestions"`
}

// StoreSession writes the session and its suggestions as one JSON document
func StoreSession(ctx context.Context, a Archive, record SessionRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}
	s := record.Session
	return a.Store(ctx, SessionPath(s.UserID, s.LandingPageID, s.ID), data)
}

// LoadSession reads an archived session back
func LoadSession(ctx context.Context, a Archive, userID, landingPageID, sessionID string) (*SessionRecord, error) {
	data, err := a.Retrieve(ctx, SessionPath(userID, landingPageID, sessionID))
	if err != nil {
		return nil, err
	}

	var record SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode session record: %w", err)
	}
	return &record, nil
}
