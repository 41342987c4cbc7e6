package archive

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockBlobArchive keeps blobs in memory
type MockBlobArchive struct {
	data map[string][]byte
}

func NewMockBlobArchive() *MockBlobArchive {
	return &MockBlobArchive{data: make(map[string][]byte)}
}

func (m *MockBlobArchive) Store(ctx context.Context, name string, data []byte) error {
	m.data[name] = data
	return nil
}

func (m *MockBlobArchive) Retrieve(ctx context.Context, name string) ([]byte, error) {
	if data, exists := m.data[name]; exists {
		return data, nil
	}
	return nil, fmt.Errorf("blob not found: %s", name)
}

func TestStoreAndLoadSession(t *testing.T) {
	ctx := context.Background()
	blobs := NewMockBlobArchive()

	record := SessionRecord{
		Session: models.AnalysisSession{
			ID:                   "sess-1",
			UserID:               "user-1",
			LandingPageID:        "page-1",
			SuggestionsGenerated: 1,
			ProcessingTime:       1500 * time.Millisecond,
		},
		Suggestions: []models.Suggestion{{ID: "s1", Title: "Add testimonials"}},
	}

	require.NoError(t, StoreSession(ctx, blobs, record))
	assert.Contains(t, blobs.data, "sessions/user-1/page-1/sess-1.json")

	loaded, err := LoadSession(ctx, blobs, "user-1", "page-1", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, record.Session.ProcessingTime, loaded.Session.ProcessingTime)
	assert.Equal(t, "Add testimonials", loaded.Suggestions[0].Title)

	_, err = LoadSession(ctx, blobs, "user-1", "page-1", "missing")
	assert.Error(t, err)
}
