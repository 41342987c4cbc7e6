package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hkmcoding/landie-next-sub000/internal/errs"
	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSuggestionInsert(t *testing.T) {
	created := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	suggestions := []models.Suggestion{
		{ID: "s-1", UserID: "user-1", LandingPageID: "page-1", AnalysisSessionID: "sess-1", Title: "First", Status: models.StatusPending, CreatedAt: created},
		{ID: "s-2", UserID: "user-1", LandingPageID: "page-1", Title: "Second", AIPromptVersion: "v2"},
	}

	query, args := buildSuggestionInsert(suggestions)

	require.Len(t, args, 2*suggestionInsertColumns)
	assert.Contains(t, query, "($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)")
	assert.Contains(t, query, "($17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32)")
	assert.NotContains(t, query, "$33")

	columns := query[strings.Index(query, "(")+1 : strings.Index(query, ")")]
	assert.Len(t, strings.Split(columns, ","), suggestionInsertColumns)

	assert.Equal(t, "s-1", args[0])
	assert.Equal(t, "sess-1", args[3])
	assert.Equal(t, "First", args[5])
	assert.Equal(t, "pending", args[12])
	assert.Equal(t, created, args[13])
	assert.Equal(t, "s-2", args[suggestionInsertColumns])
	assert.Nil(t, args[suggestionInsertColumns+3], "empty session id is stored as NULL")
	assert.Equal(t, "v2", args[2*suggestionInsertColumns-1])
}

func TestPageFilter(t *testing.T) {
	tests := []struct {
		name      string
		page      string
		wantQuery string
		wantArgs  []any
	}{
		{name: "all pages", page: "", wantQuery: "WHERE i.user_id = $1", wantArgs: []any{"user-1"}},
		{name: "one page", page: "page-1", wantQuery: "WHERE i.user_id = $1 AND i.landing_page_id = $2", wantArgs: []any{"user-1", "page-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := pageFilter("WHERE i.user_id = $1", []any{"user-1"}, tt.page)
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestTransitionQuery(t *testing.T) {
	query, err := transitionQuery(models.StatusImplemented)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE suggestions SET status = $1, implemented_at = $2 WHERE id = $3 AND status = 'pending'`, query)

	query, err = transitionQuery(models.StatusDismissed)
	require.NoError(t, err)
	assert.Contains(t, query, "dismissed_at = $2")

	_, err = transitionQuery(models.StatusPending)
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestClassifyFailedTransition(t *testing.T) {
	tests := []struct {
		name    string
		current string
		readErr error
		wantIs  error
		wantMsg string
	}{
		{name: "unknown id", readErr: sql.ErrNoRows, wantIs: errs.ErrNotFound, wantMsg: "suggestion s-1"},
		{name: "already dismissed", current: "dismissed", wantIs: errs.ErrInvalidTransition, wantMsg: "suggestion s-1 is dismissed"},
		{name: "read failure", readErr: errors.New("conn reset"), wantMsg: "failed to read suggestion status: conn reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyFailedTransition("s-1", tt.current, tt.readErr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			} else {
				assert.NotErrorIs(t, err, errs.ErrNotFound)
				assert.NotErrorIs(t, err, errs.ErrInvalidTransition)
			}
		})
	}
}

func TestImplementationInsertError(t *testing.T) {
	assert.NoError(t, implementationInsertError("s-1", nil))

	err := implementationInsertError("s-1", &pq.Error{Code: uniqueViolation})
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)

	wrapped := fmt.Errorf("exec: %w", &pq.Error{Code: uniqueViolation})
	assert.ErrorIs(t, implementationInsertError("s-1", wrapped), errs.ErrInvalidTransition)

	err = implementationInsertError("s-1", &pq.Error{Code: "23503"})
	assert.NotErrorIs(t, err, errs.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "failed to insert implementation")
}
