package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snipq/snipq/internal/provider"
	"github.com/snipq/snipq/internal/storage"
)

func setupLog(t *testing.T) *Log {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	db, err := storage.OpenSQLite(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewLog(db)
}

func TestBeginAndComplete(t *testing.T) {
	l := setupLog(t)
	ctx := context.Background()

	require.NoError(t, l.Begin(ctx, "d-1", "tab-42", provider.OpenAI, "gpt-4o-mini"))

	recs, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, StatusFetching, recs[0].Status)
	assert.Nil(t, recs[0].CompletedAt)

	require.NoError(t, l.Complete(ctx, "d-1", StatusDelivered, false, 1, nil))

	recs, err = l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, StatusDelivered, recs[0].Status)
	assert.Equal(t, 1, recs[0].Attempts)
	require.NotNil(t, recs[0].CompletedAt)
}

func TestCompleteRejectsNonTerminalStatus(t *testing.T) {
	l := setupLog(t)
	assert.Error(t, l.Complete(context.Background(), "d-1", StatusFetching, false, 0, nil))
}

func TestCompleteUnknownID(t *testing.T) {
	l := setupLog(t)
	assert.Error(t, l.Complete(context.Background(), "missing", StatusFailed, false, 1, nil))
}

func TestRecentOrderAndLimit(t *testing.T) {
	l := setupLog(t)
	ctx := context.Background()

	for _, id := range []string{"d-1", "d-2", "d-3"} {
		require.NoError(t, l.Begin(ctx, id, "tab", provider.Gemini, "m"))
	}

	recs, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "d-3", recs[0].ID)
	assert.Equal(t, "d-2", recs[1].ID)
}

func TestFailureRecordsError(t *testing.T) {
	l := setupLog(t)
	ctx := context.Background()

	require.NoError(t, l.Begin(ctx, "d-err", "tab", provider.Anthropic, "m"))
	msg := "anthropic: invalid x-api-key"
	require.NoError(t, l.Complete(ctx, "d-err", StatusFailed, false, 4, &msg))

	recs, err := l.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].LastError)
	assert.Equal(t, msg, *recs[0].LastError)
}

func TestPrune(t *testing.T) {
	l := setupLog(t)
	ctx := context.Background()

	require.NoError(t, l.Begin(ctx, "d-old", "tab", provider.OpenAI, "m"))

	// Nothing is older than an hour yet.
	n, err := l.Prune(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	// A tiny retention prunes everything already written.
	time.Sleep(5 * time.Millisecond)
	n, err = l.Prune(ctx, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGetByFullID(t *testing.T) {
	l := setupLog(t)
	ctx := context.Background()

	require.NoError(t, l.Begin(ctx, "aaaa-1111", "tab", provider.OpenAI, "gpt-4o-mini"))

	rec, err := l.Get(ctx, "aaaa-1111")
	require.NoError(t, err)
	assert.Equal(t, "aaaa-1111", rec.ID)
	assert.Equal(t, provider.OpenAI, rec.Provider)

	_, err = l.Get(ctx, "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestFindByPrefix(t *testing.T) {
	l := setupLog(t)
	ctx := context.Background()

	require.NoError(t, l.Begin(ctx, "aaaa-1111", "tab-1", provider.OpenAI, "m"))
	require.NoError(t, l.Begin(ctx, "aaaa-2222", "tab-2", provider.OpenAI, "m"))
	require.NoError(t, l.Begin(ctx, "bbbb-3333", "tab-3", provider.Gemini, "m"))

	matches, err := l.FindByPrefix(ctx, "aaaa")
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = l.FindByPrefix(ctx, "bbbb-3333")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "bbbb-3333", matches[0].ID)

	matches, err = l.FindByPrefix(ctx, "cccc")
	require.NoError(t, err)
	assert.Empty(t, matches)
}
