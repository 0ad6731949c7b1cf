package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/bizchat-ai/bizchat/internal/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRequestLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, s.CreateRequest(ctx, id, "hello"))

	req, err := s.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, "hello", req.UserMessage)

	require.NoError(t, s.SetStatus(ctx, id, StatusProcessing))
	require.NoError(t, s.Complete(ctx, id, "the reply", `{"action":"delete_event","id":"e1"}`, 1500*time.Millisecond))

	req, err = s.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, req.Status)
	assert.Equal(t, "the reply", req.Reply)
	assert.Equal(t, int64(1500), req.ProcessingMS)
	assert.Contains(t, req.ActionJSON, "delete_event")
}

func TestRequestFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, s.CreateRequest(ctx, id, "hello"))
	require.NoError(t, s.SetStatus(ctx, id, StatusProcessing))
	require.NoError(t, s.Fail(ctx, id, "model call timed out", 2*time.Second))

	req, err := s.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, req.Status)
	assert.Equal(t, "model call timed out", req.ErrorText)
}

func TestInvalidStatusTransitions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, s.CreateRequest(ctx, id, "hello"))

	// pending cannot jump straight to completed.
	assert.Error(t, s.Complete(ctx, id, "r", "", 0))

	require.NoError(t, s.SetStatus(ctx, id, StatusProcessing))
	require.NoError(t, s.Complete(ctx, id, "r", "", 0))

	// Terminal states reject further movement.
	assert.Error(t, s.SetStatus(ctx, id, StatusProcessing))
	assert.Error(t, s.Fail(ctx, id, "late failure", 0))
}

func TestGetRequestNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRequest(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.Equal(t, 404, apperr.GetHTTPStatus(err))
}

func TestHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := uuid.NewString()
	second := uuid.NewString()
	require.NoError(t, s.CreateRequest(ctx, first, "q1"))
	require.NoError(t, s.CreateRequest(ctx, second, "q2"))
	require.NoError(t, s.SaveHistory(ctx, first, "q1", "a1", ""))
	require.NoError(t, s.SaveHistory(ctx, second, "q2", "a2", `{"action":"create_event"}`))

	entries, err := s.RecentHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "q2", entries[0].UserMessage, "newest first")
	assert.Equal(t, "q1", entries[1].UserMessage)

	entry, err := s.HistoryByRequest(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "a2", entry.Reply)
	assert.Contains(t, entry.ActionJSON, "create_event")

	_, err = s.HistoryByRequest(ctx, uuid.NewString())
	assert.Error(t, err)
}

func TestRecentHistoryLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := uuid.NewString()
		require.NoError(t, s.CreateRequest(ctx, id, "q"))
		require.NoError(t, s.SaveHistory(ctx, id, "q", "a", ""))
	}

	entries, err := s.RecentHistory(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestMarshalAction(t *testing.T) {
	out, err := MarshalAction(nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = MarshalAction(map[string]any{"action": "delete_event", "id": "e1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"delete_event","id":"e1"}`, out)
}
