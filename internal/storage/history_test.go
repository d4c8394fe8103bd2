package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/jnieblas/openai-response-api-demo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryStore_AppendAndLoad(t *testing.T) {
	store := NewHistoryStore(t.TempDir(), 0)
	session := uuid.NewString()

	saved, err := store.Append(models.HistoryEntry{SessionID: session, ResponseID: "resp_1", Prompt: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.NotZero(t, saved.CreatedAt)

	_, err = store.Append(models.HistoryEntry{SessionID: session, ResponseID: "resp_2", Prompt: "again"})
	require.NoError(t, err)

	history, err := store.Load(session)
	require.NoError(t, err)
	assert.Equal(t, session, history.SessionID)
	require.Len(t, history.Entries, 2)
	assert.Equal(t, "hi", history.Entries[0].Prompt)

	last, err := store.LastResponseID(session)
	require.NoError(t, err)
	assert.Equal(t, "resp_2", last)
}

func TestHistoryStore_UnknownSessionIsEmpty(t *testing.T) {
	store := NewHistoryStore(t.TempDir(), 0)
	session := uuid.NewString()

	history, err := store.Load(session)
	require.NoError(t, err)
	assert.Empty(t, history.Entries)

	last, err := store.LastResponseID(session)
	require.NoError(t, err)
	assert.Equal(t, "", last)
}

func TestHistoryStore_Limit(t *testing.T) {
	store := NewHistoryStore(t.TempDir(), 3)
	session := uuid.NewString()

	for i := 0; i < 5; i++ {
		_, err := store.Append(models.HistoryEntry{SessionID: session, ResponseID: fmt.Sprintf("resp_%d", i)})
		require.NoError(t, err)
	}

	history, err := store.Load(session)
	require.NoError(t, err)
	require.Len(t, history.Entries, 3)
	assert.Equal(t, "resp_2", history.Entries[0].ResponseID)
	assert.Equal(t, "resp_4", history.Entries[2].ResponseID)
}

func TestHistoryStore_ClearAndList(t *testing.T) {
	dir := t.TempDir()
	store := NewHistoryStore(dir, 0)
	a, b := uuid.NewString(), uuid.NewString()

	_, err := store.Append(models.HistoryEntry{SessionID: a})
	require.NoError(t, err)
	_, err = store.Append(models.HistoryEntry{SessionID: b})
	require.NoError(t, err)

	sessions, err := store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, sessions)

	require.NoError(t, store.Clear(a))
	require.NoError(t, store.Clear(a))
	_, err = os.Stat(filepath.Join(dir, a+".json"))
	assert.True(t, os.IsNotExist(err))

	sessions, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{b}, sessions)
}

func TestHistoryStore_RejectsInvalidSession(t *testing.T) {
	store := NewHistoryStore(t.TempDir(), 0)

	for _, id := range []string{"", "../etc/passwd", "not-a-uuid"} {
		_, err := store.Append(models.HistoryEntry{SessionID: id})
		assert.True(t, errors.Is(err, ErrInvalidSession), id)

		_, err = store.Load(id)
		assert.True(t, errors.Is(err, ErrInvalidSession), id)

		assert.True(t, errors.Is(store.Clear(id), ErrInvalidSession), id)
	}
}

func TestHistoryStore_ListMissingDir(t *testing.T) {
	store := NewHistoryStore(filepath.Join(t.TempDir(), "missing"), 0)
	sessions, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
