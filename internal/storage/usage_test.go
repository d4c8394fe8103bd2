package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageStore_RecordAndHistory(t *testing.T) {
	store := NewUsageStore(t.TempDir())

	require.NoError(t, store.RecordUsage("gpt-4o", 10, 5))
	require.NoError(t, store.RecordUsage("gpt-4o", 2, 3))
	require.NoError(t, store.RecordUsage("gpt-4o-mini", 1, 1))
	require.NoError(t, store.RecordError("gpt-4o-mini"))

	records, err := store.GetUsageHistory(1)
	require.NoError(t, err)
	require.Len(t, records, 2)

	today := time.Now().Format(dateLayout)
	assert.Equal(t, UsageRecord{
		Date: today, Model: "gpt-4o",
		InputTokens: 12, OutputTokens: 8, TotalTokens: 20, RequestCount: 2,
	}, records[0])
	assert.Equal(t, "gpt-4o-mini", records[1].Model)
	assert.Equal(t, int64(2), records[1].RequestCount)
	assert.Equal(t, int64(1), records[1].ErrorCount)
}

func TestUsageStore_HistoryWindow(t *testing.T) {
	dir := t.TempDir()
	store := NewUsageStore(dir)

	old := time.Now().AddDate(0, 0, -10).Format(dateLayout)
	data, err := json.Marshal(UsageRecord{Date: old, Model: "gpt-4o", RequestCount: 1})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, old+"_gpt-4o.json"), data, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{"), 0644))
	require.NoError(t, store.RecordUsage("gpt-4o", 1, 1))

	records, err := store.GetUsageHistory(7)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	records, err = store.GetUsageHistory(30)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, old, records[0].Date)
}

func TestUsageStore_EmptyDir(t *testing.T) {
	store := NewUsageStore(filepath.Join(t.TempDir(), "none"))
	records, err := store.GetUsageHistory(7)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSanitizeModel(t *testing.T) {
	assert.Equal(t, "org-model", sanitizeModel("org/model"))
	assert.Equal(t, "unknown", sanitizeModel(""))
	assert.Equal(t, "gpt-4o", sanitizeModel("gpt-4o"))
}
