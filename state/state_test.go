package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 10, 1, 9, 30, 0, 0, time.UTC)

func newTestJSONStore(t *testing.T) *JSONStore {
	t.Helper()
	s := NewJSONStore(filepath.Join(t.TempDir(), "state", "processed_emails.json"))
	s.now = func() time.Time { return fixedNow }
	return s
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})
	return s
}

func TestProcessedSet(t *testing.T) {
	s := NewProcessedSet("b", "a", "b")

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("c"))

	s.Add("c")
	assert.Equal(t, []string{"a", "b", "c"}, s.IDs())
}

func TestStores_RoundTrip(t *testing.T) {
	stores := map[string]Store{
		"json":   newTestJSONStore(t),
		"sqlite": newTestSQLiteStore(t),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ids := NewProcessedSet("18f2a", "18f2b", "18f2c")

			require.NoError(t, store.Save(ctx, ids))
			snap, err := store.Load(ctx)
			require.NoError(t, err)

			assert.Equal(t, ids, snap.ProcessedIDs)
			assert.True(t, snap.LastUpdated.Equal(fixedNow))
		})
	}
}

func TestStores_EmptyWhenNothingSaved(t *testing.T) {
	stores := map[string]Store{
		"json":   newTestJSONStore(t),
		"sqlite": newTestSQLiteStore(t),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			snap, err := store.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 0, snap.ProcessedIDs.Len())
			assert.True(t, snap.LastUpdated.IsZero())
		})
	}
}

func TestStores_SaveReplacesWholeSet(t *testing.T) {
	stores := map[string]Store{
		"json":   newTestJSONStore(t),
		"sqlite": newTestSQLiteStore(t),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, NewProcessedSet("old-1", "old-2")))
			require.NoError(t, store.Save(ctx, NewProcessedSet("new-1")))

			snap, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"new-1"}, snap.ProcessedIDs.IDs())
		})
	}
}

func TestJSONStore_DocumentFormat(t *testing.T) {
	s := newTestJSONStore(t)
	require.NoError(t, s.Save(context.Background(), NewProcessedSet("b", "a")))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, []any{"a", "b"}, doc["processed_ids"])
	assert.Equal(t, "2024-10-01T09:30:00Z", doc["last_updated"])
}

func TestJSONStore_LoadsZonelessTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_emails.json")
	content := `{"processed_ids": ["x1", "x2"], "last_updated": "2024-05-01T10:15:30.123456"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	snap, err := NewJSONStore(path).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"x1", "x2"}, snap.ProcessedIDs.IDs())
	assert.Equal(t, 2024, snap.LastUpdated.Year())
	assert.Equal(t, 15, snap.LastUpdated.Minute())
}

func TestJSONStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_emails.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewJSONStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	s, err := Open("", filepath.Join(t.TempDir(), "s.json"))
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, s)

	s, err = Open(BackendSQLite, ":memory:")
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("redis", "x")
	assert.Error(t, err)
}

func TestSQLiteStore_CreatesDirectoryAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "processed.db")
	s, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), NewProcessedSet("18f2a")))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	snap, err := reopened.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"18f2a"}, snap.ProcessedIDs.IDs())
	assert.False(t, snap.LastUpdated.IsZero())
}
