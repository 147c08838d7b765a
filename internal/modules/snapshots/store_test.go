package snapshots

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "snapshots.db"),
		Name: "snapshots-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db, zerolog.Nop())
	require.NoError(t, err)
	return store
}

func testSnapshot(id string, ts time.Time) *Snapshot {
	return &Snapshot{
		ID: id,
		Metadata: Metadata{
			Timestamp: ts,
			Inputs:    Inputs{Symbols: []string{"AAA", "BBB"}, TargetVolatility: 0.15},
		},
		Summary: Summary{NumAssets: 2, Volatility: 0.15},
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	original := testSnapshot("snap-1", ts)
	require.NoError(t, store.Save(original))

	loaded, err := store.Get("snap-1")
	require.NoError(t, err)
	assert.Equal(t, original.ID, loaded.ID)
	assert.Equal(t, original.Summary, loaded.Summary)
	assert.Equal(t, original.Metadata.Inputs, loaded.Metadata.Inputs)
}

func TestStore_Immutable(t *testing.T) {
	store := newTestStore(t)
	ts := time.Now().UTC()

	require.NoError(t, store.Save(testSnapshot("snap-1", ts)))

	// Saving the same id again must fail, never overwrite.
	err := store.Save(testSnapshot("snap-1", ts))
	require.Error(t, err)

	loaded, err := store.Get("snap-1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Summary.NumAssets)
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(testSnapshot("old", base)))
	require.NoError(t, store.Save(testSnapshot("mid", base.Add(time.Hour))))
	require.NoError(t, store.Save(testSnapshot("new", base.Add(2*time.Hour))))

	items, err := store.List(10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "new", items[0].ID)
	assert.Equal(t, "mid", items[1].ID)
	assert.Equal(t, "old", items[2].ID)
}

func TestStore_ListLimit(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().UTC()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(testSnapshot(id, base.Add(time.Duration(i)*time.Minute))))
	}

	items, err := store.List(2)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestStore_Prune(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(testSnapshot("ancient", now.AddDate(0, 0, -120))))
	require.NoError(t, store.Save(testSnapshot("recent", now.AddDate(0, 0, -1))))

	deleted, err := store.Prune(now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.Get("ancient")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get("recent")
	assert.NoError(t, err)
}
