package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/tree"
)

func openJournal(t *testing.T, dsn string) *Journal {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DSN = dsn
	j, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func event(shelf, name string, size int, at time.Time) tree.PushEvent {
	return tree.PushEvent{
		ID:     uuid.New(),
		Shelf:  shelf,
		Name:   name,
		File:   shelf[1:] + "/" + name + ".nm.zip",
		Size:   size,
		Source: "test",
		Time:   at,
	}
}

func TestRecordAndRecent(t *testing.T) {
	j := openJournal(t, "")
	ctx := context.Background()
	base := time.Date(2017, 5, 2, 9, 0, 0, 0, time.UTC)

	first := event("/2017_05", "set_1", 100, base)
	second := event("/2017_05", "set_2", 200, base.Add(time.Minute))
	second.Overwritten = true
	require.NoError(t, j.DataPushed(ctx, first))
	require.NoError(t, j.DataPushed(ctx, second))

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, "set_2", entries[0].Name)
	assert.True(t, entries[0].Overwritten)
	assert.Equal(t, int64(200), entries[0].Size)
	assert.True(t, entries[0].PushedAt.Equal(second.Time))
	assert.Equal(t, first.ID, entries[1].ID)
	assert.Equal(t, "2017_05/set_1.nm.zip", entries[1].File)

	limited, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestShelves(t *testing.T) {
	j := openJournal(t, "")
	ctx := context.Background()
	base := time.Date(2017, 5, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, j.DataPushed(ctx, event("/b", "x", 10, base)))
	require.NoError(t, j.DataPushed(ctx, event("/a", "x", 5, base)))
	require.NoError(t, j.DataPushed(ctx, event("/a", "y", 7, base.Add(time.Hour))))

	shelves, err := j.Shelves(ctx)
	require.NoError(t, err)
	require.Len(t, shelves, 2)
	assert.Equal(t, "/a", shelves[0].Shelf)
	assert.Equal(t, int64(2), shelves[0].Pushes)
	assert.Equal(t, int64(12), shelves[0].Bytes)
	assert.True(t, shelves[0].LastPushAt.Equal(base.Add(time.Hour)))
	assert.Equal(t, "/b", shelves[1].Shelf)
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.duckdb")
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.DSN = path
	j, err := Open(cfg)
	require.NoError(t, err)
	ev := event("/shelf", "set_1", 42, time.Now().UTC())
	require.NoError(t, j.DataPushed(ctx, ev))
	require.NoError(t, j.Close())

	reopened := openJournal(t, path)
	entries, err := reopened.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ev.ID, entries[0].ID)
}

func TestClosed(t *testing.T) {
	j := openJournal(t, "")
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	err := j.DataPushed(context.Background(), event("/s", "n", 1, time.Now()))
	assert.True(t, errors.Is(err, errors.ErrClosed))
	_, err = j.Recent(context.Background(), 5)
	assert.True(t, errors.Is(err, errors.ErrClosed))
}

func TestTreeListener(t *testing.T) {
	j := openJournal(t, "")
	var l tree.Listener = j
	require.NoError(t, l.DataPushed(context.Background(), event("/s", "n", 1, time.Now().UTC())))
	entries, err := j.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
