package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtxerr/numass/internal/errors"
	ntesting "github.com/xtxerr/numass/internal/testing"
)

func TestPushData(t *testing.T) {
	b := newLocal(t)
	ntesting.WriteRun(t, b, "shelf/set_1", run("", 1))

	var events []PushEvent
	opts := DefaultOptions()
	opts.Listeners = []Listener{ListenerFunc(func(_ context.Context, ev PushEvent) error {
		events = append(events, ev)
		return nil
	})}
	tr, err := Open(context.Background(), b, opts)
	require.NoError(t, err)

	data := ntesting.ArchiveBytes(t, run("pushed", 1, 2, 3))
	ev, err := tr.PushData(context.Background(), "/shelf", "set_9", data, "test")
	require.NoError(t, err)
	assert.Equal(t, "shelf/set_9.nm.zip", ev.File)
	assert.Equal(t, len(data), ev.Size)
	assert.False(t, ev.Overwritten)

	st, err := b.Stat("shelf/set_9.nm.zip")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), st.Size)

	// Visible without a refresh.
	n, err := tr.Resolve("/shelf/set_9")
	require.NoError(t, err)
	l, err := n.Loader()
	require.NoError(t, err)
	points, err := l.Points()
	require.NoError(t, err)
	assert.Len(t, points, 3)

	// Pushing again overwrites.
	ev2, err := tr.PushData(context.Background(), "/shelf", "set_9", ntesting.ArchiveBytes(t, run("again", 1)), "test")
	require.NoError(t, err)
	assert.True(t, ev2.Overwritten)
	assert.NotEqual(t, ev.ID, ev2.ID)

	n, err = tr.Resolve("/shelf/set_9")
	require.NoError(t, err)
	l, err = n.Loader()
	require.NoError(t, err)
	assert.Equal(t, "again", l.Description())

	require.Len(t, events, 2)
	assert.Equal(t, "/shelf", events[0].Shelf)
	assert.Equal(t, "set_9", events[1].Name)

	// A later refresh sees the same run.
	require.NoError(t, tr.Refresh(context.Background(), "/shelf"))
	_, err = tr.Resolve("/shelf/set_9")
	assert.NoError(t, err)
}

func TestPushDataErrors(t *testing.T) {
	b := newLocal(t)
	ntesting.WriteRun(t, b, "shelf/set_1", run("", 1))
	tr, err := Open(context.Background(), b, DefaultOptions())
	require.NoError(t, err)

	for _, name := range []string{"", ".", "..", "a/b"} {
		_, err := tr.PushData(context.Background(), "/shelf", name, []byte{1}, "test")
		assert.True(t, errors.Is(err, errors.ErrInvalidName), "name %q: %v", name, err)
	}

	_, err = tr.PushData(context.Background(), "/shelf/set_1", "x", []byte{1}, "test")
	assert.True(t, errors.Is(err, errors.ErrNotShelf), "got %v", err)

	_, err = tr.PushData(context.Background(), "/missing", "x", []byte{1}, "test")
	assert.True(t, errors.IsNotFound(err), "got %v", err)

	// Unreadable archives are written but not added to the tree.
	_, err = tr.PushData(context.Background(), "/shelf", "junk", []byte("not a zip"), "test")
	require.NoError(t, err)
	_, err = tr.Resolve("/shelf/junk")
	assert.True(t, errors.IsNotFound(err))
}

func TestPushKeepsRunDirectoryOfSameName(t *testing.T) {
	b := newLocal(t)
	ntesting.WriteRun(t, b, "shelf/set_1", run("directory", 1))
	tr, err := Open(context.Background(), b, DefaultOptions())
	require.NoError(t, err)

	ev, err := tr.PushData(context.Background(), "/shelf", "set_1", ntesting.ArchiveBytes(t, run("archive", 2)), "test")
	require.NoError(t, err)
	assert.Equal(t, "shelf/set_1.nm.zip", ev.File)

	description := func() string {
		n, err := tr.Resolve("/shelf/set_1")
		require.NoError(t, err)
		l, err := n.Loader()
		require.NoError(t, err)
		return l.Description()
	}
	assert.Equal(t, "directory", description())

	// Refresh applies the same rule.
	require.NoError(t, tr.Refresh(context.Background(), "/shelf"))
	assert.Equal(t, "directory", description())
}
