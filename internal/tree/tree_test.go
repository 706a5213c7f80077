package tree

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtxerr/numass/internal/constants"
	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/storage/backend"
	"github.com/xtxerr/numass/internal/storage/codec"
	ntesting "github.com/xtxerr/numass/internal/testing"
)

func run(description string, indices ...int) ntesting.Run {
	r := ntesting.Run{Meta: map[string]any{"description": description}}
	for _, i := range indices {
		r.Points = append(r.Points, ntesting.ClassicPoint(fmt.Sprintf("p%d", i), i, codec.Record{Channel: uint16(i), Ticks: 1}))
	}
	return r
}

func newLocal(t *testing.T) *backend.Local {
	t.Helper()
	b, err := backend.NewLocal(t.TempDir())
	require.NoError(t, err)
	return b
}

// failingBackend fails List for one directory.
type failingBackend struct {
	backend.Backend
	failDir string
}

func (f *failingBackend) List(dir string) ([]backend.Entry, error) {
	if backend.Clean(dir) == f.failDir {
		return nil, errors.WrapIO(fmt.Errorf("input/output error"), "list", dir)
	}
	return f.Backend.List(dir)
}

// slowBackend delays List for one directory.
type slowBackend struct {
	backend.Backend
	dir   string
	delay time.Duration
}

func (s *slowBackend) List(dir string) ([]backend.Entry, error) {
	if backend.Clean(dir) == s.dir {
		time.Sleep(s.delay)
	}
	return s.Backend.List(dir)
}

func childNames(s *Shelf) []string {
	var out []string
	for _, n := range s.Children() {
		out = append(out, n.Name())
	}
	return out
}

func TestClassification(t *testing.T) {
	b := newLocal(t)
	ntesting.WriteRun(t, b, "with_meta", run("a run", 1))
	ntesting.WriteFile(t, b, "without_meta/notes.txt", []byte("x"))

	tr, err := Open(context.Background(), b, DefaultOptions())
	require.NoError(t, err)

	root, err := tr.Root().Shelf()
	require.NoError(t, err)
	require.Equal(t, 2, root.Len())

	loaderChild, ok := root.Child("with_meta")
	require.True(t, ok)
	assert.Equal(t, constants.NodeKindLoader, loaderChild.Kind())
	assert.True(t, loaderChild.IsLoader())

	shelfChild, ok := root.Child("without_meta")
	require.True(t, ok)
	assert.Equal(t, constants.NodeKindShelf, shelfChild.Kind())
	assert.True(t, shelfChild.IsShelf())
}

func TestNestedShelvesAndArchives(t *testing.T) {
	b := newLocal(t)
	ntesting.WriteRun(t, b, "2017_05/set_1", run("set 1", 1, 2))
	ntesting.WriteArchive(t, b, "2017_05/set_2.nm.zip", run("set 2", 3))
	ntesting.WriteRun(t, b, "2017_11/sub/set_7", run("set 7", 1))
	ntesting.WriteFile(t, b, "2017_05/readme.txt", []byte("hello"))

	var mu sync.Mutex
	var others []string
	opts := DefaultOptions()
	opts.OtherFile = func(shelf string, e backend.Entry) {
		mu.Lock()
		defer mu.Unlock()
		others = append(others, shelf+"/"+e.Name)
	}

	tr, err := Open(context.Background(), b, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"/2017_05/readme.txt"}, others)

	n, err := tr.Resolve("/2017_05/set_2")
	require.NoError(t, err)
	l, err := n.Loader()
	require.NoError(t, err)
	assert.Equal(t, "set 2", l.Description())

	n, err = tr.Resolve("2017_11/sub/set_7/")
	require.NoError(t, err)
	assert.Equal(t, "/2017_11/sub/set_7", n.Path())

	var paths []string
	require.NoError(t, tr.Walk(func(n *Node) error {
		paths = append(paths, n.Path())
		return nil
	}))
	assert.Equal(t, []string{
		"/",
		"/2017_05",
		"/2017_05/set_1",
		"/2017_05/set_2",
		"/2017_11",
		"/2017_11/sub",
		"/2017_11/sub/set_7",
	}, paths)
	assert.Len(t, tr.Loaders(), 3)
}

func TestResolveErrors(t *testing.T) {
	b := newLocal(t)
	ntesting.WriteRun(t, b, "shelf/set_1", run("", 1))

	tr, err := Open(context.Background(), b, DefaultOptions())
	require.NoError(t, err)

	_, err = tr.Resolve("/shelf/missing")
	assert.True(t, errors.IsNotFound(err), "got %v", err)

	_, err = tr.Resolve("/shelf/set_1/p1")
	assert.True(t, errors.IsNotFound(err), "got %v", err)

	n, err := tr.Resolve("/shelf/set_1")
	require.NoError(t, err)
	_, err = n.Shelf()
	assert.True(t, errors.Is(err, errors.ErrNotShelf))
	assert.True(t, errors.IsNotFound(tr.Refresh(context.Background(), "/nope")))
}

func TestRefreshSkipsFailingChild(t *testing.T) {
	local := newLocal(t)
	ntesting.WriteRun(t, local, "good/set_1", run("", 1))
	ntesting.WriteRun(t, local, "bad/set_2", run("", 1))
	ntesting.WriteRun(t, local, "set_3", run("", 1))

	b := &failingBackend{Backend: local, failDir: "bad"}
	tr, err := Open(context.Background(), b, DefaultOptions())
	require.NoError(t, err)

	root, err := tr.Root().Shelf()
	require.NoError(t, err)
	assert.Equal(t, []string{"good", "set_3"}, childNames(root))

	// The failure is not sticky.
	b.failDir = ""
	require.NoError(t, tr.Refresh(context.Background(), "/"))
	assert.Equal(t, []string{"bad", "good", "set_3"}, childNames(root))
}

func TestRefreshRootFailure(t *testing.T) {
	local := newLocal(t)
	b := &failingBackend{Backend: local, failDir: "."}
	_, err := Open(context.Background(), b, DefaultOptions())
	assert.True(t, errors.IsIO(err), "got %v", err)
}

func TestRefreshPicksUpChanges(t *testing.T) {
	b := newLocal(t)
	ntesting.WriteRun(t, b, "shelf/set_1", run("", 1))

	tr, err := Open(context.Background(), b, DefaultOptions())
	require.NoError(t, err)

	ntesting.WriteRun(t, b, "shelf/set_2", run("", 1))
	_, err = tr.Resolve("/shelf/set_2")
	assert.True(t, errors.IsNotFound(err), "stale tree should not see set_2 yet")

	require.NoError(t, tr.Refresh(context.Background(), "/shelf"))
	_, err = tr.Resolve("/shelf/set_2")
	assert.NoError(t, err)
}

func TestRootIsRun(t *testing.T) {
	b := newLocal(t)
	ntesting.WriteRun(t, b, ".", run("single", 1, 2))

	tr, err := Open(context.Background(), b, DefaultOptions())
	require.NoError(t, err)
	l, err := tr.Root().Loader()
	require.NoError(t, err)
	points, err := l.Points()
	require.NoError(t, err)
	assert.Len(t, points, 2)
}

func TestBrowse(t *testing.T) {
	b := newLocal(t)
	ntesting.WriteRun(t, b, "shelf/set_1", run("first", 1, 2))
	ntesting.WriteRun(t, b, "shelf/deeper/set_2", run("second", 1))

	tr, err := Open(context.Background(), b, DefaultOptions())
	require.NoError(t, err)

	res, err := tr.Browse("shelf")
	require.NoError(t, err)
	assert.False(t, res.IsLeaf)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, BrowseEntry{Name: "deeper", Path: "/shelf/deeper", Type: EntryShelf, Children: 1}, res.Entries[0])
	assert.Equal(t, BrowseEntry{Name: "set_1", Path: "/shelf/set_1", Type: EntryLoader, Description: "first", Children: 3}, res.Entries[1])

	res, err = tr.Browse("/shelf/set_1")
	require.NoError(t, err)
	assert.True(t, res.IsLeaf)
	assert.Len(t, res.Entries, 3)
	assert.Equal(t, EntryFragment, res.Entries[0].Type)
}

func TestConcurrentRefreshAndResolve(t *testing.T) {
	b := newLocal(t)
	for i := 0; i < 10; i++ {
		ntesting.WriteRun(t, b, fmt.Sprintf("shelf/set_%d", i), run("", 1))
	}
	tr, err := Open(context.Background(), b, DefaultOptions())
	require.NoError(t, err)

	gt := ntesting.NewGoroutineTest(t)
	defer gt.Wait()

	for i := 0; i < 4; i++ {
		gt.Go(func() error {
			return tr.Refresh(context.Background(), "/shelf")
		})
		gt.Go(func() error {
			for j := 0; j < 10; j++ {
				if _, err := tr.Resolve(fmt.Sprintf("/shelf/set_%d", j)); err != nil {
					return err
				}
			}
			return nil
		})
	}
}

func TestRefreshParentAndChildConcurrently(t *testing.T) {
	local := newLocal(t)
	ntesting.WriteRun(t, local, "shelf/set_1", run("", 1))
	ntesting.WriteRun(t, local, "shelf/set_2", run("", 2))

	b := &slowBackend{Backend: local, dir: "shelf", delay: 30 * time.Millisecond}
	tr, err := Open(context.Background(), b, DefaultOptions())
	require.NoError(t, err)

	for round := 0; round < 5; round++ {
		gt := ntesting.NewGoroutineTest(t)
		gt.Go(func() error {
			return tr.Refresh(context.Background(), "/")
		})
		time.Sleep(10 * time.Millisecond)
		gt.Go(func() error {
			return tr.Refresh(context.Background(), "/shelf")
		})
		gt.Wait()

		n, err := tr.Resolve("/shelf")
		require.NoError(t, err)
		shelf, err := n.Shelf()
		require.NoError(t, err)
		assert.Equal(t, []string{"set_1", "set_2"}, childNames(shelf), "round %d", round)
	}
}

func TestRefreshHonoursCancellation(t *testing.T) {
	b := newLocal(t)
	ntesting.WriteRun(t, b, "shelf/set_1", run("", 1))
	tr, err := Open(context.Background(), b, DefaultOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = tr.Refresh(ctx, "/")
	assert.ErrorIs(t, err, context.Canceled)

	// The previous snapshot stays in place.
	_, err = tr.Resolve("/shelf/set_1")
	assert.NoError(t, err)
}
