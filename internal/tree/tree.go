package tree

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/numass/config"
	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/logging"
	"github.com/xtxerr/numass/internal/storage/backend"
	"github.com/xtxerr/numass/internal/storage/loader"
)

var log = logging.Component("tree")

// OtherFileHandler receives files that are neither runs nor archives.
type OtherFileHandler func(shelf string, entry backend.Entry)

// Options configures a Tree.
type Options struct {
	Loader loader.Options

	// Parallelism bounds the children classified concurrently per shelf.
	Parallelism int

	// OtherFile is called for unrecognised files. Nil ignores them.
	OtherFile OtherFileHandler

	// Listeners receive data-pushed events.
	Listeners []Listener
}

// DefaultOptions returns the default tree options.
func DefaultOptions() Options {
	return Options{
		Loader:      loader.DefaultOptions(),
		Parallelism: config.DefaultScanParallelism,
	}
}

// Tree is a storage tree over one backend.
type Tree struct {
	backend backend.Backend
	opts    Options
	group   singleflight.Group
	root    *Node
}

// Open classifies the backend root and scans the whole tree. The root is
// a Loader when it holds a meta fragment, otherwise a Shelf. Payloads are
// never read.
func Open(ctx context.Context, b backend.Backend, opts Options) (*Tree, error) {
	if opts.Parallelism <= 0 {
		opts.Parallelism = config.DefaultScanParallelism
	}
	t := &Tree{backend: b, opts: opts}

	entries, err := b.List(".")
	if err != nil {
		return nil, errors.Wrapf(err, "open storage %s", b.Name())
	}
	if opts.Loader.Layout.IsRunDir(entries) {
		l, err := loader.New(lastPathComponent(b.Name()), b, ".", opts.Loader)
		if err != nil {
			return nil, err
		}
		t.root = loaderNode("", "/", l)
		log.Info("storage root is a single run", "backend", b.Name())
		return t, nil
	}

	s := newShelf(t, "", "/", ".")
	t.root = shelfNode(s)
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	log.Info("storage opened", "backend", b.Name(), "children", s.Len())
	return t, nil
}

// Backend returns the backend of the tree.
func (t *Tree) Backend() backend.Backend { return t.backend }

// Layout returns the fragment layout.
func (t *Tree) Layout() loader.Layout { return t.opts.Loader.Layout }

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Refresh rescans the shelf at path. Concurrent refreshes of the same path
// share one scan.
func (t *Tree) Refresh(ctx context.Context, path string) error {
	n, err := t.Resolve(path)
	if err != nil {
		return err
	}
	s, err := n.Shelf()
	if err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Refresh rescans the backend directory of s and replaces its children.
// A child that cannot be listed or opened is logged and skipped.
// Concurrent refreshes of the same shelf share one scan; a shelf that
// replaced s at the same path scans on its own.
func (s *Shelf) Refresh(ctx context.Context) error {
	_, err, _ := s.tree.group.Do(s.key(), func() (any, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

// key identifies s in the refresh group.
func (s *Shelf) key() string {
	return fmt.Sprintf("%s@%p", s.path, s)
}

func (s *Shelf) refresh(ctx context.Context) error {
	start := time.Now()
	defer s.tree.opts.Loader.Metrics.ObserveRefresh(start)

	entries, err := s.tree.backend.List(s.dir)
	if err != nil {
		return errors.Wrapf(err, "refresh %s", s.path)
	}

	nodes := make([]*Node, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.tree.opts.Parallelism)
	for i, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := s.classify(gctx, e)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("skipping storage child",
					"shelf", s.path,
					"child", e.Name,
					"error", err)
				s.tree.opts.Loader.Metrics.ChildSkipped()
				return nil
			}
			nodes[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	children := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if prev, dup := children[n.name]; dup {
			// Entries are sorted, so a directory is seen before "<name>.<ext>".
			log.Warn("duplicate run name, keeping first",
				"shelf", s.path,
				"name", n.name,
				"kept", prev.kind)
			continue
		}
		children[n.name] = n
	}
	s.children.Store(&children)

	log.Debug("shelf refreshed",
		"shelf", s.path,
		"children", len(children),
		"duration", time.Since(start))
	return nil
}

// classify turns a backend entry into a node. It returns (nil, nil) for
// ignored entries.
func (s *Shelf) classify(ctx context.Context, e backend.Entry) (*Node, error) {
	layout := s.tree.opts.Loader.Layout
	dir := backend.Join(s.dir, e.Name)

	if e.IsDir {
		entries, err := s.tree.backend.List(dir)
		if err != nil {
			return nil, err
		}
		path := childPath(s.path, e.Name)
		if layout.IsRunDir(entries) {
			log.Debug("classified run", "path", path)
			return loaderNode(e.Name, path, loader.FromEntries(e.Name, s.tree.backend, dir, entries, s.tree.opts.Loader)), nil
		}
		// The child is not published yet, so nobody else can refresh it.
		child := newShelf(s.tree, e.Name, path, dir)
		if err := child.refresh(ctx); err != nil {
			return nil, err
		}
		log.Debug("classified shelf", "path", path, "children", child.Len())
		return shelfNode(child), nil
	}

	if layout.IsArchive(e.Name) {
		name := layout.RunName(e.Name)
		l, err := loader.OpenArchive(name, s.tree.backend, dir, s.tree.opts.Loader)
		if err != nil {
			return nil, err
		}
		log.Debug("classified archive run", "path", childPath(s.path, name))
		return archiveNode(name, childPath(s.path, name), l), nil
	}

	if s.tree.opts.OtherFile != nil {
		s.tree.opts.OtherFile(s.path, e)
	}
	return nil, nil
}
