// Package tree maps a backend into a tree of shelves and loaders.
//
// A directory containing a meta fragment is a Loader (one run); any other
// directory is a Shelf whose children are classified recursively. Files
// with the archive extension are archive-backed Loaders. Paths are
// slash-separated and absolute ("/2017_05/set_3"); "/" is the root.
package tree

import (
	"sort"
	"sync/atomic"

	"github.com/xtxerr/numass/internal/constants"
	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/storage/loader"
)

// Node is a Shelf or a Loader.
type Node struct {
	kind   string
	name   string
	path   string
	shelf  *Shelf
	loader *loader.Loader

	// archive marks a run read from "<name>.<ext>" rather than a directory.
	archive bool
}

func shelfNode(s *Shelf) *Node {
	return &Node{kind: constants.NodeKindShelf, name: s.name, path: s.path, shelf: s}
}

func loaderNode(name, path string, l *loader.Loader) *Node {
	return &Node{kind: constants.NodeKindLoader, name: name, path: path, loader: l}
}

func archiveNode(name, path string, l *loader.Loader) *Node {
	n := loaderNode(name, path, l)
	n.archive = true
	return n
}

// Kind returns constants.NodeKindShelf or constants.NodeKindLoader.
func (n *Node) Kind() string { return n.kind }

// Name returns the last path element, "" for the root.
func (n *Node) Name() string { return n.name }

// Path returns the absolute tree path.
func (n *Node) Path() string { return n.path }

// IsShelf reports whether n is a Shelf.
func (n *Node) IsShelf() bool { return n.shelf != nil }

// IsLoader reports whether n is a Loader.
func (n *Node) IsLoader() bool { return n.loader != nil }

// Shelf returns the shelf of n or ErrNotShelf.
func (n *Node) Shelf() (*Shelf, error) {
	if n.shelf == nil {
		return nil, errors.Wrapf(errors.ErrNotShelf, "%s", n.path)
	}
	return n.shelf, nil
}

// Loader returns the loader of n or ErrNotLoader.
func (n *Node) Loader() (*loader.Loader, error) {
	if n.loader == nil {
		return nil, errors.Wrapf(errors.ErrNotLoader, "%s", n.path)
	}
	return n.loader, nil
}

// Shelf is a node with named children.
type Shelf struct {
	tree *Tree
	name string
	path string
	dir  string

	// children is replaced as a whole by refresh; readers never see a
	// partially built map.
	children atomic.Pointer[map[string]*Node]
}

func newShelf(t *Tree, name, path, dir string) *Shelf {
	s := &Shelf{tree: t, name: name, path: path, dir: dir}
	empty := map[string]*Node{}
	s.children.Store(&empty)
	return s
}

// Name returns the shelf name.
func (s *Shelf) Name() string { return s.name }

// Path returns the absolute tree path.
func (s *Shelf) Path() string { return s.path }

// Child returns the child called name.
func (s *Shelf) Child(name string) (*Node, bool) {
	n, ok := (*s.children.Load())[name]
	return n, ok
}

// Children returns the children sorted by name.
func (s *Shelf) Children() []*Node {
	m := *s.children.Load()
	out := make([]*Node, 0, len(m))
	for _, n := range m {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Len returns the number of children.
func (s *Shelf) Len() int {
	return len(*s.children.Load())
}

// setArchive publishes a copy of the child map with the archive run n
// added or replacing an older archive. A directory or shelf of the same
// name wins, as it does on refresh; setArchive then reports false.
func (s *Shelf) setArchive(n *Node) bool {
	for {
		old := s.children.Load()
		if prev, ok := (*old)[n.name]; ok && !prev.archive {
			return false
		}
		next := make(map[string]*Node, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		next[n.name] = n
		if s.children.CompareAndSwap(old, &next) {
			return true
		}
	}
}
