package tree

import (
	"github.com/xtxerr/numass/internal/errors"
)

// Resolve follows path through the child maps. It never touches the
// backend; call Refresh to pick up changes.
func (t *Tree) Resolve(path string) (*Node, error) {
	n := t.Root()
	for _, part := range splitPath(path) {
		if n.shelf == nil {
			return nil, errors.Wrapf(errors.ErrNodeNotFound, "%s: %s is a run", normalizePath(path), n.path)
		}
		child, ok := n.shelf.Child(part)
		if !ok {
			return nil, errors.Wrapf(errors.ErrNodeNotFound, "%s", normalizePath(path))
		}
		n = child
	}
	return n, nil
}

// WalkFunc is called for every node. Returning SkipChildren from a shelf
// skips its subtree.
type WalkFunc func(n *Node) error

// SkipChildren is returned by a WalkFunc to skip the children of a shelf.
var SkipChildren = errors.New("skip children")

// Walk visits the tree depth-first, children in name order.
func (t *Tree) Walk(fn WalkFunc) error {
	return walk(t.Root(), fn)
}

func walk(n *Node, fn WalkFunc) error {
	if err := fn(n); err != nil {
		if err == SkipChildren {
			return nil
		}
		return err
	}
	if n.shelf == nil {
		return nil
	}
	for _, child := range n.shelf.Children() {
		if err := walk(child, fn); err != nil {
			return err
		}
	}
	return nil
}

// Loaders returns all runs in walk order.
func (t *Tree) Loaders() []*Node {
	var out []*Node
	t.Walk(func(n *Node) error {
		if n.IsLoader() {
			out = append(out, n)
		}
		return nil
	})
	return out
}
