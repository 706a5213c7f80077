// Package loader exposes one experimental run stored in a directory or
// archive.
//
// A Loader maps fragment names to lazily read envelopes. Nothing is read
// when the Loader is built; the meta fragment is parsed on the first Meta
// call and point envelopes when Points is called. Loaders never write to
// their backend.
package loader

import (
	"cmp"
	"context"
	"io"
	"slices"
	"sort"

	"github.com/xtxerr/numass/internal/constants"
	"github.com/xtxerr/numass/internal/envelope"
	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/logging"
	"github.com/xtxerr/numass/internal/meta"
	"github.com/xtxerr/numass/internal/metrics"
	"github.com/xtxerr/numass/internal/storage/backend"
	"github.com/xtxerr/numass/internal/storage/codec"
	"github.com/xtxerr/numass/internal/storage/types"
	isync "github.com/xtxerr/numass/internal/sync"
)

var log = logging.Component("loader")

// Options configures a Loader.
type Options struct {
	Layout  Layout
	Decode  codec.Options
	Metrics *metrics.Metrics
}

// DefaultOptions returns the default layout and decode options.
func DefaultOptions() Options {
	return Options{
		Layout: DefaultLayout(),
		Decode: codec.DefaultOptions(),
	}
}

// Loader is one run: a meta fragment, an optional voltage fragment and
// point fragments.
type Loader struct {
	name    string
	backend backend.Backend
	dir     string
	opts    Options

	fragments map[string]*isync.Lazy[*envelope.Envelope]
	names     []string
	sidecars  map[string]string
}

var _ types.Set = (*Loader)(nil)

// New lists dir on b and builds a Loader. No fragment is read.
func New(name string, b backend.Backend, dir string, opts Options) (*Loader, error) {
	entries, err := b.List(dir)
	if err != nil {
		return nil, err
	}
	return FromEntries(name, b, dir, entries, opts), nil
}

// OpenArchive builds a Loader over the run archive at p on b. Only the
// archive directory is read.
func OpenArchive(name string, b backend.Backend, p string, opts Options) (*Loader, error) {
	a, err := backend.OpenArchive(b, p)
	if err != nil {
		return nil, err
	}
	entries, err := a.List(".")
	if err != nil {
		return nil, err
	}
	return FromEntries(name, a, ".", entries, opts), nil
}

// FromEntries builds a Loader from an existing listing of dir.
func FromEntries(name string, b backend.Backend, dir string, entries []backend.Entry, opts Options) *Loader {
	l := &Loader{
		name:      name,
		backend:   b,
		dir:       dir,
		opts:      opts,
		fragments: make(map[string]*isync.Lazy[*envelope.Envelope]),
		sidecars:  make(map[string]string),
	}

	sidecars := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		switch {
		case opts.Layout.isFragment(e.Name):
			p := backend.Join(dir, e.Name)
			src := backend.Source(b, p)
			l.fragments[e.Name] = isync.NewLazy(func() (*envelope.Envelope, error) {
				return envelope.Read(src)
			})
			l.names = append(l.names, e.Name)
		case opts.Layout.IsSidecar(e.Name):
			sidecars[e.Name] = true
		}
	}
	sort.Strings(l.names)

	for _, n := range l.names {
		if side := n + opts.Layout.SidecarSuffix; opts.Layout.IsPoint(n) && sidecars[side] {
			l.sidecars[n] = backend.Join(dir, side)
		}
	}

	log.Debug("loader built", "run", name, "backend", b.Name(), "dir", dir, "fragments", len(l.names))
	return l
}

// Name implements types.Set.
func (l *Loader) Name() string { return l.name }

// FragmentNames returns the fragment names in sorted order. Sidecars are
// not fragments.
func (l *Loader) FragmentNames() []string {
	return slices.Clone(l.names)
}

// Pull forces the fragment and returns its envelope.
func (l *Loader) Pull(fragment string) (*envelope.Envelope, error) {
	cell, ok := l.fragments[fragment]
	if !ok {
		return nil, errors.Wrapf(errors.ErrFragmentNotFound, "%s in run %s", fragment, l.name)
	}
	return cell.Get()
}

// Meta implements types.Set. A run without a meta fragment is a
// configuration error.
func (l *Loader) Meta() (meta.Meta, error) {
	env, err := l.Pull(l.opts.Layout.MetaFragment)
	if err != nil {
		if errors.Is(err, errors.ErrFragmentNotFound) {
			return meta.Meta{}, errors.Wrapf(errors.NewMissingKey(l.opts.Layout.MetaFragment), "run %s", l.name)
		}
		return meta.Meta{}, err
	}
	return env.Meta(), nil
}

// Description implements types.Set.
func (l *Loader) Description() string {
	m, err := l.Meta()
	if err != nil {
		return ""
	}
	return m.String(constants.KeyDescription, "")
}

// Points implements types.Set. Fragments that fail to read or decode are
// logged and omitted. The result is sorted by point index; points without
// an index sort first and ties keep fragment order.
func (l *Loader) Points() ([]types.Point, error) {
	var points []types.Point
	plog := logging.WithContext(logging.ContextWithLoader(context.Background(), l.name)).
		With("component", "loader")
	for _, name := range l.names {
		if !l.opts.Layout.IsPoint(name) {
			continue
		}
		p, err := l.decode(name)
		if err != nil {
			plog.Warn("dropping point",
				"fragment", name,
				"error", err)
			l.opts.Metrics.PointDropped(errors.CodeName(errors.ErrorToCode(err)))
			continue
		}
		l.opts.Metrics.PointDecoded(p.Format())
		points = append(points, p)
	}

	slices.SortStableFunc(points, func(a, b types.Point) int {
		return cmp.Compare(a.Index(), b.Index())
	})
	l.reportOrdering(points)
	return points, nil
}

func (l *Loader) decode(name string) (types.Point, error) {
	env, err := l.Pull(name)
	if err != nil {
		return nil, err
	}
	opts := l.opts.Decode
	if side, ok := l.sidecars[name]; ok {
		opts.Sidecar = backend.Source(l.backend, side)
	}
	return codec.Decode(env, opts)
}

// reportOrdering logs duplicate point indices. Duplicates are resolved by
// the stable sort and never fail the call.
func (l *Loader) reportOrdering(points []types.Point) {
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		if cur.Index() == prev.Index() && cur.Index() >= 0 {
			log.Debug("duplicate point index",
				"run", l.name,
				"index", cur.Index(),
				"first", prev.Name(),
				"second", cur.Name(),
				"error", errors.ErrOrdering)
		}
	}
}

// HVData returns the voltage time series. ok is false when the fragment is
// missing or cannot be parsed.
func (l *Loader) HVData() (table *HVTable, ok bool) {
	name := l.opts.Layout.VoltageFragment
	if _, exists := l.fragments[name]; !exists {
		return nil, false
	}

	data, err := l.voltageBytes(name)
	if err != nil {
		log.Warn("cannot read voltage fragment", "run", l.name, "error", err)
		return nil, false
	}
	table, err = ParseHVTable(data)
	if err != nil {
		log.Warn("cannot parse voltage fragment", "run", l.name, "error", err)
		return nil, false
	}
	return table, true
}

// voltageBytes returns the table text: the envelope payload when the
// fragment is an envelope, otherwise the raw file.
func (l *Loader) voltageBytes(name string) ([]byte, error) {
	if env, err := l.Pull(name); err == nil && env.HasData() {
		return env.ReadAll(maxVoltageSize)
	}

	rc, err := l.backend.Open(backend.Join(l.dir, name))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxVoltageSize+1))
	if err != nil {
		return nil, errors.WrapIO(err, "read", name)
	}
	if len(data) > maxVoltageSize {
		return nil, errors.NewFormat("voltage fragment exceeds %d bytes", maxVoltageSize)
	}
	return data, nil
}

const maxVoltageSize = 64 * 1024 * 1024
