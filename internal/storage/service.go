package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xtxerr/numass/internal/envelope"
	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/logging"
	"github.com/xtxerr/numass/internal/metrics"
	"github.com/xtxerr/numass/internal/storage/backend"
	"github.com/xtxerr/numass/internal/storage/codec"
	"github.com/xtxerr/numass/internal/storage/config"
	"github.com/xtxerr/numass/internal/storage/journal"
	"github.com/xtxerr/numass/internal/storage/loader"
	"github.com/xtxerr/numass/internal/storage/types"
	"github.com/xtxerr/numass/internal/tree"
)

var log = logging.Component("storage")

// Option customizes a Service.
type Option func(*options)

type options struct {
	backend    backend.Backend
	registerer prometheus.Registerer
	otherFile  tree.OtherFileHandler
	listeners  []tree.Listener
	source     string
}

// WithBackend uses b instead of opening the backend named by the
// configuration. The service closes b.
func WithBackend(b backend.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithRegisterer registers the storage metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithOtherFileHandler receives files that are neither runs nor archives.
func WithOtherFileHandler(fn tree.OtherFileHandler) Option {
	return func(o *options) { o.otherFile = fn }
}

// WithListener adds a data-pushed listener.
func WithListener(l tree.Listener) Option {
	return func(o *options) { o.listeners = append(o.listeners, l) }
}

// WithSource names the writer in data-pushed events.
func WithSource(source string) Option {
	return func(o *options) { o.source = source }
}

// Service is the consumer surface of one storage root.
type Service struct {
	mu sync.RWMutex

	config  *config.Config
	backend backend.Backend
	tree    *tree.Tree
	journal *journal.Journal
	metrics *metrics.Metrics
	source  string

	closed    atomic.Bool
	startTime time.Time
}

// Stats summarizes the scanned tree.
type Stats struct {
	Backend string
	Shelves int
	Loaders int
	Uptime  time.Duration
}

// New opens the storage described by cfg and scans it.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{source: "numass"}
	for _, opt := range opts {
		opt(&o)
	}

	b := o.backend
	if b == nil {
		var err error
		if b, err = OpenBackend(cfg); err != nil {
			return nil, err
		}
	}

	s := &Service{
		config:    cfg,
		backend:   b,
		metrics:   metrics.New(o.registerer),
		source:    o.source,
		startTime: time.Now(),
	}

	listeners := o.listeners
	if cfg.Push.Journal.Enabled {
		jcfg := journal.DefaultConfig()
		jcfg.DSN = cfg.Push.Journal.Path
		j, err := journal.Open(jcfg)
		if err != nil {
			b.Close()
			return nil, err
		}
		s.journal = j
		listeners = append(listeners, j)
	}

	treeOpts := TreeOptions(cfg)
	treeOpts.Loader.Metrics = s.metrics
	treeOpts.OtherFile = o.otherFile
	treeOpts.Listeners = listeners

	ctx = logging.ContextWithStorage(ctx, b.Name())
	t, err := tree.Open(ctx, b, treeOpts)
	if err != nil {
		s.closeResources()
		return nil, err
	}
	s.tree = t

	logging.WithContext(ctx).Info("storage service ready",
		"loaders", len(t.Loaders()),
		"journal", s.journal != nil)
	return s, nil
}

// OpenBackend opens the backend named by cfg.
func OpenBackend(cfg *config.Config) (backend.Backend, error) {
	switch cfg.Backend {
	case config.BackendLocal, "":
		b, err := backend.NewLocal(cfg.Root)
		if err != nil {
			return nil, err
		}
		return b, nil

	case config.BackendSFTP:
		b, err := backend.DialSFTP(backend.SFTPConfig{
			Addr:                  cfg.SFTPAddr(),
			User:                  cfg.SFTP.User,
			Password:              cfg.SFTP.Password,
			KeyFile:               cfg.SFTP.KeyFile,
			KnownHostsFile:        cfg.SFTP.KnownHostsFile,
			InsecureIgnoreHostKey: cfg.SFTP.InsecureIgnoreHostKey,
			Root:                  cfg.Root,
			Timeout:               cfg.SFTP.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return b, nil

	case config.BackendZip:
		dir, err := backend.NewLocal(filepath.Dir(cfg.Root))
		if err != nil {
			return nil, err
		}
		z, err := backend.OpenZip(dir, filepath.Base(cfg.Root))
		if err != nil {
			return nil, err
		}
		return z, nil

	default:
		return nil, errors.NewInvalidValue("backend", cfg.Backend, "unknown backend")
	}
}

// TreeOptions converts cfg to tree options without metrics or listeners.
func TreeOptions(cfg *config.Config) tree.Options {
	opts := tree.DefaultOptions()
	opts.Parallelism = cfg.Scan.Parallelism
	opts.Loader.Layout = loader.Layout{
		MetaFragment:     cfg.Layout.MetaFragment,
		VoltageFragment:  cfg.Layout.VoltageFragment,
		PointPrefix:      cfg.Layout.PointPrefix,
		ArchiveExtension: cfg.Layout.ArchiveExtension,
		SidecarSuffix:    cfg.Layout.SidecarSuffix,
	}
	opts.Loader.Decode = codec.Options{
		TimeCoeff:      cfg.Decode.TimeCoeff,
		ReadBufferSize: cfg.Decode.ReadBufferSize,
		MaxProtoSize:   cfg.Decode.MaxProtoSize,
	}
	return opts
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config { return s.config }

// Tree returns the storage tree.
func (s *Service) Tree() *tree.Tree { return s.tree }

// Root returns the root node.
func (s *Service) Root() *tree.Node { return s.tree.Root() }

// Journal returns the push journal, nil when disabled.
func (s *Service) Journal() *journal.Journal { return s.journal }

// Metrics returns the storage instruments.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Refresh rescans the shelf at path.
func (s *Service) Refresh(ctx context.Context, path string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.tree.Refresh(ctx, path)
}

// Loader resolves the run at path.
func (s *Service) Loader(path string) (*loader.Loader, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	n, err := s.tree.Resolve(path)
	if err != nil {
		return nil, err
	}
	return n.Loader()
}

// ListPoints returns the points of the run at path in index order.
func (s *Service) ListPoints(path string) ([]types.Point, error) {
	l, err := s.Loader(path)
	if err != nil {
		return nil, err
	}
	return l.Points()
}

// Pull returns the envelope of one fragment of the run at path.
func (s *Service) Pull(path, fragment string) (*envelope.Envelope, error) {
	l, err := s.Loader(path)
	if err != nil {
		return nil, err
	}
	return l.Pull(fragment)
}

// PushNumassData writes data as run archive name under the shelf at path.
func (s *Service) PushNumassData(ctx context.Context, path, name string, data []byte) (tree.PushEvent, error) {
	if err := s.checkOpen(); err != nil {
		return tree.PushEvent{}, err
	}
	ctx = logging.ContextWithSource(ctx, s.source)
	return s.tree.PushData(ctx, path, name, data, s.source)
}

// Stats counts the nodes of the current snapshot.
func (s *Service) Stats() Stats {
	st := Stats{Backend: s.backend.Name(), Uptime: time.Since(s.startTime)}
	s.tree.Walk(func(n *tree.Node) error {
		if n.IsLoader() {
			st.Loaders++
		} else {
			st.Shelves++
		}
		return nil
	})
	return st
}

// Close releases the backend and the journal.
func (s *Service) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.closeResources()
}

func (s *Service) closeResources() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	}
	if err := s.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close backend: %w", err))
	}
	return errors.Join(errs...)
}

func (s *Service) checkOpen() error {
	if s.closed.Load() {
		return errors.Wrap(errors.ErrClosed, "storage service")
	}
	return nil
}
