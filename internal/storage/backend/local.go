package backend

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/xtxerr/numass/internal/errors"
)

// Local is a backend rooted at a local directory.
type Local struct {
	root string
}

// NewLocal returns a backend rooted at dir. The directory must exist.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.WrapIO(err, "resolve", dir)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, mapLocalErr(err, "stat", dir)
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(errors.ErrInvalidPath, "%s is not a directory", dir)
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string { return l.root }

// Name implements Backend.
func (l *Local) Name() string { return "local:" + l.root }

func (l *Local) abs(p string) string {
	return filepath.Join(l.root, filepath.FromSlash(Clean(p)))
}

// List implements Backend.
func (l *Local) List(dir string) ([]Entry, error) {
	des, err := os.ReadDir(l.abs(dir))
	if err != nil {
		return nil, mapLocalErr(err, "list", dir)
	}
	out := make([]Entry, 0, len(des))
	for _, de := range des {
		info, err := de.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			log.Debug("skipping vanished entry", "dir", dir, "name", de.Name(), "error", err)
			continue
		}
		out = append(out, entryFromInfo(info))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Open implements Backend.
func (l *Local) Open(p string) (io.ReadCloser, error) {
	f, err := os.Open(l.abs(p))
	if err != nil {
		return nil, mapLocalErr(err, "open", p)
	}
	return f, nil
}

// Create implements Backend.
func (l *Local) Create(p string) (io.WriteCloser, error) {
	target := l.abs(p)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, errors.WrapIO(err, "mkdir", p)
	}
	f, err := os.Create(target)
	if err != nil {
		return nil, errors.WrapIO(err, "create", p)
	}
	return f, nil
}

// Stat implements Backend.
func (l *Local) Stat(p string) (Entry, error) {
	info, err := os.Stat(l.abs(p))
	if err != nil {
		return Entry{}, mapLocalErr(err, "stat", p)
	}
	return entryFromInfo(info), nil
}

// Close implements Backend.
func (l *Local) Close() error { return nil }

func entryFromInfo(info fs.FileInfo) Entry {
	return Entry{
		Name:    info.Name(),
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

func mapLocalErr(err error, op, p string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return notFound(p, err)
	}
	return errors.WrapIO(err, op, p)
}
