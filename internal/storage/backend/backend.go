// Package backend provides the file systems a storage tree is built on.
//
// All paths are slash-separated and relative to the backend root; "" and
// "." name the root itself. Implementations:
//   - Local: a directory on the local disk
//   - SFTP: a directory on a remote host, accessed over SSH
//   - Zip: a read-only view of a zip archive
package backend

import (
	"io"
	"path"
	"strings"
	"time"

	"github.com/xtxerr/numass/internal/envelope"
	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/logging"
)

var log = logging.Component("backend")

// Entry describes a directory entry.
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Backend is a hierarchical file store.
type Backend interface {
	// Name identifies the backend in logs, e.g. "local:/data/numass".
	Name() string

	// List returns the entries of dir sorted by name.
	List(dir string) ([]Entry, error)

	// Open opens a file for reading.
	Open(p string) (io.ReadCloser, error)

	// Create creates or truncates a file, creating parent directories.
	Create(p string) (io.WriteCloser, error)

	// Stat describes a file or directory.
	Stat(p string) (Entry, error)

	// Close releases connections and handles.
	Close() error
}

// Join joins path elements with slashes.
func Join(elem ...string) string {
	return Clean(path.Join(elem...))
}

// Clean normalizes p to the relative form used by backends.
func Clean(p string) string {
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "."
	}
	return p
}

// Base returns the last element of p.
func Base(p string) string {
	return path.Base(Clean(p))
}

// Exists reports whether p exists. Errors other than not-found are returned.
func Exists(b Backend, p string) (bool, error) {
	_, err := b.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// opener binds a backend path to the envelope.Source interface.
type opener struct {
	b Backend
	p string
}

// Source returns an envelope source reading p from b.
func Source(b Backend, p string) envelope.Source {
	return opener{b: b, p: p}
}

func (o opener) Name() string { return o.p }

func (o opener) Open() (io.ReadCloser, error) { return o.b.Open(o.p) }

func notFound(p string, err error) error {
	return errors.Wrapf(errors.Join(errors.ErrNotFound, err), "%s", p)
}
