package tree

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/storage/backend"
	"github.com/xtxerr/numass/internal/storage/loader"
	"github.com/xtxerr/numass/internal/validation"
)

// PushEvent describes an archive written by PushData.
type PushEvent struct {
	ID          uuid.UUID
	Shelf       string
	Name        string
	File        string
	Size        int
	Source      string
	Overwritten bool
	Time        time.Time
}

// Listener is notified after a push.
type Listener interface {
	DataPushed(ctx context.Context, ev PushEvent) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev PushEvent) error

// DataPushed implements Listener.
func (f ListenerFunc) DataPushed(ctx context.Context, ev PushEvent) error { return f(ctx, ev) }

// PushData writes data as the archive "<name>.<ext>" under the shelf at
// shelfPath. An existing archive is overwritten with a warning; there is
// no atomic replace. The new run becomes a child of the shelf without a
// full refresh. source identifies the writer in the data-pushed event.
func (t *Tree) PushData(ctx context.Context, shelfPath, name string, data []byte, source string) (PushEvent, error) {
	if err := validation.ValidateRunName(name, t.opts.Loader.Layout.ArchiveExtension); err != nil {
		return PushEvent{}, err
	}
	n, err := t.Resolve(shelfPath)
	if err != nil {
		return PushEvent{}, err
	}
	s, err := n.Shelf()
	if err != nil {
		return PushEvent{}, err
	}

	layout := t.opts.Loader.Layout
	file := backend.Join(s.dir, layout.ArchiveName(name))
	exists, err := backend.Exists(t.backend, file)
	if err != nil {
		return PushEvent{}, err
	}
	if exists {
		log.Warn("overwriting run archive", "shelf", s.path, "file", file)
	}

	if err := writeAll(t.backend, file, data); err != nil {
		return PushEvent{}, err
	}

	ev := PushEvent{
		ID:          uuid.New(),
		Shelf:       s.path,
		Name:        name,
		File:        file,
		Size:        len(data),
		Source:      source,
		Overwritten: exists,
		Time:        time.Now().UTC(),
	}
	t.opts.Loader.Metrics.Pushed(len(data))
	log.Info("run pushed",
		"shelf", s.path,
		"name", name,
		"size", len(data),
		"source", source)

	l, err := loader.OpenArchive(name, t.backend, file, t.opts.Loader)
	if err != nil {
		log.Warn("pushed archive is not readable", "file", file, "error", err)
	} else if !s.setArchive(archiveNode(name, childPath(s.path, name), l)) {
		log.Warn("run directory of the same name shadows pushed archive",
			"shelf", s.path,
			"name", name,
			"file", file)
	}

	for _, lst := range t.opts.Listeners {
		if err := lst.DataPushed(ctx, ev); err != nil {
			log.Warn("push listener failed", "id", ev.ID, "error", err)
		}
	}
	return ev, nil
}

func writeAll(b backend.Backend, p string, data []byte) error {
	w, err := b.Create(p)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return errors.WrapIO(err, "write", p)
	}
	if err := w.Close(); err != nil {
		return errors.WrapIO(err, "close", p)
	}
	return nil
}
