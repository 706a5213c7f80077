package backend

import (
	"bytes"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/xtxerr/numass/internal/errors"
)

// Zip is a read-only backend over a zip archive.
type Zip struct {
	name   string
	reader *zip.Reader
	files  map[string]*zip.File
	dirs   map[string][]Entry
	closer io.Closer
}

// OpenZip opens the archive at p on b. Files without random access are
// read into memory.
func OpenZip(b Backend, p string) (*Zip, error) {
	st, err := b.Stat(p)
	if err != nil {
		return nil, err
	}
	rc, err := b.Open(p)
	if err != nil {
		return nil, err
	}

	name := b.Name() + "!" + Clean(p)
	if ra, ok := rc.(io.ReaderAt); ok {
		z, err := NewZip(name, ra, st.Size, rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		return z, nil
	}

	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, errors.WrapIO(err, "read archive", p)
	}
	return NewZip(name, bytes.NewReader(data), int64(len(data)), nil)
}

// NewZip indexes the archive in r. closer, if not nil, is closed by Close.
func NewZip(name string, r io.ReaderAt, size int64, closer io.Closer) (*Zip, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.Wrapf(errors.Join(errors.ErrFormat, err), "open archive %s", name)
	}

	z := &Zip{
		name:   name,
		reader: zr,
		files:  make(map[string]*zip.File, len(zr.File)),
		dirs:   map[string][]Entry{".": nil},
		closer: closer,
	}
	for _, f := range zr.File {
		z.index(f)
	}
	for dir := range z.dirs {
		entries := z.dirs[dir]
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	}
	return z, nil
}

func (z *Zip) index(f *zip.File) {
	isDir := strings.HasSuffix(f.Name, "/")
	p := Clean(f.Name)
	if p == "." {
		return
	}
	if isDir {
		z.addDir(p)
		return
	}
	if _, dup := z.files[p]; dup {
		log.Warn("duplicate archive entry, keeping first", "archive", z.name, "entry", p)
		return
	}
	z.files[p] = f
	parent := path.Dir(p)
	z.addDir(parent)
	z.dirs[parent] = append(z.dirs[parent], Entry{
		Name:    path.Base(p),
		Size:    int64(f.UncompressedSize64),
		ModTime: f.Modified,
	})
}

// addDir registers dir and its ancestors.
func (z *Zip) addDir(dir string) {
	for dir != "." {
		if _, ok := z.dirs[dir]; ok {
			return
		}
		z.dirs[dir] = nil
		parent := path.Dir(dir)
		z.dirs[parent] = append(z.dirs[parent], Entry{Name: path.Base(dir), IsDir: true})
		dir = parent
	}
}

// Name implements Backend.
func (z *Zip) Name() string { return z.name }

// List implements Backend.
func (z *Zip) List(dir string) ([]Entry, error) {
	entries, ok := z.dirs[Clean(dir)]
	if !ok {
		return nil, notFound(dir, errors.ErrNodeNotFound)
	}
	return append([]Entry(nil), entries...), nil
}

// Open implements Backend.
func (z *Zip) Open(p string) (io.ReadCloser, error) {
	f, ok := z.files[Clean(p)]
	if !ok {
		return nil, notFound(p, errors.ErrFragmentNotFound)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.WrapIO(err, "open entry", p)
	}
	return rc, nil
}

// Create implements Backend. Archives are never modified in place.
func (z *Zip) Create(p string) (io.WriteCloser, error) {
	return nil, errors.Wrapf(errors.ErrReadOnly, "create %s in %s", p, z.name)
}

// Stat implements Backend.
func (z *Zip) Stat(p string) (Entry, error) {
	p = Clean(p)
	if f, ok := z.files[p]; ok {
		return Entry{Name: path.Base(p), Size: int64(f.UncompressedSize64), ModTime: f.Modified}, nil
	}
	if _, ok := z.dirs[p]; ok {
		return Entry{Name: path.Base(p), IsDir: true}, nil
	}
	return Entry{}, notFound(p, errors.ErrNotFound)
}

// Close implements Backend.
func (z *Zip) Close() error {
	if z.closer == nil {
		return nil
	}
	return z.closer.Close()
}

// =============================================================================
// Writing
// =============================================================================

// ZipFile is one entry of an archive being written.
type ZipFile struct {
	Name string
	Data []byte
}

// WriteZip writes files as an archive. method is zip.Store or zip.Deflate.
func WriteZip(w io.Writer, files []ZipFile, method uint16) error {
	zw := zip.NewWriter(w)
	for _, f := range files {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: method})
		if err != nil {
			return errors.WrapIO(err, "create entry", f.Name)
		}
		if _, err := fw.Write(f.Data); err != nil {
			return errors.WrapIO(err, "write entry", f.Name)
		}
	}
	if err := zw.Close(); err != nil {
		return errors.WrapIO(err, "close archive", "")
	}
	return nil
}

// ParseZipMethod maps "store" and "deflate" to zip methods.
func ParseZipMethod(s string) (uint16, error) {
	switch s {
	case "store":
		return zip.Store, nil
	case "deflate", "":
		return zip.Deflate, nil
	default:
		return 0, errors.NewInvalidValue("push.compression", s, "must be store or deflate")
	}
}

// =============================================================================
// Reopening archive view
// =============================================================================

// Archive is a read-only view of an archive file that holds no handle
// between reads: the directory is indexed once and every Open reopens the
// archive.
type Archive struct {
	b     Backend
	p     string
	index *Zip
}

// OpenArchive indexes the archive at p on b.
func OpenArchive(b Backend, p string) (*Archive, error) {
	z, err := OpenZip(b, p)
	if err != nil {
		return nil, err
	}
	if err := z.Close(); err != nil {
		return nil, errors.WrapIO(err, "close archive", p)
	}
	return &Archive{b: b, p: p, index: z}, nil
}

// Name implements Backend.
func (a *Archive) Name() string { return a.index.Name() }

// List implements Backend.
func (a *Archive) List(dir string) ([]Entry, error) { return a.index.List(dir) }

// Stat implements Backend.
func (a *Archive) Stat(p string) (Entry, error) { return a.index.Stat(p) }

// Open implements Backend.
func (a *Archive) Open(p string) (io.ReadCloser, error) {
	if _, err := a.index.Stat(p); err != nil {
		return nil, err
	}
	z, err := OpenZip(a.b, a.p)
	if err != nil {
		return nil, err
	}
	rc, err := z.Open(p)
	if err != nil {
		z.Close()
		return nil, err
	}
	return &entryReader{ReadCloser: rc, archive: z}, nil
}

// Create implements Backend.
func (a *Archive) Create(p string) (io.WriteCloser, error) {
	return a.index.Create(p)
}

// Close implements Backend.
func (a *Archive) Close() error { return nil }

type entryReader struct {
	io.ReadCloser
	archive *Zip
}

func (r *entryReader) Close() error {
	return errors.Join(r.ReadCloser.Close(), r.archive.Close())
}
