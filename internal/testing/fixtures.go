package testing

import (
	"bytes"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/xtxerr/numass/config"
	"github.com/xtxerr/numass/internal/envelope"
	"github.com/xtxerr/numass/internal/meta"
	"github.com/xtxerr/numass/internal/storage/backend"
	"github.com/xtxerr/numass/internal/storage/codec"
	"github.com/xtxerr/numass/internal/storage/parquet"
)

// T0 is the start time used by fixture points.
var T0 = time.Date(2017, 5, 2, 9, 32, 11, 0, time.UTC)

// Run describes a run directory or archive.
type Run struct {
	// Meta is written as a meta-only YAML fragment. Nil omits the fragment.
	Meta map[string]any

	// Voltage is written verbatim as the voltage fragment when not empty.
	Voltage string

	Points []Point
}

// Point is one fixture point fragment.
type Point struct {
	Name string

	// Data is the complete fragment; when set the other fields are ignored.
	Data []byte

	Meta    map[string]any
	Records []codec.Record
	Proto   *codec.ProtoPoint
	Sidecar *parquet.SidecarRow
}

// ClassicPoint returns a classic point starting at T0 with the given index.
func ClassicPoint(name string, index int, records ...codec.Record) Point {
	return Point{
		Name: name,
		Meta: map[string]any{
			"start_time": T0.Format(time.RFC3339Nano),
			"external_meta": map[string]any{
				"point_index":      index,
				"HV1_value":        14000 + 500*index,
				"acquisition_time": 30,
			},
		},
		Records: records,
	}
}

// Files returns the fragments of run as archive entries.
func (r Run) Files(t *testing.T) []backend.ZipFile {
	t.Helper()
	var files []backend.ZipFile
	if r.Meta != nil {
		data, err := meta.New(r.Meta).EncodeYAML()
		if err != nil {
			t.Fatalf("encode run meta: %v", err)
		}
		files = append(files, backend.ZipFile{Name: config.DefaultMetaFragment, Data: data})
	}
	if r.Voltage != "" {
		files = append(files, backend.ZipFile{Name: config.DefaultVoltageFragment, Data: []byte(r.Voltage)})
	}
	for _, p := range r.Points {
		files = append(files, backend.ZipFile{Name: p.Name, Data: p.encode(t)})
		if p.Sidecar != nil {
			var buf bytes.Buffer
			if err := parquet.WriteSidecar(&buf, *p.Sidecar, parquet.DefaultOptions()); err != nil {
				t.Fatalf("write sidecar: %v", err)
			}
			files = append(files, backend.ZipFile{Name: p.Name + config.DefaultSidecarSuffix, Data: buf.Bytes()})
		}
	}
	return files
}

func (p Point) encode(t *testing.T) []byte {
	t.Helper()
	if p.Data != nil {
		return p.Data
	}
	m := meta.New(p.Meta)
	var (
		data []byte
		err  error
	)
	switch {
	case p.Proto != nil:
		data, err = codec.EncodeProto(m, p.Proto, "")
	case p.Sidecar != nil:
		data, err = envelope.Encode(m, codec.EncodeRecords(p.Records))
	default:
		data, err = codec.EncodeClassic(m, p.Records)
	}
	if err != nil {
		t.Fatalf("encode point %s: %v", p.Name, err)
	}
	return data
}

// WriteRun writes run as files under dir on b.
func WriteRun(t *testing.T, b backend.Backend, dir string, run Run) {
	t.Helper()
	for _, f := range run.Files(t) {
		WriteFile(t, b, backend.Join(dir, f.Name), f.Data)
	}
}

// ArchiveBytes returns run as a zip archive.
func ArchiveBytes(t *testing.T, run Run) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := backend.WriteZip(&buf, run.Files(t), zip.Deflate); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return buf.Bytes()
}

// WriteArchive writes run as a zip archive at p on b.
func WriteArchive(t *testing.T, b backend.Backend, p string, run Run) {
	t.Helper()
	WriteFile(t, b, p, ArchiveBytes(t, run))
}

// WriteFile writes data at p on b.
func WriteFile(t *testing.T, b backend.Backend, p string, data []byte) {
	t.Helper()
	w, err := b.Create(p)
	if err != nil {
		t.Fatalf("create %s: %v", p, err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close %s: %v", p, err)
	}
}
