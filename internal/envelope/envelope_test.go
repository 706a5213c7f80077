package envelope

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/meta"
)

type fileSource string

func (f fileSource) Name() string                 { return string(f) }
func (f fileSource) Open() (io.ReadCloser, error) { return os.Open(string(f)) }

func TestWriteRead(t *testing.T) {
	m := meta.New(map[string]any{"time_coeff": 20.0, "external_meta": map[string]any{"HV1_value": 12000}})
	payload := []byte{1, 2, 3, 4, 5, 6, 7}

	encoded, err := Encode(m, payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	env, err := Read(FromBytes("p1", encoded))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if env.MetaType() != meta.TypeJSON {
		t.Errorf("MetaType = %v, want json", env.MetaType())
	}
	if got := env.Meta().Float("external_meta.HV1_value", 0); got != 12000 {
		t.Errorf("HV1_value = %v, want 12000", got)
	}
	if env.DataLength() != int64(len(payload)) {
		t.Errorf("DataLength = %d, want %d", env.DataLength(), len(payload))
	}

	data, err := env.ReadAll(0)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("payload = %v, want %v", data, payload)
	}

	// Each Open is an independent stream.
	for i := 0; i < 2; i++ {
		rc, err := env.Open()
		if err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
		first := make([]byte, 1)
		if _, err := io.ReadFull(rc, first); err != nil {
			t.Fatalf("read #%d: %v", i, err)
		}
		if first[0] != 1 {
			t.Errorf("Open #%d starts at %d, want 1", i, first[0])
		}
		rc.Close()
	}
}

func TestReadFromFileSeeks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p0")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteType(f, meta.TypeYAML, meta.New(map[string]any{"split": false}), []byte("payload")); err != nil {
		t.Fatalf("WriteType: %v", err)
	}
	f.Close()

	env, err := Read(fileSource(path))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if env.MetaType() != meta.TypeYAML {
		t.Errorf("MetaType = %v, want yaml", env.MetaType())
	}
	data, err := env.ReadAll(0)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("payload = %q", data)
	}
}

func TestMetaOnlyFragment(t *testing.T) {
	env, err := Read(FromBytes("meta", []byte("description: calibration run\nexternal_meta:\n  HV1_value: 18500\n")))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if env.HasData() {
		t.Error("meta-only envelope should have no data")
	}
	if got := env.Meta().String("description", ""); got != "calibration run" {
		t.Errorf("description = %q", got)
	}
	data, err := env.ReadAll(0)
	if err != nil || len(data) != 0 {
		t.Errorf("ReadAll = %v, %v; want empty", data, err)
	}
}

func TestBadEnvelopes(t *testing.T) {
	good, err := Encode(meta.Empty(), []byte{9})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"short header", good[:10]},
		{"bad version", append([]byte("#~DF01"), good[6:]...)},
		{"bad end tag", append(append([]byte{}, good[:16]...), []byte("xxxx")...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(FromBytes(tt.name, tt.data))
			if !errors.IsFormat(err) {
				t.Errorf("expected format error, got %v", err)
			}
		})
	}
}

func TestReadAllLimit(t *testing.T) {
	env, err := New("p2", meta.Empty(), make([]byte, 100))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.ReadAll(10); !errors.IsFormat(err) {
		t.Errorf("expected format error for oversize payload, got %v", err)
	}
}

func TestOpenFailureIsIO(t *testing.T) {
	src := FromOpener("gone", func() (io.ReadCloser, error) { return nil, os.ErrNotExist })
	_, err := Read(src)
	if !errors.IsIO(err) {
		t.Errorf("expected io error, got %v", err)
	}
}
