package envelope

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/xtxerr/numass/internal/meta"
)

// Write serializes an envelope with JSON metadata.
func Write(w io.Writer, m meta.Meta, data []byte) error {
	return WriteType(w, meta.TypeJSON, m, data)
}

// WriteType serializes an envelope with the given metadata encoding.
func WriteType(w io.Writer, t meta.Type, m meta.Meta, data []byte) error {
	metaBytes, err := m.Encode(t)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	if uint64(len(metaBytes)) > math.MaxUint32 || uint64(len(data)) >= unknownLengthMarker {
		return fmt.Errorf("envelope too large")
	}

	var header [headerSize]byte
	copy(header[0:2], startTag)
	copy(header[2:6], version)
	binary.BigEndian.PutUint16(header[6:8], uint16(t))
	binary.BigEndian.PutUint32(header[8:12], uint32(len(metaBytes)))
	binary.BigEndian.PutUint32(header[12:16], uint32(len(data)))
	copy(header[16:20], endTag)

	for _, chunk := range [][]byte{header[:], metaBytes, data} {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Encode returns the serialized form of an envelope with JSON metadata.
func Encode(m meta.Meta, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, m, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// =============================================================================
// In-memory sources
// =============================================================================

// BytesSource serves an envelope from memory.
type BytesSource struct {
	name string
	data []byte
}

// FromBytes wraps an encoded envelope.
func FromBytes(name string, data []byte) *BytesSource {
	return &BytesSource{name: name, data: data}
}

// Name implements Source.
func (b *BytesSource) Name() string { return b.name }

// Open implements Source.
func (b *BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// New builds an in-memory envelope. It never fails for encodable meta.
func New(name string, m meta.Meta, data []byte) (*Envelope, error) {
	encoded, err := Encode(m, data)
	if err != nil {
		return nil, err
	}
	return Read(FromBytes(name, encoded))
}

// OpenerSource adapts a function to Source.
type OpenerSource struct {
	name string
	open func() (io.ReadCloser, error)
}

// FromOpener wraps open as a Source.
func FromOpener(name string, open func() (io.ReadCloser, error)) *OpenerSource {
	return &OpenerSource{name: name, open: open}
}

// Name implements Source.
func (o *OpenerSource) Name() string { return o.name }

// Open implements Source.
func (o *OpenerSource) Open() (io.ReadCloser, error) { return o.open() }
