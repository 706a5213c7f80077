// Package envelope reads and writes numass envelopes.
//
// An envelope is a metadata tree plus a byte payload. Reading an envelope
// parses only the header and the metadata; the payload is re-opened on
// demand as a fresh forward stream, so decoding never shares a cursor.
//
// Binary layout (big-endian header fields):
//
//	offset size field
//	0      2    start tag "#~"
//	2      4    version "DF02"
//	6      2    meta type (1 = JSON, 2 = YAML)
//	8      4    meta length
//	12     4    data length (0xFFFFFFFF = until end of stream)
//	16     4    end tag "~#\r\n"
//	20     ...  meta bytes, then data bytes
//
// A fragment that does not start with the tag is a meta-only envelope:
// its whole content is a JSON or YAML document and the payload is empty.
package envelope

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/meta"
)

const (
	startTag   = "#~"
	version    = "DF02"
	endTag     = "~#\r\n"
	headerSize = 20

	// UnknownLength marks a payload that runs until the end of the stream.
	UnknownLength = int64(-1)

	unknownLengthMarker = 0xFFFFFFFF

	// maxMetaOnlySize caps meta-only fragments, which are read whole.
	maxMetaOnlySize = 16 * 1024 * 1024
)

// Source is something an envelope can be (re)opened from: a file, an
// archive entry, a remote file or an in-memory buffer.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string

	// Open returns a new forward stream positioned at the first byte.
	Open() (io.ReadCloser, error)
}

// Envelope is an immutable metadata tree plus a lazily opened payload.
type Envelope struct {
	src        Source
	meta       meta.Meta
	metaType   meta.Type
	dataOffset int64
	dataLength int64
}

// Read parses the header and metadata of src. The payload is not read.
func Read(src Source) (*Envelope, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, errors.WrapIO(err, "open envelope", src.Name())
	}
	defer rc.Close()

	br := bufio.NewReader(rc)
	peek, err := br.Peek(len(startTag))
	if err != nil && err != io.EOF {
		return nil, errors.WrapIO(err, "read envelope", src.Name())
	}
	if !bytes.Equal(peek, []byte(startTag)) {
		return readMetaOnly(src, br)
	}

	var header [headerSize]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, fmt.Errorf("%s: short header: %w: %w", src.Name(), errors.ErrBadEnvelope, err)
	}
	if string(header[2:6]) != version {
		return nil, fmt.Errorf("%s: version %q: %w", src.Name(), header[2:6], errors.ErrBadEnvelope)
	}
	if string(header[16:20]) != endTag {
		return nil, fmt.Errorf("%s: missing end tag: %w", src.Name(), errors.ErrBadEnvelope)
	}

	metaType := meta.Type(binary.BigEndian.Uint16(header[6:8]))
	metaLen := int64(binary.BigEndian.Uint32(header[8:12]))
	dataLen := int64(binary.BigEndian.Uint32(header[12:16]))
	if uint32(dataLen) == unknownLengthMarker {
		dataLen = UnknownLength
	}
	if metaLen > maxMetaOnlySize {
		return nil, fmt.Errorf("%s: meta length %d: %w", src.Name(), metaLen, errors.ErrBadEnvelope)
	}

	metaBytes := make([]byte, metaLen)
	if _, err := io.ReadFull(br, metaBytes); err != nil {
		return nil, fmt.Errorf("%s: short meta: %w: %w", src.Name(), errors.ErrBadEnvelope, err)
	}
	m, err := meta.Decode(metaType, metaBytes)
	if err != nil {
		return nil, errors.Wrap(err, src.Name())
	}

	return &Envelope{
		src:        src,
		meta:       m,
		metaType:   metaType,
		dataOffset: headerSize + metaLen,
		dataLength: dataLen,
	}, nil
}

func readMetaOnly(src Source, r io.Reader) (*Envelope, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxMetaOnlySize+1))
	if err != nil {
		return nil, errors.WrapIO(err, "read meta", src.Name())
	}
	if len(data) > maxMetaOnlySize {
		return nil, fmt.Errorf("%s: meta-only fragment too large: %w", src.Name(), errors.ErrBadEnvelope)
	}
	m, err := meta.Sniff(data)
	if err != nil {
		return nil, errors.Wrap(err, src.Name())
	}
	return &Envelope{src: src, meta: m, dataLength: 0}, nil
}

// Meta returns the metadata tree.
func (e *Envelope) Meta() meta.Meta {
	return e.meta
}

// MetaType returns how the metadata was serialized, TypeUnknown for
// meta-only fragments.
func (e *Envelope) MetaType() meta.Type {
	return e.metaType
}

// Name returns the source name.
func (e *Envelope) Name() string {
	return e.src.Name()
}

// DataLength returns the declared payload length or UnknownLength.
func (e *Envelope) DataLength() int64 {
	return e.dataLength
}

// HasData reports whether the envelope may carry a payload.
func (e *Envelope) HasData() bool {
	return e.dataLength != 0
}

// Open returns a fresh stream over the payload. The caller must close it.
func (e *Envelope) Open() (io.ReadCloser, error) {
	if e.dataLength == 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}

	rc, err := e.src.Open()
	if err != nil {
		return nil, errors.WrapIO(err, "open payload", e.src.Name())
	}
	if err := skip(rc, e.dataOffset); err != nil {
		rc.Close()
		return nil, errors.WrapIO(err, "seek payload", e.src.Name())
	}

	var r io.Reader = rc
	if e.dataLength > 0 {
		r = io.LimitReader(rc, e.dataLength)
	}
	return &payloadReader{Reader: r, closer: rc}, nil
}

// ReadAll reads the whole payload, refusing payloads larger than limit.
// A limit of zero or less disables the check.
func (e *Envelope) ReadAll(limit int64) ([]byte, error) {
	if limit > 0 && e.dataLength > limit {
		return nil, fmt.Errorf("%s: payload of %d bytes exceeds %d: %w", e.Name(), e.dataLength, limit, errors.ErrFormat)
	}
	rc, err := e.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapIO(err, "read payload", e.Name())
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: payload exceeds %d bytes: %w", e.Name(), limit, errors.ErrFormat)
	}
	return data, nil
}

func skip(r io.Reader, n int64) error {
	if n == 0 {
		return nil
	}
	if s, ok := r.(io.Seeker); ok {
		_, err := s.Seek(n, io.SeekStart)
		return err
	}
	copied, err := io.CopyN(io.Discard, r, n)
	if err == io.EOF && copied < n {
		return io.ErrUnexpectedEOF
	}
	return err
}

type payloadReader struct {
	io.Reader
	closer io.Closer
}

func (p *payloadReader) Close() error {
	return p.closer.Close()
}
