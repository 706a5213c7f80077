package parquet

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
)

// Options configures the Parquet writer.
type Options struct {
	// Compression algorithm
	Compression CompressionType
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{
		Compression: CompressionZstd,
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// SidecarRow describes one legacy point in Parquet format.
type SidecarRow struct {
	StartTimeMs int64   `parquet:"start_time_ms"`
	SetVoltage  float64 `parquet:"set_voltage"`
	ReadVoltage float64 `parquet:"read_voltage"`
	LengthSec   float64 `parquet:"length_sec"`
	TimeCoeff   float64 `parquet:"time_coeff,optional"`
	PointIndex  *int32  `parquet:"point_index,optional"`
}

// StartTime returns the start as a UTC time.
func (r *SidecarRow) StartTime() time.Time {
	return time.UnixMilli(r.StartTimeMs).UTC()
}

// Length returns the acquisition length.
func (r *SidecarRow) Length() time.Duration {
	return time.Duration(r.LengthSec * float64(time.Second))
}

// SidecarWriter writes sidecar rows to a stream.
type SidecarWriter struct {
	mu       sync.Mutex
	writer   *parquet.GenericWriter[SidecarRow]
	rowCount int64
	closed   bool
}

// NewSidecarWriter creates a sidecar writer on w. Closing the writer
// flushes the footer but does not close w.
func NewSidecarWriter(w io.Writer, opts Options) *SidecarWriter {
	writerOpts := []parquet.WriterOption{
		parquet.Compression(getCompression(opts.Compression)),
	}
	return &SidecarWriter{
		writer: parquet.NewGenericWriter[SidecarRow](w, writerOpts...),
	}
}

// Write appends rows.
func (w *SidecarWriter) Write(rows []SidecarRow) error {
	if len(rows) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	w.rowCount += int64(n)
	return nil
}

// Close flushes the Parquet footer.
func (w *SidecarWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// RowCount returns the number of rows written.
func (w *SidecarWriter) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// WriteSidecar writes a complete one-row sidecar to w.
func WriteSidecar(w io.Writer, row SidecarRow, opts Options) error {
	sw := NewSidecarWriter(w, opts)
	if err := sw.Write([]SidecarRow{row}); err != nil {
		return err
	}
	return sw.Close()
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = fmt.Errorf("parquet writer is closed")
