package parquet

import (
	"bytes"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/xtxerr/numass/internal/errors"
)

// maxSidecarSize bounds sidecars that are read into memory.
const maxSidecarSize = 16 * 1024 * 1024

// ReadSidecar reads all rows of a sidecar.
func ReadSidecar(r io.ReaderAt) ([]SidecarRow, error) {
	reader := parquet.NewGenericReader[SidecarRow](r)
	defer reader.Close()

	rows := make([]SidecarRow, reader.NumRows())
	n := 0
	for n < len(rows) {
		count, err := reader.Read(rows[n:])
		n += count
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read sidecar rows: %w: %w", errors.ErrFormat, err)
		}
		if count == 0 {
			break
		}
	}
	return rows[:n], nil
}

// ReadSidecarStream buffers a sidecar stream and reads its first row.
// Archive entries and remote files are not seekable, so the whole file is
// loaded; sidecars are tiny.
func ReadSidecarStream(r io.Reader) (SidecarRow, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSidecarSize+1))
	if err != nil {
		return SidecarRow{}, errors.WrapIO(err, "read", "sidecar")
	}
	if len(data) > maxSidecarSize {
		return SidecarRow{}, errors.NewFormat("sidecar exceeds %d bytes", maxSidecarSize)
	}
	return ReadSidecarBytes(data)
}

// ReadSidecarBytes reads the first row of an in-memory sidecar.
func ReadSidecarBytes(data []byte) (row SidecarRow, err error) {
	// parquet-go panics on some truncated footers.
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewFormat("corrupt sidecar: %v", r)
		}
	}()

	rows, err := ReadSidecar(bytes.NewReader(data))
	if err != nil {
		return SidecarRow{}, err
	}
	if len(rows) == 0 {
		return SidecarRow{}, errors.NewFormat("sidecar has no rows")
	}
	return rows[0], nil
}
