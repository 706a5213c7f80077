package codec

import (
	"bufio"
	"encoding/binary"
	"io"
	"time"

	"github.com/xtxerr/numass/internal/envelope"
	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/storage/types"
)

// RecordSize is the size of one classic event record.
const RecordSize = 7

// Record is one classic event record:
//
//	offset size field
//	0      2    channel (amplitude), unsigned LE
//	2      4    tick count, unsigned LE
//	6      1    status, ignored
type Record struct {
	Channel uint16
	Ticks   uint32
	Status  byte
}

// AppendRecord appends the wire form of r to b.
func AppendRecord(b []byte, r Record) []byte {
	b = binary.LittleEndian.AppendUint16(b, r.Channel)
	b = binary.LittleEndian.AppendUint32(b, r.Ticks)
	return append(b, r.Status)
}

// EncodeRecords returns the wire form of records.
func EncodeRecords(records []Record) []byte {
	b := make([]byte, 0, len(records)*RecordSize)
	for _, r := range records {
		b = AppendRecord(b, r)
	}
	return b
}

// recordEvents streams classic records from the payload of env. The payload
// is opened on the first Next. A trailing partial record ends the stream
// without error.
type recordEvents struct {
	env       *envelope.Envelope
	start     time.Time
	timeCoeff float64
	bufSize   int

	rc     io.ReadCloser
	r      *bufio.Reader
	buf    [RecordSize]byte
	cur    types.Event
	err    error
	done   bool
	closed bool
}

func newRecordEvents(env *envelope.Envelope, start time.Time, timeCoeff float64, bufSize int) *recordEvents {
	return &recordEvents{env: env, start: start, timeCoeff: timeCoeff, bufSize: bufSize}
}

func (it *recordEvents) Next() bool {
	if it.done || it.closed {
		return false
	}
	if it.rc == nil {
		rc, err := it.env.Open()
		if err != nil {
			it.fail(err)
			return false
		}
		it.rc = rc
		it.r = bufio.NewReaderSize(rc, it.bufSize)
	}

	if _, err := io.ReadFull(it.r, it.buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			it.finish()
		} else {
			it.fail(errors.WrapIO(err, "read events", it.env.Name()))
		}
		return false
	}

	offset := types.TickTime(uint64(binary.LittleEndian.Uint32(it.buf[2:6])), it.timeCoeff)
	it.cur = types.Event{
		Amplitude: binary.LittleEndian.Uint16(it.buf[0:2]),
		Offset:    offset,
		Time:      it.start.Add(offset),
	}
	return true
}

func (it *recordEvents) Event() types.Event { return it.cur }

func (it *recordEvents) Err() error { return it.err }

func (it *recordEvents) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.done = true
	return it.release()
}

// finish releases the source as soon as the stream is exhausted.
func (it *recordEvents) finish() {
	it.done = true
	if err := it.release(); err != nil && it.err == nil {
		it.err = err
	}
}

func (it *recordEvents) fail(err error) {
	it.err = err
	it.finish()
}

func (it *recordEvents) release() error {
	if it.rc == nil {
		return nil
	}
	err := it.rc.Close()
	it.rc = nil
	it.r = nil
	return err
}
