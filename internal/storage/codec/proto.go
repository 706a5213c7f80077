package codec

import (
	"io"
	"slices"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/xtxerr/numass/internal/constants"
	"github.com/xtxerr/numass/internal/envelope"
	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/meta"
	"github.com/xtxerr/numass/internal/storage/types"
)

// protoCodec decodes protobuf points. A protobuf message cannot be parsed
// incrementally. Decode parses the payload once to reject truncated or
// malformed messages and keeps only the block extent; each Blocks call
// reads the payload again and releases it when the iterator is dropped.
type protoCodec struct{}

func (protoCodec) Format() Format { return FormatProto }

func (protoCodec) Decode(env *envelope.Envelope, opts Options) (types.Point, error) {
	m := env.Meta()
	compression := m.String(constants.KeyCompression, constants.CompressionNone)
	switch compression {
	case constants.CompressionNone, constants.CompressionGzip, constants.CompressionZstd:
	default:
		return nil, errors.NewBadValue(constants.KeyCompression, compression, "unsupported compression")
	}

	d := &protoDecoder{
		env:         env,
		meta:        m,
		compression: compression,
		maxSize:     opts.MaxProtoSize,
		frameLength: frameLength(m),
	}
	msg, err := d.read()
	if err != nil {
		return nil, err
	}
	d.extent = extentOf(msg)

	p := newPoint(env.Name(), FormatProto, m)
	p.start = d.startTime
	p.length = d.length
	p.blocks = d.blocks
	return p, nil
}

type extent struct {
	start time.Time
	end   time.Time
}

type protoDecoder struct {
	env         *envelope.Envelope
	meta        meta.Meta
	compression string
	maxSize     int64
	frameLength time.Duration

	// extent is the span of all blocks, used for points without
	// start_time or acquisition_time.
	extent extent
}

func (d *protoDecoder) startTime() time.Time {
	if t, err := d.meta.Time(constants.KeyStartTime); err == nil {
		return t
	}
	return d.extent.start
}

func (d *protoDecoder) length() time.Duration {
	if l := acquisitionTime(d.meta); l > 0 {
		return l
	}
	return d.extent.end.Sub(d.extent.start)
}

func extentOf(msg *ProtoPoint) extent {
	var e extent
	first := true
	for _, c := range msg.Channels {
		for _, b := range c.Blocks {
			start := blockStart(b.Time)
			end := start.Add(time.Duration(b.Length))
			if first || start.Before(e.start) {
				e.start = start
			}
			if first || end.After(e.end) {
				e.end = end
			}
			first = false
		}
	}
	return e
}

// read loads and parses the payload.
func (d *protoDecoder) read() (*ProtoPoint, error) {
	rc, err := d.env.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	switch d.compression {
	case constants.CompressionGzip:
		zr, err := gzip.NewReader(rc)
		if err != nil {
			return nil, errors.Wrap(errors.Join(errors.ErrFormat, err), "gzip payload")
		}
		defer zr.Close()
		r = zr
	case constants.CompressionZstd:
		zr, err := zstd.NewReader(rc)
		if err != nil {
			return nil, errors.Wrap(errors.Join(errors.ErrFormat, err), "zstd payload")
		}
		defer zr.Close()
		r = zr
	}

	data, err := io.ReadAll(io.LimitReader(r, d.maxSize+1))
	if err != nil {
		if d.compression != constants.CompressionNone {
			return nil, errors.Wrap(errors.Join(errors.ErrFormat, err), "decompress payload")
		}
		return nil, errors.WrapIO(err, "read payload", d.env.Name())
	}
	if int64(len(data)) > d.maxSize {
		return nil, errors.NewFormat("protobuf point %s exceeds %d bytes", d.env.Name(), d.maxSize)
	}
	return UnmarshalProtoPoint(data)
}

func (d *protoDecoder) blocks() types.BlockIterator {
	msg, err := d.read()
	if err != nil {
		return types.FailedBlocks(err)
	}

	var blocks []types.Block
	for _, c := range msg.Channels {
		for i := range c.Blocks {
			blocks = append(blocks, d.newBlock(int(c.ID), &c.Blocks[i]))
		}
	}
	slices.SortStableFunc(blocks, func(a, b types.Block) int {
		return a.StartTime().Compare(b.StartTime())
	})
	return types.SliceBlocks(blocks)
}

func (d *protoDecoder) newBlock(channel int, b *ProtoBlock) types.Block {
	start := blockStart(b.Time)
	if len(b.Times) != len(b.Amplitudes) {
		log.Warn("event columns differ in length",
			"point", d.env.Name(),
			"channel", channel,
			"times", len(b.Times),
			"amplitudes", len(b.Amplitudes))
	}
	frameLength := d.frameLength

	return &types.FuncBlock{
		Start:     start,
		Duration:  time.Duration(b.Length),
		ChannelID: channel,
		OpenEvent: func() types.EventIterator {
			n := min(len(b.Times), len(b.Amplitudes))
			events := make([]types.Event, n)
			for i := 0; i < n; i++ {
				offset := time.Duration(b.Times[i])
				events[i] = types.Event{
					Amplitude: uint16(b.Amplitudes[i]),
					Offset:    offset,
					Time:      start.Add(offset),
				}
			}
			return types.SliceEvents(events)
		},
		OpenFrame: func() types.FrameIterator {
			frames := make([]types.Frame, len(b.Frames))
			for i, f := range b.Frames {
				offset := time.Duration(f.Time)
				frames[i] = types.Frame{
					Time:   start.Add(offset),
					Offset: offset,
					Length: frameLength,
					Data:   f.Data,
				}
			}
			return types.SliceFrames(frames)
		},
	}
}

// blockStart converts ns since the epoch to a UTC time.
func blockStart(ns uint64) time.Time {
	return time.Unix(int64(ns/1e9), int64(ns%1e9)).UTC()
}

// frameLength is b_size / sample_freq, zero when either is missing.
func frameLength(m meta.Meta) time.Duration {
	size := m.Float(constants.KeyBlockSize, 0)
	freq := m.Float(constants.KeySampleFreq, 0)
	if freq == 0 {
		freq = m.Float(constants.KeyParamsSampleFreq, 0)
	}
	if size <= 0 || freq <= 0 {
		return 0
	}
	return time.Duration(size / freq * float64(time.Second))
}
