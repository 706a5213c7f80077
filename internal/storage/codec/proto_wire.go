package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/xtxerr/numass/internal/errors"
)

// Protobuf schema of a point:
//
//	message Point   { repeated Channel channels = 1; }
//	message Channel { uint64 id = 1; repeated Block blocks = 2; }
//	message Block   { uint64 time = 1; repeated Frame frames = 2; Events events = 3;
//	                  uint64 length = 4; uint64 bin_size = 5; }
//	message Frame   { uint64 time = 1; bytes data = 2; }
//	message Events  { repeated uint64 times = 1; repeated uint64 amplitudes = 2; }
//
// Block.time is ns since the epoch. Frame.time and Events.times are ns since
// the block start. Block.length is in ns.

// ProtoPoint is the decoded protobuf point message.
type ProtoPoint struct {
	Channels []ProtoChannel
}

// ProtoChannel is one digitizer channel.
type ProtoChannel struct {
	ID     uint64
	Blocks []ProtoBlock
}

// ProtoBlock is one acquisition block of a channel.
type ProtoBlock struct {
	Time       uint64
	Length     uint64
	BinSize    uint64
	Times      []uint64
	Amplitudes []uint64
	Frames     []ProtoFrame
}

// ProtoFrame is one raw waveform.
type ProtoFrame struct {
	Time uint64
	Data []byte
}

// =============================================================================
// Encoding
// =============================================================================

// Marshal returns the wire form of p. Repeated scalars are packed.
func (p *ProtoPoint) Marshal() []byte {
	var b []byte
	for i := range p.Channels {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Channels[i].marshal())
	}
	return b
}

func (c *ProtoChannel) marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, c.ID)
	for i := range c.Blocks {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, c.Blocks[i].marshal())
	}
	return b
}

func (bl *ProtoBlock) marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, bl.Time)
	for _, f := range bl.Frames {
		var fb []byte
		fb = appendVarintField(fb, 1, f.Time)
		fb = protowire.AppendTag(fb, 2, protowire.BytesType)
		fb = protowire.AppendBytes(fb, f.Data)
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, fb)
	}
	if len(bl.Times) > 0 || len(bl.Amplitudes) > 0 {
		var eb []byte
		eb = appendPacked(eb, 1, bl.Times)
		eb = appendPacked(eb, 2, bl.Amplitudes)
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, eb)
	}
	b = appendVarintField(b, 4, bl.Length)
	b = appendVarintField(b, 5, bl.BinSize)
	return b
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendPacked(b []byte, num protowire.Number, vs []uint64) []byte {
	if len(vs) == 0 {
		return b
	}
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, v)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

// =============================================================================
// Decoding
// =============================================================================

// UnmarshalProtoPoint parses the wire form of a point. Unknown fields are
// skipped; truncated input is a format error.
func UnmarshalProtoPoint(b []byte) (*ProtoPoint, error) {
	p := &ProtoPoint{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if num == 1 && typ == protowire.BytesType {
			c, err := unmarshalChannel(v)
			if err != nil {
				return err
			}
			p.Channels = append(p.Channels, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func unmarshalChannel(b []byte) (ProtoChannel, error) {
	var c ProtoChannel
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == 1 && typ == protowire.VarintType:
			c.ID = x
		case num == 2 && typ == protowire.BytesType:
			bl, err := unmarshalBlock(v)
			if err != nil {
				return err
			}
			c.Blocks = append(c.Blocks, bl)
		}
		return nil
	})
	return c, err
}

func unmarshalBlock(b []byte) (ProtoBlock, error) {
	var bl ProtoBlock
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == 1 && typ == protowire.VarintType:
			bl.Time = x
		case num == 2 && typ == protowire.BytesType:
			f, err := unmarshalFrame(v)
			if err != nil {
				return err
			}
			bl.Frames = append(bl.Frames, f)
		case num == 3 && typ == protowire.BytesType:
			return unmarshalEvents(v, &bl)
		case num == 4 && typ == protowire.VarintType:
			bl.Length = x
		case num == 5 && typ == protowire.VarintType:
			bl.BinSize = x
		}
		return nil
	})
	return bl, err
}

func unmarshalFrame(b []byte) (ProtoFrame, error) {
	var f ProtoFrame
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == 1 && typ == protowire.VarintType:
			f.Time = x
		case num == 2 && typ == protowire.BytesType:
			f.Data = v
		}
		return nil
	})
	return f, err
}

func unmarshalEvents(b []byte, bl *ProtoBlock) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		var dst *[]uint64
		switch num {
		case 1:
			dst = &bl.Times
		case 2:
			dst = &bl.Amplitudes
		default:
			return nil
		}
		switch typ {
		case protowire.VarintType:
			*dst = append(*dst, x)
		case protowire.BytesType:
			vs, err := unpackVarints(v)
			if err != nil {
				return err
			}
			*dst = append(*dst, vs...)
		}
		return nil
	})
}

func unpackVarints(b []byte) ([]uint64, error) {
	out := make([]uint64, 0, len(b))
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, wireError(n)
		}
		out = append(out, v)
		b = b[n:]
	}
	return out, nil
}

// walkFields calls fn for every field of a message. v holds the payload of
// length-delimited fields and x the value of varint fields.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireError(n)
		}
		b = b[n:]

		var (
			v []byte
			x uint64
		)
		switch typ {
		case protowire.VarintType:
			x, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return wireError(n)
		}
		b = b[n:]

		if err := fn(num, typ, v, x); err != nil {
			return err
		}
	}
	return nil
}

func wireError(n int) error {
	return fmt.Errorf("%w: protobuf: %w", errors.ErrFormat, protowire.ParseError(n))
}
