package codec

import (
	"github.com/xtxerr/numass/internal/constants"
	"github.com/xtxerr/numass/internal/envelope"
	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/storage/types"
)

// classicCodec decodes flat 7-byte record payloads. The whole payload is
// one block spanning [start_time, start_time+acquisition_time).
type classicCodec struct{}

func (classicCodec) Format() Format { return FormatClassic }

func (classicCodec) Decode(env *envelope.Envelope, opts Options) (types.Point, error) {
	m := env.Meta()
	start, err := m.Time(constants.KeyStartTime)
	if err != nil {
		return nil, errors.Wrap(err, "classic point")
	}
	length := acquisitionTime(m)
	timeCoeff := m.Float(constants.KeyTimeCoeff, opts.TimeCoeff)
	if m.Bool(constants.KeySplit, false) {
		log.Debug("split point decoded as a single block", "point", env.Name())
	}

	p := newPoint(env.Name(), FormatClassic, m)
	p.start = fixed(start)
	p.length = fixed(length)
	p.blocks = func() types.BlockIterator {
		return types.SliceBlocks([]types.Block{&types.FuncBlock{
			Start:     start,
			Duration:  length,
			ChannelID: -1,
			OpenEvent: func() types.EventIterator {
				return newRecordEvents(env, start, timeCoeff, opts.ReadBufferSize)
			},
		}})
	}
	return p, nil
}
