package codec

import (
	"github.com/xtxerr/numass/internal/constants"
	"github.com/xtxerr/numass/internal/envelope"
	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/meta"
	"github.com/xtxerr/numass/internal/storage/parquet"
	"github.com/xtxerr/numass/internal/storage/types"
)

// KeyReadVoltage holds the read-back voltage taken from a legacy sidecar.
const KeyReadVoltage = "external_meta.HV1_read"

// legacyCodec decodes classic records whose time base, voltages and length
// come from a Parquet sidecar. Sidecar values replace the matching envelope
// meta keys, so Point accessors agree with Meta.
type legacyCodec struct{}

func (legacyCodec) Format() Format { return FormatLegacy }

func (legacyCodec) Decode(env *envelope.Envelope, opts Options) (types.Point, error) {
	if opts.Sidecar == nil {
		return nil, errors.NewMissingKey("sidecar of " + env.Name())
	}
	row, err := readSidecar(opts.Sidecar)
	if err != nil {
		return nil, err
	}

	m := mergeSidecar(env.Meta(), row)
	start := row.StartTime()
	length := row.Length()
	timeCoeff := m.Float(constants.KeyTimeCoeff, opts.TimeCoeff)

	p := newPoint(env.Name(), FormatLegacy, m)
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

func readSidecar(src envelope.Source) (parquet.SidecarRow, error) {
	rc, err := src.Open()
	if err != nil {
		return parquet.SidecarRow{}, errors.WrapIO(err, "open sidecar", src.Name())
	}
	defer rc.Close()

	row, err := parquet.ReadSidecarStream(rc)
	if err != nil {
		return parquet.SidecarRow{}, errors.Wrap(err, src.Name())
	}
	return row, nil
}

func mergeSidecar(m meta.Meta, row parquet.SidecarRow) meta.Meta {
	m = m.With(constants.KeyStartTime, row.StartTimeMs).
		With(constants.KeyExternalAcquisitionTime, row.LengthSec).
		With(constants.KeyVoltage, row.SetVoltage).
		With(KeyReadVoltage, row.ReadVoltage)
	if row.TimeCoeff > 0 {
		m = m.With(constants.KeyTimeCoeff, row.TimeCoeff)
	}
	if row.PointIndex != nil {
		m = m.With(constants.KeyPointIndex, int(*row.PointIndex))
	}
	return m
}
