// Package codec decodes point envelopes into the Point/Block/Event model.
//
// Three wire formats are supported:
//   - Classic: a flat run of 7-byte little-endian records, one implicit block
//   - Proto: a protobuf message of channels carrying blocks
//   - Legacy: Classic records whose time base comes from a Parquet sidecar
//
// The codec is selected from the envelope meta by ForEnvelope. Decoding
// never reads the whole payload of a record-based point: events are pulled
// from a fresh payload stream on each iteration.
package codec

import (
	"fmt"
	"strings"

	"github.com/xtxerr/numass/config"
	"github.com/xtxerr/numass/internal/constants"
	"github.com/xtxerr/numass/internal/envelope"
	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/logging"
	"github.com/xtxerr/numass/internal/storage/types"
)

var log = logging.Component("codec")

// Format is a point wire format, identical to the data_type meta value.
type Format string

const (
	FormatClassic Format = constants.DataTypeClassic
	FormatProto   Format = constants.DataTypeProto
	FormatLegacy  Format = constants.DataTypeLegacy
)

// Options configures decoding.
type Options struct {
	// TimeCoeff is the tick length in ns for points without time_coeff.
	TimeCoeff float64

	// ReadBufferSize is the buffered reader size of record streams.
	ReadBufferSize int

	// MaxProtoSize caps the payload of a protobuf point.
	MaxProtoSize int64

	// Sidecar is the columnar sidecar of a legacy point, nil if none.
	Sidecar envelope.Source
}

// DefaultOptions returns options with the package defaults.
func DefaultOptions() Options {
	return Options{
		TimeCoeff:      config.DefaultTimeCoeff,
		ReadBufferSize: config.DefaultReadBufferSize,
		MaxProtoSize:   config.DefaultMaxProtoPointSize,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.TimeCoeff <= 0 {
		o.TimeCoeff = def.TimeCoeff
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = def.ReadBufferSize
	}
	if o.MaxProtoSize <= 0 {
		o.MaxProtoSize = def.MaxProtoSize
	}
	return o
}

// Codec turns an envelope into a Point.
type Codec interface {
	// Format returns the wire format handled by the codec.
	Format() Format

	// Decode builds a lazy Point. Only metadata is inspected; the payload
	// is opened when events are pulled.
	Decode(env *envelope.Envelope, opts Options) (types.Point, error)
}

var codecs = map[Format]Codec{
	FormatClassic: classicCodec{},
	FormatProto:   protoCodec{},
	FormatLegacy:  legacyCodec{},
}

// Lookup returns the codec for a format.
func Lookup(f Format) (Codec, error) {
	c, ok := codecs[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnsupportedFormat, f)
	}
	return c, nil
}

// Detect infers the wire format of env.
//
// The data_type meta key wins. Without it a protocol key mentioning
// "proto" selects Proto, a sidecar selects Legacy and everything else is
// Classic.
func Detect(env *envelope.Envelope, opts Options) Format {
	m := env.Meta()
	if dt := m.String(constants.KeyDataType, ""); dt != "" {
		return Format(dt)
	}
	if strings.Contains(strings.ToLower(m.String(constants.KeyProtocol, "")), "proto") {
		return FormatProto
	}
	if opts.Sidecar != nil {
		return FormatLegacy
	}
	return FormatClassic
}

// ForEnvelope selects the codec for env.
func ForEnvelope(env *envelope.Envelope, opts Options) (Codec, error) {
	return Lookup(Detect(env, opts))
}

// Decode selects the codec for env and decodes it.
func Decode(env *envelope.Envelope, opts Options) (types.Point, error) {
	c, err := ForEnvelope(env, opts)
	if err != nil {
		return nil, errors.Wrap(err, env.Name())
	}
	p, err := c.Decode(env, opts.withDefaults())
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s as %s", env.Name(), c.Format())
	}
	return p, nil
}
