package codec

import (
	"time"

	"github.com/xtxerr/numass/config"
	"github.com/xtxerr/numass/internal/constants"
	"github.com/xtxerr/numass/internal/meta"
	"github.com/xtxerr/numass/internal/storage/types"
)

// point holds the fields shared by all codecs. Start and length may be
// computed lazily by the format.
type point struct {
	name    string
	format  Format
	meta    meta.Meta
	index   int
	voltage float64
	start   func() time.Time
	length  func() time.Duration
	blocks  func() types.BlockIterator
}

func newPoint(name string, f Format, m meta.Meta) *point {
	return &point{
		name:    name,
		format:  f,
		meta:    m,
		index:   m.Int(constants.KeyPointIndex, config.DefaultPointIndex),
		voltage: m.Float(constants.KeyVoltage, 0),
	}
}

func (p *point) Name() string          { return p.name }
func (p *point) Format() string        { return string(p.format) }
func (p *point) Meta() meta.Meta       { return p.meta }
func (p *point) Index() int            { return p.index }
func (p *point) Voltage() float64      { return p.voltage }
func (p *point) StartTime() time.Time  { return p.start() }
func (p *point) Length() time.Duration { return p.length() }
func (p *point) Blocks() types.BlockIterator {
	return p.blocks()
}

// acquisitionTime reads the acquisition length, nested key first.
func acquisitionTime(m meta.Meta) time.Duration {
	return m.Seconds(0, constants.KeyExternalAcquisitionTime, constants.KeyAcquisitionTime)
}

func fixed[T any](v T) func() T {
	return func() T { return v }
}
