package types

import (
	"time"

	"github.com/xtxerr/numass/internal/meta"
)

// Block is a time-bounded part of a point.
type Block interface {
	// StartTime is the absolute start of the block.
	StartTime() time.Time

	// Length is the acquisition length of the block.
	Length() time.Duration

	// Channel is the digitizer channel id, or -1 for implicit blocks.
	Channel() int

	// Events opens a new event iterator over the block.
	Events() EventIterator

	// Frames opens a new frame iterator. Only protobuf blocks carry frames.
	Frames() FrameIterator
}

// Point is one acquisition point.
type Point interface {
	// Name is the fragment the point was decoded from.
	Name() string

	// Format is the codec data type, e.g. "numass.point.classic".
	Format() string

	// Meta is the point metadata.
	Meta() meta.Meta

	// Index is external_meta.point_index, -1 when absent.
	Index() int

	// Voltage is external_meta.HV1_value, 0 when absent.
	Voltage() float64

	// StartTime is the absolute start of the point.
	StartTime() time.Time

	// Length is the total acquisition length.
	Length() time.Duration

	// Blocks opens a new iterator over the blocks in ascending start order.
	Blocks() BlockIterator
}

// Set is one experimental run.
type Set interface {
	// Name is the run name inside its shelf.
	Name() string

	// Meta returns the run metadata.
	Meta() (meta.Meta, error)

	// Description returns the human-readable description, possibly empty.
	Description() string

	// Points returns the decodable points ordered by index.
	Points() ([]Point, error)
}

// FuncBlock is a Block backed by iterator constructors.
type FuncBlock struct {
	Start     time.Time
	Duration  time.Duration
	ChannelID int
	OpenEvent func() EventIterator
	OpenFrame func() FrameIterator
}

// StartTime implements Block.
func (b *FuncBlock) StartTime() time.Time { return b.Start }

// Length implements Block.
func (b *FuncBlock) Length() time.Duration { return b.Duration }

// Channel implements Block.
func (b *FuncBlock) Channel() int { return b.ChannelID }

// Events implements Block.
func (b *FuncBlock) Events() EventIterator {
	if b.OpenEvent == nil {
		return EmptyEvents()
	}
	return b.OpenEvent()
}

// Frames implements Block.
func (b *FuncBlock) Frames() FrameIterator {
	if b.OpenFrame == nil {
		return EmptyFrames()
	}
	return b.OpenFrame()
}
