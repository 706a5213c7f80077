package types

import (
	"time"

	"github.com/xtxerr/numass/internal/meta"
)

type stubPoint struct {
	blocks []Block
}

func (s *stubPoint) Name() string          { return "p0" }
func (s *stubPoint) Format() string        { return "stub" }
func (s *stubPoint) Meta() meta.Meta       { return meta.Empty() }
func (s *stubPoint) Index() int            { return -1 }
func (s *stubPoint) Voltage() float64      { return 0 }
func (s *stubPoint) StartTime() time.Time  { return time.Time{} }
func (s *stubPoint) Length() time.Duration { return 0 }
func (s *stubPoint) Blocks() BlockIterator { return SliceBlocks(s.blocks) }
