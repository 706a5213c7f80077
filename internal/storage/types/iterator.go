package types

import (
	"errors"
	"iter"
)

// EventIterator is a forward-only, non-restartable event stream.
//
//	it := block.Events()
//	defer it.Close()
//	for it.Next() {
//	    e := it.Event()
//	}
//	if err := it.Err(); err != nil { ... }
type EventIterator interface {
	// Next advances to the next event. It returns false at the end of the
	// stream or on error.
	Next() bool

	// Event returns the current event.
	Event() Event

	// Err returns the error that stopped iteration, if any.
	Err() error

	// Close releases the byte source. It is safe to call more than once.
	Close() error
}

// FrameIterator is a forward-only waveform frame stream.
type FrameIterator interface {
	Next() bool
	Frame() Frame
	Err() error
	Close() error
}

// BlockIterator is a forward-only block stream.
type BlockIterator interface {
	Next() bool
	Block() Block
	Err() error
	Close() error
}

// =============================================================================
// Slice-backed iterators
// =============================================================================

type sliceIter[T any] struct {
	items []T
	pos   int
	cur   T
	err   error
}

func (s *sliceIter[T]) Next() bool {
	if s.pos >= len(s.items) {
		return false
	}
	s.cur = s.items[s.pos]
	s.pos++
	return true
}

func (s *sliceIter[T]) Err() error   { return s.err }
func (s *sliceIter[T]) Close() error { s.pos = len(s.items); return nil }

type eventSlice struct{ sliceIter[Event] }

func (s *eventSlice) Event() Event { return s.cur }

type frameSlice struct{ sliceIter[Frame] }

func (s *frameSlice) Frame() Frame { return s.cur }

type blockSlice struct{ sliceIter[Block] }

func (s *blockSlice) Block() Block { return s.cur }

// SliceEvents iterates over events.
func SliceEvents(events []Event) EventIterator {
	return &eventSlice{sliceIter[Event]{items: events}}
}

// SliceFrames iterates over frames.
func SliceFrames(frames []Frame) FrameIterator {
	return &frameSlice{sliceIter[Frame]{items: frames}}
}

// SliceBlocks iterates over blocks.
func SliceBlocks(blocks []Block) BlockIterator {
	return &blockSlice{sliceIter[Block]{items: blocks}}
}

// EmptyEvents returns an exhausted event iterator.
func EmptyEvents() EventIterator { return SliceEvents(nil) }

// EmptyFrames returns an exhausted frame iterator.
func EmptyFrames() FrameIterator { return SliceFrames(nil) }

// FailedEvents returns an iterator that yields nothing and reports err.
func FailedEvents(err error) EventIterator {
	return &eventSlice{sliceIter[Event]{err: err}}
}

// FailedBlocks returns an iterator that yields nothing and reports err.
func FailedBlocks(err error) BlockIterator {
	return &blockSlice{sliceIter[Block]{err: err}}
}

// =============================================================================
// Point-wide event stream
// =============================================================================

// PointEvents concatenates the events of all blocks of p in block order.
// Only one block source is open at a time.
func PointEvents(p Point) EventIterator {
	return &chainedEvents{blocks: p.Blocks()}
}

type chainedEvents struct {
	blocks  BlockIterator
	current EventIterator
	cur     Event
	err     error
	closed  bool
}

func (c *chainedEvents) Next() bool {
	if c.closed || c.err != nil {
		return false
	}
	for {
		if c.current != nil {
			if c.current.Next() {
				c.cur = c.current.Event()
				return true
			}
			err := c.current.Err()
			closeErr := c.current.Close()
			c.current = nil
			if err == nil {
				err = closeErr
			}
			if err != nil {
				c.err = err
				return false
			}
		}
		if !c.blocks.Next() {
			c.err = c.blocks.Err()
			return false
		}
		c.current = c.blocks.Block().Events()
	}
}

func (c *chainedEvents) Event() Event { return c.cur }

func (c *chainedEvents) Err() error { return c.err }

func (c *chainedEvents) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	if c.current != nil {
		errs = append(errs, c.current.Close())
		c.current = nil
	}
	errs = append(errs, c.blocks.Close())
	return errors.Join(errs...)
}

// =============================================================================
// Helpers
// =============================================================================

// Events adapts it to a range-over-func sequence. The iterator is closed
// when the loop ends, including on break. A terminal error is yielded once
// with a zero Event.
func Events(it EventIterator) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		defer it.Close()
		for it.Next() {
			if !yield(it.Event(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(Event{}, err)
		}
	}
}

// Blocks adapts it to a range-over-func sequence, closing it afterwards.
func Blocks(it BlockIterator) iter.Seq2[Block, error] {
	return func(yield func(Block, error) bool) {
		defer it.Close()
		for it.Next() {
			if !yield(it.Block(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// CollectEvents drains and closes it.
func CollectEvents(it EventIterator) ([]Event, error) {
	defer it.Close()
	var out []Event
	for it.Next() {
		out = append(out, it.Event())
	}
	return out, it.Err()
}

// CountEvents drains and closes it, returning the number of events seen.
func CountEvents(it EventIterator) (int, error) {
	defer it.Close()
	n := 0
	for it.Next() {
		n++
	}
	return n, it.Err()
}

// CollectBlocks drains and closes it.
func CollectBlocks(it BlockIterator) ([]Block, error) {
	defer it.Close()
	var out []Block
	for it.Next() {
		out = append(out, it.Block())
	}
	return out, it.Err()
}

// CollectFrames drains and closes it.
func CollectFrames(it FrameIterator) ([]Frame, error) {
	defer it.Close()
	var out []Frame
	for it.Next() {
		out = append(out, it.Frame())
	}
	return out, it.Err()
}
