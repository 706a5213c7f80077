package types

import (
	"errors"
	"testing"
	"time"
)

type countingEvents struct {
	EventIterator
	closed *int
}

func (c countingEvents) Close() error {
	*c.closed++
	return c.EventIterator.Close()
}

func TestTickTime(t *testing.T) {
	if got := TickTime(2, 50); got != 100*time.Nanosecond {
		t.Errorf("TickTime(2, 50) = %v, want 100ns", got)
	}
	if got := TickTime(3, 12.5); got != 37*time.Nanosecond {
		t.Errorf("TickTime(3, 12.5) = %v, want 37ns", got)
	}
	// Unsigned 32-bit tick maximum must not overflow.
	if got := TickTime(0xFFFFFFFF, 50); got <= 0 {
		t.Errorf("TickTime(max u32) = %v, want positive", got)
	}
}

func TestPointEventsConcatenatesBlocks(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	closed := 0

	mk := func(amps ...uint16) *FuncBlock {
		return &FuncBlock{
			Start: t0,
			OpenEvent: func() EventIterator {
				events := make([]Event, len(amps))
				for i, a := range amps {
					events[i] = Event{Amplitude: a, Time: t0}
				}
				return countingEvents{SliceEvents(events), &closed}
			},
		}
	}

	p := &stubPoint{blocks: []Block{mk(1, 2), mk(), mk(3)}}
	events, err := CollectEvents(PointEvents(p))
	if err != nil {
		t.Fatalf("CollectEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	for i, want := range []uint16{1, 2, 3} {
		if events[i].Amplitude != want {
			t.Errorf("event %d amplitude = %d, want %d", i, events[i].Amplitude, want)
		}
	}
	if closed != 3 {
		t.Errorf("block iterators closed = %d, want 3", closed)
	}
}

func TestEventsSeqClosesOnBreak(t *testing.T) {
	closed := 0
	it := countingEvents{SliceEvents([]Event{{Amplitude: 1}, {Amplitude: 2}, {Amplitude: 3}}), &closed}

	seen := 0
	for e, err := range Events(it) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen++
		if e.Amplitude == 2 {
			break
		}
	}
	if seen != 2 {
		t.Errorf("seen = %d, want 2", seen)
	}
	if closed != 1 {
		t.Errorf("closed = %d, want 1", closed)
	}
}

func TestEventsSeqYieldsError(t *testing.T) {
	boom := errors.New("boom")
	var got error
	for _, err := range Events(FailedEvents(boom)) {
		got = err
	}
	if got != boom {
		t.Errorf("error = %v, want %v", got, boom)
	}
}

func TestCountEvents(t *testing.T) {
	n, err := CountEvents(SliceEvents(make([]Event, 5)))
	if err != nil || n != 5 {
		t.Errorf("CountEvents = %d, %v; want 5", n, err)
	}
}
