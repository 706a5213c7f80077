package types

import (
	"fmt"
	"time"
)

// Event is a single detector reading.
type Event struct {
	// Amplitude is the ADC channel, an unsigned 16-bit value.
	Amplitude uint16

	// Offset is the time since the start of the enclosing block.
	Offset time.Duration

	// Time is the absolute timestamp.
	Time time.Time
}

// String returns a compact representation for logs and tests.
func (e Event) String() string {
	return fmt.Sprintf("(%d, %s)", e.Amplitude, e.Time.Format(time.RFC3339Nano))
}

// Frame is a raw waveform captured by the digitizer.
type Frame struct {
	// Time is the absolute start of the frame.
	Time time.Time

	// Offset is the time since the start of the enclosing block.
	Offset time.Duration

	// Length is b_size / sample_freq, zero when the point does not declare them.
	Length time.Duration

	// Data holds the raw samples.
	Data []byte
}

// TickTime converts a raw tick count to an offset using a tick length in
// nanoseconds. The multiplication is done in float64.
func TickTime(ticks uint64, timeCoeff float64) time.Duration {
	return time.Duration(float64(ticks) * timeCoeff)
}
