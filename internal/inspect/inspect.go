// Package inspect summarizes decoded points for tooling.
//
// Summaries stream every event of a point once. Amplitude quantiles come
// from a DDSketch, so memory stays bounded for points with millions of
// events.
package inspect

import (
	"fmt"
	"math"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/numass/internal/storage/types"
)

// DefaultAccuracy is the relative accuracy of amplitude quantiles.
const DefaultAccuracy = 0.01

// Summary describes one point or a merged set of points.
type Summary struct {
	Name    string
	Index   int
	Voltage float64
	Format  string

	Blocks int
	Events int64

	// Span of the event timestamps.
	FirstEvent time.Time
	LastEvent  time.Time

	// Length is the declared acquisition length.
	Length time.Duration

	MinAmplitude  uint16
	MaxAmplitude  uint16
	MeanAmplitude float64
	P50, P90      float64
	P95, P99      float64
}

// Rate returns events per second over the declared length.
func (s Summary) Rate() float64 {
	if s.Length <= 0 {
		return 0
	}
	return float64(s.Events) / s.Length.Seconds()
}

// String implements fmt.Stringer.
func (s Summary) String() string {
	return fmt.Sprintf("%s index=%d hv=%.1f events=%d p50=%.0f p99=%.0f", s.Name, s.Index, s.Voltage, s.Events, s.P50, s.P99)
}

// Amplitudes accumulates amplitude statistics.
type Amplitudes struct {
	count   int64
	sum     float64
	min     float64
	max     float64
	firstTs time.Time
	lastTs  time.Time

	sketch *ddsketch.DDSketch
}

// NewAmplitudes creates an accumulator with the given quantile accuracy.
func NewAmplitudes(accuracy float64) (*Amplitudes, error) {
	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return nil, fmt.Errorf("create sketch: %w", err)
	}
	return &Amplitudes{
		min:    math.MaxFloat64,
		max:    -math.MaxFloat64,
		sketch: sketch,
	}, nil
}

// Add records one event.
func (a *Amplitudes) Add(e types.Event) {
	v := float64(e.Amplitude)
	a.count++
	a.sum += v
	if v < a.min {
		a.min = v
	}
	if v > a.max {
		a.max = v
	}
	if a.firstTs.IsZero() || e.Time.Before(a.firstTs) {
		a.firstTs = e.Time
	}
	if e.Time.After(a.lastTs) {
		a.lastTs = e.Time
	}
	a.sketch.Add(v)
}

// Count returns the number of events added.
func (a *Amplitudes) Count() int64 { return a.count }

// Merge combines other into a.
func (a *Amplitudes) Merge(other *Amplitudes) error {
	if other == nil || other.count == 0 {
		return nil
	}
	a.count += other.count
	a.sum += other.sum
	a.min = math.Min(a.min, other.min)
	a.max = math.Max(a.max, other.max)
	if a.firstTs.IsZero() || other.firstTs.Before(a.firstTs) {
		a.firstTs = other.firstTs
	}
	if other.lastTs.After(a.lastTs) {
		a.lastTs = other.lastTs
	}
	return a.sketch.MergeWith(other.sketch)
}

// fill copies the statistics into s.
func (a *Amplitudes) fill(s *Summary) {
	s.Events = a.count
	if a.count == 0 {
		return
	}
	s.MinAmplitude = uint16(a.min)
	s.MaxAmplitude = uint16(a.max)
	s.MeanAmplitude = a.sum / float64(a.count)
	s.FirstEvent = a.firstTs
	s.LastEvent = a.lastTs

	s.P50, _ = a.sketch.GetValueAtQuantile(0.50)
	s.P90, _ = a.sketch.GetValueAtQuantile(0.90)
	s.P95, _ = a.sketch.GetValueAtQuantile(0.95)
	s.P99, _ = a.sketch.GetValueAtQuantile(0.99)
}

// Summarize streams the events of p.
func Summarize(p types.Point, accuracy float64) (Summary, error) {
	s, _, err := summarize(p, accuracy)
	return s, err
}

func summarize(p types.Point, accuracy float64) (Summary, *Amplitudes, error) {
	s := Summary{
		Name:    p.Name(),
		Index:   p.Index(),
		Voltage: p.Voltage(),
		Format:  p.Format(),
		Length:  p.Length(),
	}
	amps, err := NewAmplitudes(accuracy)
	if err != nil {
		return s, nil, err
	}

	for b, err := range types.Blocks(p.Blocks()) {
		if err != nil {
			return s, nil, fmt.Errorf("%s: %w", p.Name(), err)
		}
		s.Blocks++
		for e, err := range types.Events(b.Events()) {
			if err != nil {
				return s, nil, fmt.Errorf("%s: block %d: %w", p.Name(), s.Blocks-1, err)
			}
			amps.Add(e)
		}
	}

	amps.fill(&s)
	return s, amps, nil
}

// SummarizeSet summarizes each point and returns the merged total, named
// name, after the per-point summaries.
func SummarizeSet(name string, points []types.Point, accuracy float64) ([]Summary, Summary, error) {
	total := Summary{Name: name, Index: -1}
	all, err := NewAmplitudes(accuracy)
	if err != nil {
		return nil, total, err
	}

	out := make([]Summary, 0, len(points))
	for _, p := range points {
		s, amps, err := summarize(p, accuracy)
		if err != nil {
			return out, total, err
		}
		if err := all.Merge(amps); err != nil {
			return out, total, fmt.Errorf("merge %s: %w", p.Name(), err)
		}
		total.Blocks += s.Blocks
		total.Length += s.Length
		out = append(out, s)
	}
	all.fill(&total)
	return out, total, nil
}
