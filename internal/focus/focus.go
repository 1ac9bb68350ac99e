// Package focus extracts brushed sub-ranges of an event's trace and maps them
// onto the focus chart, and tracks the brush as the active event changes.
package focus

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/trace.report/internal/events"
	"github.com/banshee-data/trace.report/internal/signal"
)

// DefaultAmplitudeSpan is the number of normalized units that fit in the full
// chart height when a single lead is shown.
const DefaultAmplitudeSpan = 17.0

// ErrEmptyWindow is returned when a brush interval selects no samples.
var ErrEmptyWindow = errors.New("empty brush window")

// Geometry describes the focus chart in pixels.
type Geometry struct {
	Width        float64
	Height       float64
	BrushHeight  float64
	SamplingRate int
	// AmplitudeSpan defaults to DefaultAmplitudeSpan when zero.
	AmplitudeSpan float64
}

// DefaultGeometry matches the default display configuration.
func DefaultGeometry() Geometry {
	return Geometry{
		Width:        1250,
		Height:       740,
		BrushHeight:  75,
		SamplingRate: signal.DefaultSamplingRate,
	}
}

// LaneScale returns the y multiplier that fits leads stacked lanes into the
// chart height.
func (g Geometry) LaneScale(leads int) float64 {
	span := g.AmplitudeSpan
	if span <= 0 {
		span = DefaultAmplitudeSpan
	}
	if leads <= 0 {
		leads = 1
	}
	return g.Height / span / float64(leads)
}

// Clamp bounds [start, end] to [0, duration].
func Clamp(start, end, duration float64) (float64, float64) {
	return math.Max(start, 0), math.Min(end, duration)
}

// Window slices the event's trace to [start, end) seconds, clamped to the
// event's own duration, and spreads the slice across the chart width. Each
// lead is scaled into its own lane.
func Window(ev events.Event, start, end float64, g Geometry) ([]signal.Line, error) {
	if len(ev.Data) == 0 {
		return nil, fmt.Errorf("%w: event has no data", ErrEmptyWindow)
	}
	if g.SamplingRate <= 0 {
		return nil, signal.Malformedf("sampling rate must be positive, got %d", g.SamplingRate)
	}
	start, end = Clamp(start, end, ev.Duration())

	rate := float64(g.SamplingRate)
	lo := int(start * rate)
	hi := int(end * rate)
	if n := len(ev.Data[0]); hi > n {
		hi = n
	}
	if hi <= lo {
		return nil, fmt.Errorf("%w: [%g, %g] in %s", ErrEmptyWindow, start, end, ev)
	}

	leads := len(ev.Data)
	xStep := g.Width / float64(hi-lo)
	yScale := g.LaneScale(leads)
	out := make([]signal.Line, leads)
	for l, lead := range ev.Data {
		offset := signal.LeadOffset(l, leads, g.Height)
		line := make(signal.Line, hi-lo)
		for i, p := range lead[lo:hi] {
			line[i] = signal.Point{X: float64(i) * xStep, Y: p.Y*yScale + offset}
		}
		out[l] = line
	}
	return out, nil
}

// InitialIndex returns the index of the event whose time span contains the
// start of segment, 0 when segment is negative, or -1 when no event does.
func InitialIndex(evs []events.Event, segment int, segmentDuration float64) int {
	if segment < 0 {
		return 0
	}
	t := float64(segment) * segmentDuration
	for i, e := range evs {
		if e.StartSeconds <= t && e.EndSeconds >= t {
			return i
		}
	}
	return -1
}
