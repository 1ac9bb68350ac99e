package focus

import (
	"fmt"
	"math"

	"github.com/banshee-data/trace.report/internal/events"
	"github.com/banshee-data/trace.report/internal/signal"
)

// DefaultInitialDuration is the length in seconds of the brush window shown
// when an event is selected.
const DefaultInitialDuration = 5.0

// Linear maps the domain [D0, D1] onto the range [R0, R1].
type Linear struct {
	D0, D1 float64
	R0, R1 float64
}

// Scale maps v from the domain to the range.
func (s Linear) Scale(v float64) float64 {
	if s.D1 == s.D0 {
		return s.R0
	}
	return s.R0 + (v-s.D0)/(s.D1-s.D0)*(s.R1-s.R0)
}

// Invert maps v from the range back to the domain.
func (s Linear) Invert(v float64) float64 {
	if s.R1 == s.R0 {
		return s.D0
	}
	return s.D0 + (v-s.R0)/(s.R1-s.R0)*(s.D1-s.D0)
}

// Extent is the brush handle rectangle in pixels.
type Extent struct {
	X0 float64 `json:"x0"`
	X1 float64 `json:"x1"`
	Y0 float64 `json:"y0"`
	Y1 float64 `json:"y1"`
}

// Brush tracks the active event and its brushed interval in seconds.
type Brush struct {
	events   []events.Event
	geometry Geometry
	initial  float64

	active int
	start  float64
	end    float64
}

// NewBrush creates a brush over evs and selects the event at index. A
// non-positive initial duration falls back to DefaultInitialDuration.
func NewBrush(evs []events.Event, g Geometry, initial float64, index int) (*Brush, error) {
	if len(evs) == 0 {
		return nil, fmt.Errorf("%w: no events", ErrEmptyWindow)
	}
	if initial <= 0 {
		initial = DefaultInitialDuration
	}
	b := &Brush{events: evs, geometry: g, initial: initial}
	if index < 0 {
		index = 0
	}
	if _, err := b.Select(index); err != nil {
		return nil, err
	}
	return b, nil
}

// Active returns the selected event index.
func (b *Brush) Active() int { return b.active }

// Event returns the selected event.
func (b *Brush) Event() events.Event { return b.events[b.active] }

// Bounds returns the brushed interval in seconds.
func (b *Brush) Bounds() (float64, float64) { return b.start, b.end }

// Scale maps the selected event's seconds onto brush pixels.
func (b *Brush) Scale() Linear {
	return Linear{D0: 0, D1: b.Event().Duration(), R0: 0, R1: b.geometry.Width - 1}
}

// AxisScale maps the brushed interval onto focus chart pixels.
func (b *Brush) AxisScale() Linear {
	return Linear{D0: b.start, D1: b.end, R0: 0, R1: b.geometry.Width - 1}
}

// Select makes event i active, resets the window to the initial duration and
// returns the new brush handle extent.
func (b *Brush) Select(i int) (Extent, error) {
	if i < 0 || i >= len(b.events) {
		return Extent{}, fmt.Errorf("event index %d out of range [0,%d)", i, len(b.events))
	}
	b.active = i
	b.start = 0
	b.end = math.Min(b.initial, b.events[i].Duration())
	return b.Extent(), nil
}

// Extent returns the brush handle rectangle for the current bounds.
func (b *Brush) Extent() Extent {
	s := b.Scale()
	return Extent{X0: s.Scale(b.start), X1: s.Scale(b.end), Y0: 0, Y1: b.geometry.BrushHeight}
}

// Move sets the brushed interval in seconds, clamped to the active event.
func (b *Brush) Move(start, end float64) (float64, float64) {
	if end < start {
		start, end = end, start
	}
	b.start, b.end = Clamp(start, end, b.Event().Duration())
	return b.start, b.end
}

// MovePixels sets the interval from a dragged handle position.
func (b *Brush) MovePixels(x0, x1 float64) (float64, float64) {
	s := b.Scale()
	return b.Move(s.Invert(x0), s.Invert(x1))
}

// Window returns the focus chart lines for the current bounds.
func (b *Brush) Window() ([]signal.Line, error) {
	return Window(b.Event(), b.start, b.end, b.geometry)
}
