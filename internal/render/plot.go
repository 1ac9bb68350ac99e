// Package render draws grouped events as static PNG plots and interactive
// HTML charts.
package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/trace.report/internal/events"
	"github.com/banshee-data/trace.report/internal/signal"
	"github.com/banshee-data/trace.report/internal/units"
)

// ErrNoData is returned for an event without lead traces.
var ErrNoData = errors.New("event has no data")

// LaneSpacing is the vertical distance between stacked leads in normalized
// units.
const LaneSpacing = 8.0

// Options controls both renderers.
type Options struct {
	SamplingRate int
	LeadNames    []string
	// Title defaults to the event's time range.
	Title string
	// Width and Height size the PNG.
	Width, Height vg.Length
}

// DefaultOptions returns 64 Hz options sized for a 14x6 inch plot.
func DefaultOptions() Options {
	return Options{
		SamplingRate: signal.DefaultSamplingRate,
		Width:        14 * vg.Inch,
		Height:       6 * vg.Inch,
	}
}

func (o Options) leadName(i int) string {
	if i < len(o.LeadNames) && o.LeadNames[i] != "" {
		return o.LeadNames[i]
	}
	return fmt.Sprintf("lead_%d", i)
}

func (o Options) title(ev events.Event) string {
	if o.Title != "" {
		return o.Title
	}
	t := units.FormatRange(ev.StartSeconds, ev.EndSeconds)
	if len(ev.Diagnosis) > 0 {
		t += " " + strings.Join(ev.Diagnosis, ", ")
	}
	return t
}

// leadSeries converts one lead to (seconds, value) pairs. The stored y is
// sign-inverted for screen coordinates, so it is flipped back here.
func leadSeries(line signal.Line, start float64, rate int, offset float64) plotter.XYs {
	pts := make(plotter.XYs, len(line))
	for i, p := range line {
		pts[i] = plotter.XY{X: start + p.X/float64(rate), Y: -p.Y + offset}
	}
	return pts
}

// laneOffset stacks lead 0 at the top.
func laneOffset(lead, leads int) float64 {
	return float64(leads-1-lead) * LaneSpacing
}

// EventPlot builds a plot with one stacked line per lead over the event's
// time span.
func EventPlot(ev events.Event, o Options) (*plot.Plot, error) {
	if len(ev.Data) == 0 {
		return nil, ErrNoData
	}
	if o.SamplingRate <= 0 {
		return nil, signal.Malformedf("sampling rate must be positive, got %d", o.SamplingRate)
	}

	p := plot.New()
	p.Title.Text = o.title(ev)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Lead"
	p.Add(plotter.NewGrid())

	leads := len(ev.Data)
	ticks := make([]plot.Tick, leads)
	for l, lead := range ev.Data {
		offset := laneOffset(l, leads)
		line, err := plotter.NewLine(leadSeries(lead, ev.StartSeconds, o.SamplingRate, offset))
		if err != nil {
			return nil, fmt.Errorf("lead %d: %w", l, err)
		}
		line.Color = plotutil.Color(l)
		line.Width = vg.Points(0.75)
		p.Add(line)
		ticks[l] = plot.Tick{Value: offset, Label: o.leadName(l)}
	}
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)
	p.Y.Min = -LaneSpacing
	p.Y.Max = float64(leads) * LaneSpacing
	p.X.Min = ev.StartSeconds
	p.X.Max = ev.EndSeconds
	return p, nil
}

// WriteEventPNG renders ev as a PNG into w.
func WriteEventPNG(w io.Writer, ev events.Event, o Options) error {
	p, err := EventPlot(ev, o)
	if err != nil {
		return err
	}
	width, height := o.Width, o.Height
	if width <= 0 || height <= 0 {
		d := DefaultOptions()
		width, height = d.Width, d.Height
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
