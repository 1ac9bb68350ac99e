package render

import (
	"bytes"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/trace.report/internal/events"
	"github.com/banshee-data/trace.report/internal/signal"
)

func sineEvent(start, duration float64, leads, rate int) events.Event {
	n := int(duration * float64(rate))
	data := make([]signal.Line, leads)
	for l := range data {
		line := make(signal.Line, n)
		for i := range line {
			line[i] = signal.Point{X: float64(i), Y: -math.Sin(float64(i+l) / 5)}
		}
		data[l] = line
	}
	return events.Event{
		Data:         data,
		StartSeconds: start,
		EndSeconds:   start + duration,
		FirstSegment: int(start / 2),
		LastSegment:  int((start+duration)/2) - 1,
	}
}

func TestEventPlot(t *testing.T) {
	ev := sineEvent(12, 18, 3, 8)
	o := Options{SamplingRate: 8, LeadNames: []string{"FP1-F7", "FP2-F8"}}

	p, err := EventPlot(ev, o)
	require.NoError(t, err)
	assert.Equal(t, "00:12 - 00:30", p.Title.Text)
	assert.Equal(t, 12.0, p.X.Min)
	assert.Equal(t, 30.0, p.X.Max)

	ticks := p.Y.Tick.Marker.Ticks(p.Y.Min, p.Y.Max)
	require.Len(t, ticks, 3)
	assert.Equal(t, "FP1-F7", ticks[0].Label)
	assert.Equal(t, 2*LaneSpacing, ticks[0].Value)
	assert.Equal(t, "lead_2", ticks[2].Label)
}

func TestLeadSeriesRestoresPolarity(t *testing.T) {
	line := signal.Line{{X: 0, Y: -1}, {X: 4, Y: 2}}
	pts := leadSeries(line, 10, 4, 8)
	assert.Equal(t, 10.0, pts[0].X)
	assert.Equal(t, 9.0, pts[0].Y)
	assert.Equal(t, 11.0, pts[1].X)
	assert.Equal(t, 6.0, pts[1].Y)
}

func TestWriteEventPNG(t *testing.T) {
	ev := sineEvent(0, 4, 2, 16)
	ev.Diagnosis = []string{"seizure"}
	o := Options{SamplingRate: 16, Width: 4 * vg.Inch, Height: 2 * vg.Inch}

	var buf bytes.Buffer
	require.NoError(t, WriteEventPNG(&buf, ev, o))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), img.Bounds().Dy())
}

func TestRenderErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteEventPNG(&buf, events.Event{}, DefaultOptions()), ErrNoData)
	assert.ErrorIs(t, WriteEventChart(&buf, events.Event{}, DefaultOptions(), 5), ErrNoData)

	_, err := EventPlot(sineEvent(0, 2, 1, 4), Options{})
	assert.ErrorIs(t, err, signal.ErrMalformedInput)
	_, err = EventChart(sineEvent(0, 2, 1, 4), Options{}, 5)
	assert.ErrorIs(t, err, signal.ErrMalformedInput)
}

func TestBrushPercent(t *testing.T) {
	tests := []struct {
		name       string
		duration   float64
		initial    float64
		start, end float32
	}{
		{"long event", 20, 5, 0, 25},
		{"short event", 3, 5, 0, 100},
		{"no initial window", 10, 0, 0, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, e := BrushPercent(events.Event{EndSeconds: tt.duration}, tt.initial)
			assert.Equal(t, tt.start, s)
			assert.Equal(t, tt.end, e)
		})
	}
}

func TestWriteEventChart(t *testing.T) {
	ev := sineEvent(6, 12, 2, 8)
	o := Options{SamplingRate: 8, LeadNames: []string{"P7-O1", "P8-O2"}}

	var buf bytes.Buffer
	require.NoError(t, WriteEventChart(&buf, ev, o, 5))
	html := buf.String()

	assert.True(t, strings.Contains(html, "<html"), "expected an HTML page")
	assert.Contains(t, html, "P7-O1")
	assert.Contains(t, html, "dataZoom")
	assert.Contains(t, html, "00:06 - 00:18")
}
