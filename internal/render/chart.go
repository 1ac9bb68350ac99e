package render

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/trace.report/internal/events"
	"github.com/banshee-data/trace.report/internal/signal"
)

// BrushPercent returns the dataZoom range, in percent of the event, that
// covers the first initial seconds.
func BrushPercent(ev events.Event, initial float64) (float32, float32) {
	d := ev.Duration()
	if d <= 0 || initial <= 0 {
		return 0, 100
	}
	return 0, float32(100 * math.Min(initial, d) / d)
}

// EventChart builds an ECharts line chart of ev with a slider and an inside
// zoom acting as the focus brush over the first initial seconds.
func EventChart(ev events.Event, o Options, initial float64) (*charts.Line, error) {
	if len(ev.Data) == 0 {
		return nil, ErrNoData
	}
	if o.SamplingRate <= 0 {
		return nil, signal.Malformedf("sampling rate must be positive, got %d", o.SamplingRate)
	}

	start, end := BrushPercent(ev, initial)
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Event " + o.title(ev), Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: o.title(ev), Subtitle: fmt.Sprintf("%d leads, %.1fs", len(ev.Data), ev.Duration())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Time (s)", NameLocation: "middle", NameGap: 25, Min: ev.StartSeconds, Max: ev.EndSeconds}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Show: opts.Bool(false)}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "slider", Start: start, End: end, XAxisIndex: []int{0}},
			opts.DataZoom{Type: "inside", Start: start, End: end, XAxisIndex: []int{0}},
		),
	)

	leads := len(ev.Data)
	for l, lead := range ev.Data {
		pts := leadSeries(lead, ev.StartSeconds, o.SamplingRate, laneOffset(l, leads))
		data := make([]opts.LineData, len(pts))
		for i, p := range pts {
			data[i] = opts.LineData{Value: []interface{}{p.X, p.Y}}
		}
		line.AddSeries(o.leadName(l), data,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Width: 1}),
		)
	}
	return line, nil
}

// WriteEventChart renders ev as a standalone HTML page into w.
func WriteEventChart(w io.Writer, ev events.Event, o Options, initial float64) error {
	chart, err := EventChart(ev, o, initial)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}
