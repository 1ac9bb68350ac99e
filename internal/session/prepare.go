// Package session turns an uploaded recording into display-ready data and
// keeps the loaded recordings alive until they are closed.
package session

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/trace.report/internal/events"
	"github.com/banshee-data/trace.report/internal/focus"
	"github.com/banshee-data/trace.report/internal/monitoring"
	"github.com/banshee-data/trace.report/internal/playback"
	"github.com/banshee-data/trace.report/internal/signal"
)

// Prepared is a recording after normalization, point mapping and event
// grouping.
type Prepared struct {
	// SampleSegments are indexed [segment][lead]; x is the sample index and y
	// the sign-inverted normalized value.
	SampleSegments []signal.Segment
	Events         []events.Event
	Predictions    signal.Predictions
	Stats          signal.Stats
	Timing         signal.Timing
}

// LoadAndPrepare parses raw JSON and prepares it.
func LoadAndPrepare(ctx context.Context, raw []byte, timing signal.Timing) (*Prepared, error) {
	rec, err := signal.ParseRecording(raw)
	if err != nil {
		return nil, err
	}
	return Prepare(ctx, rec, timing)
}

// Prepare validates rec, normalizes every lead over the whole recording and
// groups the predictions into events. Malformed input is rejected before any
// normalization work starts.
func Prepare(ctx context.Context, rec *signal.Recording, timing signal.Timing) (*Prepared, error) {
	if err := rec.Validate(timing); err != nil {
		return nil, err
	}

	normalized, stats, err := signal.Normalize(ctx, rec.Segments)
	if err != nil {
		return nil, fmt.Errorf("normalize recording: %w", err)
	}
	segments := signal.ToSegments(normalized, signal.SignInvert)

	evs, err := events.Group(segments, rec.Predictions, timing.SegmentDuration)
	if err != nil {
		return nil, fmt.Errorf("group events: %w", err)
	}

	monitoring.Logf("[session] prepared %d segments x %d leads, %d events (%s)",
		len(segments), rec.LeadCount(), len(evs), rec.Predictions.Mode)
	return &Prepared{
		SampleSegments: segments,
		Events:         evs,
		Predictions:    rec.Predictions,
		Stats:          stats,
		Timing:         timing,
	}, nil
}

// SegmentCount returns the number of segments.
func (p *Prepared) SegmentCount() int { return len(p.SampleSegments) }

// LeadCount returns the number of leads.
func (p *Prepared) LeadCount() int {
	if len(p.SampleSegments) == 0 {
		return 0
	}
	return p.SampleSegments[0].LeadCount()
}

// Duration returns the recording length in seconds.
func (p *Prepared) Duration() float64 {
	return float64(p.SegmentCount()) * p.Timing.SegmentDuration
}

// IsPositive reports whether the model flagged segment i.
func (p *Prepared) IsPositive(i int) bool { return p.Predictions.IsPositive(i) }

// Progress returns playback progress when segment i is playing.
func (p *Prepared) Progress(i int) float64 { return playback.Progress(i, p.SegmentCount()) }

// ProgressPercent floors Progress to a whole percentage.
func (p *Prepared) ProgressPercent(i int) int { return int(math.Floor(p.Progress(i) * 100)) }

// ClassStatus is one class's probability for a segment.
type ClassStatus struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
	Threshold   float64 `json:"threshold"`
	Active      bool    `json:"active"`
	Normal      bool    `json:"normal,omitempty"`
}

// Diagnosis returns per-class probabilities for segment i in threshold mode,
// or nil for index-list predictions.
func (p *Prepared) Diagnosis(i int) []ClassStatus {
	preds := p.Predictions
	if preds.Mode != signal.ThresholdMatrix || i < 0 || i >= len(preds.Probabilities) {
		return nil
	}
	row := preds.Probabilities[i]
	out := make([]ClassStatus, len(row))
	for c, prob := range row {
		out[c] = ClassStatus{
			Label:       preds.Label(c),
			Probability: prob,
			Threshold:   preds.Thresholds[c],
			Active:      prob >= preds.Thresholds[c],
			Normal:      c == preds.NormalClass,
		}
	}
	return out
}

// SegmentView is the geometry of one segment in the two-lane live display:
// the segment fills the left half while it is "previous" and the right half
// while it is "current".
type SegmentView struct {
	Index       int             `json:"index"`
	DomainStart float64         `json:"domain_start"`
	DomainEnd   float64         `json:"domain_end"`
	Positive    bool            `json:"positive"`
	Progress    float64         `json:"progress"`
	Lines       []signal.Line   `json:"lines"`
	Diagnosis   []ClassStatus   `json:"diagnosis,omitempty"`
	Stats       *SegmentSummary `json:"stats,omitempty"`
}

// SegmentSummary reports the sample count per lead.
type SegmentSummary struct {
	Samples int `json:"samples"`
	Leads   int `json:"leads"`
}

// LiveAmplitudeSpan is the number of normalized units in one lead lane of the
// live display.
const LiveAmplitudeSpan = 15.0

// DisplaySegment maps segment i into the live display: x spans half the
// chart width, each lead gets its own lane.
func (p *Prepared) DisplaySegment(i int, g focus.Geometry) (SegmentView, error) {
	if i < 0 || i >= p.SegmentCount() {
		return SegmentView{}, fmt.Errorf("segment %d out of range [0,%d)", i, p.SegmentCount())
	}
	seg := p.SampleSegments[i]
	leads := seg.LeadCount()
	samples := seg.SampleCount()
	lane := g.Height / float64(leads)
	xScale := g.Width / float64(samples) / 2
	stacked := signal.RescaleStacked([]signal.Segment{seg}, xScale, lane/LiveAmplitudeSpan, g.Height)[0]

	start, end := playback.TimeDomain(i, p.Timing.SegmentDuration)
	return SegmentView{
		Index:       i,
		DomainStart: start,
		DomainEnd:   end,
		Positive:    p.IsPositive(i),
		Progress:    p.Progress(i),
		Lines:       stacked,
		Diagnosis:   p.Diagnosis(i),
		Stats:       &SegmentSummary{Samples: samples, Leads: leads},
	}, nil
}

// EventIndexFor returns the index of the event containing segment, 0 for a
// negative segment, or -1.
func (p *Prepared) EventIndexFor(segment int) int {
	return focus.InitialIndex(p.Events, segment, p.Timing.SegmentDuration)
}

// Findings is the end-of-playback result: whether anything was flagged and
// the distinct diagnoses across all events.
type Findings struct {
	Positive   bool `json:"positive"`
	EventCount int  `json:"event_count"`
	// Diagnoses is the union of event diagnoses in first-seen order. It is
	// empty for index-list predictions.
	Diagnoses []string `json:"diagnoses"`
}

// CollectFindings builds Findings from the diagnosis list of each event.
func CollectFindings(diagnoses [][]string) Findings {
	seen := make(map[string]bool)
	found := []string{}
	for _, diag := range diagnoses {
		for _, d := range diag {
			if !seen[d] {
				seen[d] = true
				found = append(found, d)
			}
		}
	}
	return Findings{
		Positive:   len(diagnoses) > 0,
		EventCount: len(diagnoses),
		Diagnoses:  found,
	}
}

// Findings summarizes the recording's events.
func (p *Prepared) Findings() Findings {
	diag := make([][]string, len(p.Events))
	for i, ev := range p.Events {
		diag[i] = ev.Diagnosis
	}
	return CollectFindings(diag)
}
