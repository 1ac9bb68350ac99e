// Package events groups per-segment model predictions into contiguous
// clinical events, each carrying the concatenated trace of its segments.
package events

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/trace.report/internal/signal"
)

// Event is one maximal run of contiguous positively flagged segments.
type Event struct {
	// Data holds one concatenated line per lead.
	Data         []signal.Line `json:"data"`
	StartSeconds float64       `json:"start_seconds"`
	EndSeconds   float64       `json:"end_seconds"`
	// Diagnosis lists the class labels of the run in threshold mode.
	Diagnosis []string `json:"diagnosis,omitempty"`

	FirstSegment int `json:"first_segment"`
	LastSegment  int `json:"last_segment"`
}

// Duration returns the event length in seconds.
func (e Event) Duration() float64 { return e.EndSeconds - e.StartSeconds }

// SegmentCount returns the number of segments merged into the event.
func (e Event) SegmentCount() int { return e.LastSegment - e.FirstSegment + 1 }

// Contains reports whether the given segment is part of the event.
func (e Event) Contains(segment int) bool {
	return segment >= e.FirstSegment && segment <= e.LastSegment
}

// run is a pending group of consecutive segments.
type run struct {
	first, last int
	classes     []int
}

// Group merges positive segments into events. segments are the prepared
// per-segment lead lines and segmentDuration is in seconds. Events are
// returned ordered by start time and never overlap.
func Group(segments []signal.Segment, preds signal.Predictions, segmentDuration float64) ([]Event, error) {
	if segmentDuration <= 0 {
		return nil, signal.Malformedf("segment duration must be positive, got %v", segmentDuration)
	}

	var runs []run
	var err error
	switch preds.Mode {
	case signal.IndexList:
		runs, err = indexRuns(preds.SortedIndices(), len(segments))
	case signal.ThresholdMatrix:
		runs, err = thresholdRuns(preds, len(segments))
	default:
		err = signal.Malformedf("unknown prediction mode %s", preds.Mode)
	}
	if err != nil {
		return nil, err
	}

	recordingEnd := float64(len(segments)) * segmentDuration
	out := make([]Event, 0, len(runs))
	for _, r := range runs {
		ev := Event{
			Data:         concatRun(segments, r.first, r.last),
			StartSeconds: float64(r.first) * segmentDuration,
			EndSeconds:   math.Min(float64(r.last+1)*segmentDuration, recordingEnd),
			FirstSegment: r.first,
			LastSegment:  r.last,
		}
		if preds.Mode == signal.ThresholdMatrix {
			ev.Diagnosis = make([]string, len(r.classes))
			for i, c := range r.classes {
				ev.Diagnosis[i] = preds.Label(c)
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

// indexRuns splits sorted, unique indices wherever the next index is not
// current+1.
func indexRuns(indices []int, segmentCount int) ([]run, error) {
	var runs []run
	for _, idx := range indices {
		if idx < 0 || idx >= segmentCount {
			return nil, signal.Malformedf("prediction index %d out of range [0,%d)", idx, segmentCount)
		}
		if n := len(runs); n > 0 && runs[n-1].last+1 == idx {
			runs[n-1].last = idx
			continue
		}
		runs = append(runs, run{first: idx, last: idx})
	}
	return runs, nil
}

// thresholdRuns walks segments in order and merges consecutive segments that
// share an identical, non-empty active class set. The empty set is the normal
// state and closes any open run without starting one.
func thresholdRuns(preds signal.Predictions, segmentCount int) ([]run, error) {
	if len(preds.Probabilities) > segmentCount {
		return nil, signal.Malformedf("prediction matrix has %d rows for %d segments", len(preds.Probabilities), segmentCount)
	}

	var runs []run
	var open *run
	openKey := ""
	for s := range preds.Probabilities {
		if len(preds.Probabilities[s]) != len(preds.Thresholds) {
			return nil, signal.Malformedf("prediction row %d has %d classes, want %d", s, len(preds.Probabilities[s]), len(preds.Thresholds))
		}
		classes := preds.ActiveClasses(s)
		key := classKey(classes)

		if open != nil && key == openKey {
			open.last = s
			continue
		}
		if open != nil {
			runs = append(runs, *open)
			open = nil
		}
		if key != "" {
			open = &run{first: s, last: s, classes: classes}
			openKey = key
		}
	}
	if open != nil {
		runs = append(runs, *open)
	}
	return runs, nil
}

func classKey(classes []int) string {
	parts := make([]string, len(classes))
	for i, c := range classes {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, "|")
}

// concatRun joins segments [first, last] lead by lead.
func concatRun(segments []signal.Segment, first, last int) []signal.Line {
	leads := segments[first].LeadCount()
	data := make([]signal.Line, leads)
	parts := make([]signal.Line, 0, last-first+1)
	for l := 0; l < leads; l++ {
		parts = parts[:0]
		for s := first; s <= last; s++ {
			parts = append(parts, segments[s][l])
		}
		data[l] = signal.Concat(parts...)
	}
	return data
}

// IndexOf returns the index of the event containing segment, or -1.
func IndexOf(evs []Event, segment int) int {
	for i, e := range evs {
		if e.Contains(segment) {
			return i
		}
	}
	return -1
}

// String renders a short description used in logs.
func (e Event) String() string {
	if len(e.Diagnosis) > 0 {
		return fmt.Sprintf("event[%g-%gs %s]", e.StartSeconds, e.EndSeconds, strings.Join(e.Diagnosis, ","))
	}
	return fmt.Sprintf("event[%g-%gs]", e.StartSeconds, e.EndSeconds)
}
