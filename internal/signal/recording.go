package signal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// PredictionMode tags which shape of model output a recording carries. It is
// resolved once when the recording is parsed.
type PredictionMode int

const (
	// IndexList predictions are a flat list of positive segment indices.
	IndexList PredictionMode = iota
	// ThresholdMatrix predictions are per-segment class probabilities
	// compared against per-class thresholds.
	ThresholdMatrix
)

func (m PredictionMode) String() string {
	switch m {
	case IndexList:
		return "index_list"
	case ThresholdMatrix:
		return "threshold_matrix"
	default:
		return fmt.Sprintf("PredictionMode(%d)", int(m))
	}
}

// NoNormalClass marks a threshold matrix without a designated normal class.
const NoNormalClass = -1

// Predictions is the model output attached to a recording.
type Predictions struct {
	Mode PredictionMode

	// Indices holds positive segment indices (IndexList).
	Indices []int

	// Probabilities is indexed [segment][class] (ThresholdMatrix).
	Probabilities [][]float64
	Thresholds    []float64
	Labels        []string
	// NormalClass is excluded from triggering events, or NoNormalClass.
	NormalClass int
}

// ClassCount returns the number of classes in a threshold matrix.
func (p Predictions) ClassCount() int {
	return len(p.Thresholds)
}

// Label returns the display label for a class.
func (p Predictions) Label(class int) string {
	if class >= 0 && class < len(p.Labels) && p.Labels[class] != "" {
		return p.Labels[class]
	}
	return fmt.Sprintf("class_%d", class)
}

// ActiveClasses returns the non-normal classes whose probability meets its
// threshold for the given segment, in class order. It is always empty for
// IndexList predictions.
func (p Predictions) ActiveClasses(segment int) []int {
	if p.Mode != ThresholdMatrix || segment < 0 || segment >= len(p.Probabilities) {
		return nil
	}
	var active []int
	for class, prob := range p.Probabilities[segment] {
		if class == p.NormalClass || class >= len(p.Thresholds) {
			continue
		}
		if prob >= p.Thresholds[class] {
			active = append(active, class)
		}
	}
	return active
}

// IsPositive reports whether a segment was flagged by the model.
func (p Predictions) IsPositive(segment int) bool {
	if p.Mode == ThresholdMatrix {
		return len(p.ActiveClasses(segment)) > 0
	}
	for _, idx := range p.Indices {
		if idx == segment {
			return true
		}
	}
	return false
}

// SortedIndices returns the index list sorted and de-duplicated.
func (p Predictions) SortedIndices() []int {
	if len(p.Indices) == 0 {
		return nil
	}
	out := make([]int, len(p.Indices))
	copy(out, p.Indices)
	sort.Ints(out)
	uniq := out[:1]
	for _, v := range out[1:] {
		if v != uniq[len(uniq)-1] {
			uniq = append(uniq, v)
		}
	}
	return uniq
}

// Recording is a parsed input file: raw samples indexed
// [segment][lead][sample] and the model predictions for them.
type Recording struct {
	Segments    [][][]float64
	Predictions Predictions
}

// SegmentCount returns the number of segments.
func (r *Recording) SegmentCount() int { return len(r.Segments) }

// LeadCount returns the number of leads per segment.
func (r *Recording) LeadCount() int {
	if len(r.Segments) == 0 {
		return 0
	}
	return len(r.Segments[0])
}

// SampleCount returns the number of samples per lead per segment.
func (r *Recording) SampleCount() int {
	if r.LeadCount() == 0 {
		return 0
	}
	return len(r.Segments[0][0])
}

// recordingJSON is the on-wire layout. The single-class variant uses "data"
// and "preds"; the multi-class variant uses "segments" and "predictions".
type recordingJSON struct {
	Segments    [][][]float64   `json:"segments"`
	Data        [][][]float64   `json:"data"`
	Predictions json.RawMessage `json:"predictions"`
	Preds       json.RawMessage `json:"preds"`
	Thresholds  []float64       `json:"thresholds"`
	Labels      []string        `json:"labels"`
	NormalClass *int            `json:"normal_class"`
}

// ParseRecording decodes a raw recording document. Any decode failure is
// reported as ErrMalformedInput. The result is not yet validated; call
// Validate before using it.
func ParseRecording(data []byte) (*Recording, error) {
	var raw recordingJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedInputError{Reason: describeJSONError(err)}
	}

	segments := raw.Segments
	if segments == nil {
		segments = raw.Data
	}

	predsRaw := raw.Predictions
	if len(bytes.TrimSpace(predsRaw)) == 0 {
		predsRaw = raw.Preds
	}

	preds, err := parsePredictions(predsRaw, raw.Thresholds)
	if err != nil {
		return nil, err
	}
	preds.Labels = raw.Labels
	preds.NormalClass = NoNormalClass
	if raw.NormalClass != nil {
		preds.NormalClass = *raw.NormalClass
	}

	return &Recording{Segments: segments, Predictions: preds}, nil
}

func parsePredictions(data json.RawMessage, thresholds []float64) (Predictions, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		if thresholds != nil {
			return Predictions{Mode: ThresholdMatrix, Thresholds: thresholds}, nil
		}
		return Predictions{Mode: IndexList}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return Predictions{}, Malformedf("predictions must be an array: %s", describeJSONError(err))
	}

	matrix := thresholds != nil
	if len(items) > 0 {
		first := bytes.TrimSpace(items[0])
		matrix = len(first) > 0 && first[0] == '['
	}

	if matrix {
		var probs [][]float64
		if err := json.Unmarshal(data, &probs); err != nil {
			return Predictions{}, Malformedf("prediction matrix: %s", describeJSONError(err))
		}
		return Predictions{Mode: ThresholdMatrix, Probabilities: probs, Thresholds: thresholds}, nil
	}

	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return Predictions{}, Malformedf("prediction indices: %s", describeJSONError(err))
	}
	indices := make([]int, len(values))
	for i, v := range values {
		if v != math.Trunc(v) {
			return Predictions{}, Malformedf("prediction index %v at position %d is not an integer", v, i)
		}
		indices[i] = int(v)
	}
	return Predictions{Mode: IndexList, Indices: indices}, nil
}

func describeJSONError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "value"
		}
		return fmt.Sprintf("%s: expected %s, got %s", field, typeErr.Type, typeErr.Value)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("invalid JSON at offset %d: %v", syntaxErr.Offset, syntaxErr)
	}
	return err.Error()
}

// Validate checks the recording shape against the invariants the rest of the
// pipeline relies on. When timing has a positive sampling rate, every lead
// must hold exactly timing.SegmentLength() samples.
func (r *Recording) Validate(timing Timing) error {
	if len(r.Segments) == 0 {
		return Malformedf("recording has no segments")
	}

	leads := len(r.Segments[0])
	if leads == 0 {
		return Malformedf("segment 0 has no leads")
	}
	samples := len(r.Segments[0][0])
	if samples == 0 {
		return Malformedf("segment 0 lead 0 has no samples")
	}
	if timing.SamplingRate > 0 && timing.SegmentDuration > 0 {
		if want := timing.SegmentLength(); samples != want {
			return Malformedf("segments hold %d samples per lead, want %d (%d Hz x %gs)",
				samples, want, timing.SamplingRate, timing.SegmentDuration)
		}
	}

	for s, seg := range r.Segments {
		if len(seg) != leads {
			return Malformedf("segment %d has %d leads, want %d", s, len(seg), leads)
		}
		for l, lead := range seg {
			if len(lead) != samples {
				return Malformedf("segment %d lead %d has %d samples, want %d", s, l, len(lead), samples)
			}
			for i, v := range lead {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return Malformedf("segment %d lead %d sample %d is not finite", s, l, i)
				}
			}
		}
	}

	return r.Predictions.validate(len(r.Segments))
}

func (p Predictions) validate(segmentCount int) error {
	switch p.Mode {
	case IndexList:
		for _, idx := range p.Indices {
			if idx < 0 || idx >= segmentCount {
				return Malformedf("prediction index %d out of range [0,%d)", idx, segmentCount)
			}
		}
	case ThresholdMatrix:
		classes := len(p.Thresholds)
		if classes == 0 {
			return Malformedf("threshold predictions need at least one threshold")
		}
		if len(p.Probabilities) > 0 && len(p.Probabilities) != segmentCount {
			return Malformedf("prediction matrix has %d rows, want %d", len(p.Probabilities), segmentCount)
		}
		for s, row := range p.Probabilities {
			if len(row) != classes {
				return Malformedf("prediction row %d has %d classes, want %d", s, len(row), classes)
			}
		}
		if len(p.Labels) > 0 && len(p.Labels) != classes {
			return Malformedf("got %d labels for %d classes", len(p.Labels), classes)
		}
		if p.NormalClass < NoNormalClass || p.NormalClass >= classes {
			return Malformedf("normal class %d out of range", p.NormalClass)
		}
	default:
		return Malformedf("unknown prediction mode %s", p.Mode)
	}
	return nil
}
