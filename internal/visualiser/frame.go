package visualiser

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/trace.report/internal/playback"
	"github.com/banshee-data/trace.report/internal/session"
	"github.com/banshee-data/trace.report/internal/signal"
)

// Request is a decoded stream request.
type Request struct {
	RecordingID string
	Speed       float64
}

// DefaultSpeed is used when a request leaves speed out.
const DefaultSpeed = 1.0

// EncodeRequest builds the wire form of a stream request.
func EncodeRequest(req Request) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"recording_id": structpb.NewStringValue(req.RecordingID),
		"speed":        structpb.NewNumberValue(req.Speed),
	}}
}

// DecodeRequest validates and decodes a stream request.
func DecodeRequest(s *structpb.Struct) (Request, error) {
	req := Request{Speed: DefaultSpeed}
	fields := s.GetFields()
	id, ok := fields["recording_id"]
	if !ok || id.GetStringValue() == "" {
		return Request{}, fmt.Errorf("recording_id is required")
	}
	req.RecordingID = id.GetStringValue()
	if v, ok := fields["speed"]; ok {
		if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum {
			return Request{}, fmt.Errorf("speed must be a number")
		}
		req.Speed = v.GetNumberValue()
	}
	if req.Speed < 0 {
		return Request{}, fmt.Errorf("speed must not be negative, got %v", req.Speed)
	}
	return req, nil
}

// Frame is a decoded playback frame.
type Frame struct {
	SegmentIndex int
	Revealed     int
	State        string
	Progress     float64
	Previous     []signal.Line
	Current      []signal.Line

	// Findings is only set on the completion frame.
	Findings *session.Findings
}

func encodeLines(lines []signal.Line) *structpb.Value {
	leads := make([]*structpb.Value, len(lines))
	for l, line := range lines {
		xs := make([]*structpb.Value, len(line))
		ys := make([]*structpb.Value, len(line))
		for i, p := range line {
			xs[i] = structpb.NewNumberValue(p.X)
			ys[i] = structpb.NewNumberValue(p.Y)
		}
		leads[l] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"x": structpb.NewListValue(&structpb.ListValue{Values: xs}),
			"y": structpb.NewListValue(&structpb.ListValue{Values: ys}),
		}})
	}
	return structpb.NewListValue(&structpb.ListValue{Values: leads})
}

func decodeLines(v *structpb.Value) ([]signal.Line, error) {
	leads := v.GetListValue().GetValues()
	if len(leads) == 0 {
		return nil, nil
	}
	out := make([]signal.Line, len(leads))
	for l, lead := range leads {
		f := lead.GetStructValue().GetFields()
		xs := f["x"].GetListValue().GetValues()
		ys := f["y"].GetListValue().GetValues()
		if len(xs) != len(ys) {
			return nil, fmt.Errorf("lead %d has %d x values and %d y values", l, len(xs), len(ys))
		}
		line := make(signal.Line, len(xs))
		for i := range xs {
			line[i] = signal.Point{X: xs[i].GetNumberValue(), Y: ys[i].GetNumberValue()}
		}
		out[l] = line
	}
	return out, nil
}

// EncodeFrame builds the wire form of a playback view.
func EncodeFrame(v playback.View, segmentCount int) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"segment_index": structpb.NewNumberValue(float64(v.SegmentIndex)),
		"revealed":      structpb.NewNumberValue(float64(v.Revealed)),
		"state":         structpb.NewStringValue(v.State.String()),
		"progress":      structpb.NewNumberValue(playback.Progress(v.SegmentIndex, segmentCount)),
		"previous":      encodeLines(v.Previous),
		"current":       encodeLines(v.Current),
	}}
}

// WithFindings adds the recording's findings to an encoded frame.
func WithFindings(s *structpb.Struct, fd session.Findings) *structpb.Struct {
	diag := make([]*structpb.Value, len(fd.Diagnoses))
	for i, d := range fd.Diagnoses {
		diag[i] = structpb.NewStringValue(d)
	}
	s.Fields["findings"] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"positive":    structpb.NewBoolValue(fd.Positive),
		"event_count": structpb.NewNumberValue(float64(fd.EventCount)),
		"diagnoses":   structpb.NewListValue(&structpb.ListValue{Values: diag}),
	}})
	return s
}

func decodeFindings(v *structpb.Value) (*session.Findings, error) {
	st, ok := v.GetKind().(*structpb.Value_StructValue)
	if !ok {
		return nil, fmt.Errorf("findings must be a struct")
	}
	f := st.StructValue.GetFields()
	out := &session.Findings{
		Positive:   f["positive"].GetBoolValue(),
		EventCount: int(f["event_count"].GetNumberValue()),
		Diagnoses:  []string{},
	}
	for _, d := range f["diagnoses"].GetListValue().GetValues() {
		out.Diagnoses = append(out.Diagnoses, d.GetStringValue())
	}
	return out, nil
}

// DecodeFrame reads a frame produced by EncodeFrame.
func DecodeFrame(s *structpb.Struct) (Frame, error) {
	f := s.GetFields()
	prev, err := decodeLines(f["previous"])
	if err != nil {
		return Frame{}, fmt.Errorf("previous: %w", err)
	}
	cur, err := decodeLines(f["current"])
	if err != nil {
		return Frame{}, fmt.Errorf("current: %w", err)
	}
	frame := Frame{
		SegmentIndex: int(f["segment_index"].GetNumberValue()),
		Revealed:     int(f["revealed"].GetNumberValue()),
		State:        f["state"].GetStringValue(),
		Progress:     f["progress"].GetNumberValue(),
		Previous:     prev,
		Current:      cur,
	}
	if v, ok := f["findings"]; ok {
		if frame.Findings, err = decodeFindings(v); err != nil {
			return Frame{}, err
		}
	}
	return frame, nil
}
