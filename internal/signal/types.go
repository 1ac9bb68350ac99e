// Package signal holds the recording data model and the pure transforms that
// turn raw multi-lead samples into plottable geometry: per-lead z-score
// normalization and point/coordinate mapping.
package signal

// Default acquisition timing for recordings that do not say otherwise.
const (
	DefaultSamplingRate    = 64
	DefaultSegmentDuration = 6.0
)

// Point is a single plotted sample. X is in pixel-time units and Y in
// pixel-amplitude units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Line is an ordered sequence of points for one lead. Points are ordered by
// increasing X.
type Line []Point

// Segment is the set of lead lines for one fixed-duration chunk of the
// recording, indexed by lead.
type Segment []Line

// Timing describes how samples map onto wall-clock time.
type Timing struct {
	SamplingRate    int     `json:"sampling_rate"`
	SegmentDuration float64 `json:"segment_duration"`
}

// DefaultTiming returns the 64 Hz, 6 second segment timing.
func DefaultTiming() Timing {
	return Timing{SamplingRate: DefaultSamplingRate, SegmentDuration: DefaultSegmentDuration}
}

// SegmentLength is the number of samples per lead in one segment.
func (t Timing) SegmentLength() int {
	return int(float64(t.SamplingRate) * t.SegmentDuration)
}

// SampleIndex converts an offset in seconds to a sample index.
func (t Timing) SampleIndex(seconds float64) int {
	return int(seconds * float64(t.SamplingRate))
}

// LastX returns the X of the final point, or 0 for an empty line.
func (l Line) LastX() float64 {
	if len(l) == 0 {
		return 0
	}
	return l[len(l)-1].X
}

// Step returns the X spacing between the first two points, or 1 when the
// line is too short to tell.
func (l Line) Step() float64 {
	if len(l) < 2 {
		return 1
	}
	return l[1].X - l[0].X
}

// Clone returns a copy that shares no backing array with l.
func (l Line) Clone() Line {
	if l == nil {
		return nil
	}
	out := make(Line, len(l))
	copy(out, l)
	return out
}

// LeadCount returns the number of leads in the segment.
func (s Segment) LeadCount() int { return len(s) }

// SampleCount returns the number of points in the first lead.
func (s Segment) SampleCount() int {
	if len(s) == 0 {
		return 0
	}
	return len(s[0])
}
