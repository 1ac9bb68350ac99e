package signal

// Display convention: the plotted Y is the negated sample so that the screen's
// downward Y axis draws positive deflections upward.
const (
	SignKeep   = 1.0
	SignInvert = -1.0
)

// ToPoints assigns x = index and y = sign*value to each sample.
func ToPoints(samples []float64, sign float64) Line {
	line := make(Line, len(samples))
	for i, v := range samples {
		line[i] = Point{X: float64(i), Y: sign * v}
	}
	return line
}

// ToSegments maps every lead of every segment through ToPoints.
func ToSegments(samples [][][]float64, sign float64) []Segment {
	out := make([]Segment, len(samples))
	for s, seg := range samples {
		out[s] = make(Segment, len(seg))
		for l, lead := range seg {
			out[s][l] = ToPoints(lead, sign)
		}
	}
	return out
}

// Transform scales a point as x*XScale, y*YScale+YTranslate.
type Transform struct {
	XScale     float64
	YScale     float64
	YTranslate float64
}

// Apply returns the transformed point.
func (t Transform) Apply(p Point) Point {
	return Point{X: p.X * t.XScale, Y: p.Y*t.YScale + t.YTranslate}
}

// Line returns a transformed copy of l.
func (t Transform) Line(l Line) Line {
	out := make(Line, len(l))
	for i, p := range l {
		out[i] = t.Apply(p)
	}
	return out
}

// Rescale applies x' = x*xScale and y' = y*yScale+yTranslate to every point
// of every segment, returning new segments.
func Rescale(segments []Segment, xScale, yScale, yTranslate float64) []Segment {
	t := Transform{XScale: xScale, YScale: yScale, YTranslate: yTranslate}
	out := make([]Segment, len(segments))
	for s, seg := range segments {
		out[s] = make(Segment, len(seg))
		for l, lead := range seg {
			out[s][l] = t.Line(lead)
		}
	}
	return out
}

// LeadOffset returns the vertical centre of a lead's lane when leadCount
// leads share height pixels.
func LeadOffset(lead, leadCount int, height float64) float64 {
	if leadCount <= 0 {
		return 0
	}
	return height / float64(leadCount) * float64(2*lead+1) / 2
}

// RescaleStacked rescales each lead into its own horizontal lane so that
// leads stack vertically without overlapping.
func RescaleStacked(segments []Segment, xScale, yScale, height float64) []Segment {
	out := make([]Segment, len(segments))
	for s, seg := range segments {
		out[s] = make(Segment, len(seg))
		for l, lead := range seg {
			t := Transform{XScale: xScale, YScale: yScale, YTranslate: LeadOffset(l, len(seg), height)}
			out[s][l] = t.Line(lead)
		}
	}
	return out
}

// Concat joins lines end to end. Each subsequent line is shifted right so its
// first point lands one step after the previous line's last point, keeping X
// strictly increasing across the join.
func Concat(lines ...Line) Line {
	total := 0
	for _, l := range lines {
		total += len(l)
	}
	out := make(Line, 0, total)
	offset := 0.0
	for _, l := range lines {
		if len(l) == 0 {
			continue
		}
		if len(out) > 0 {
			offset = out.LastX() + out.Step() - l[0].X
		}
		for _, p := range l {
			out = append(out, Point{X: p.X + offset, Y: p.Y})
		}
	}
	return out
}
