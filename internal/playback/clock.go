// Package playback animates prepared segments onto a strip chart. Clock is
// the frame-paced state machine; Playback wires a Clock to a frame
// scheduler and owns the single in-flight frame.
package playback

import (
	"fmt"
	"math"

	"github.com/banshee-data/trace.report/internal/signal"
)

// State is the clock's playback state.
type State int

const (
	// Idle means no frames are wanted: speed is zero or playback was never
	// started.
	Idle State = iota
	// Playing means each frame reveals more of the current segment.
	Playing
	// Complete means the last segment has been fully revealed.
	Complete
	// Skipped means the end state was forced without running frames.
	Skipped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Complete:
		return "complete"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Step reports what a single Tick did.
type Step struct {
	// Revealed is the number of samples added to the reveal buffer.
	Revealed int
	// Boundary is set when the current segment finished and another
	// segment follows; Next is its index.
	Boundary bool
	Next     int
	// Complete is set when the last segment finished.
	Complete bool
}

// View is an immutable snapshot of what has been drawn so far. Previous holds
// the fully revealed lanes of the segment before the current one, nil for the
// first segment.
type View struct {
	SegmentIndex int
	Previous     []signal.Line
	Current      []signal.Line
	Revealed     int
	State        State
}

// Clock reveals the samples of each segment in turn as frame timestamps
// advance. It is not safe for concurrent use.
type Clock struct {
	segments     []signal.Segment
	samplesPerMs float64
	speed        float64

	index    int
	cursor   int
	prevTS   float64
	hasPrev  bool
	carry    float64
	previous []signal.Line
	current  []signal.Line
	done     State
}

// NewClock creates a clock over segments. samplesPerMs is the reveal rate at
// speed 1.
func NewClock(segments []signal.Segment, speed, samplesPerMs float64) *Clock {
	c := &Clock{
		segments:     segments,
		samplesPerMs: samplesPerMs,
		speed:        speed,
	}
	c.Restart()
	return c
}

// Restart rewinds to the start of the first segment with empty buffers.
func (c *Clock) Restart() {
	c.index = 0
	c.previous = nil
	c.current = c.emptyLanes()
	c.done = Idle
	c.resetSegmentProgress()
}

func (c *Clock) resetSegmentProgress() {
	c.cursor = 0
	c.hasPrev = false
	c.prevTS = 0
	c.carry = 0
}

func (c *Clock) emptyLanes() []signal.Line {
	if len(c.segments) == 0 {
		return nil
	}
	return make([]signal.Line, c.segments[0].LeadCount())
}

// Speed returns the current playback speed multiplier.
func (c *Clock) Speed() float64 { return c.speed }

// SegmentIndex returns the index of the segment being revealed.
func (c *Clock) SegmentIndex() int { return c.index }

// Cursor returns how many samples of the current segment are revealed.
func (c *Clock) Cursor() int { return c.cursor }

// State returns the clock's current state.
func (c *Clock) State() State {
	if c.done == Complete || c.done == Skipped {
		return c.done
	}
	if c.Active() {
		return Playing
	}
	return Idle
}

// Active reports whether the clock wants frames.
func (c *Clock) Active() bool {
	return c.done == Idle && c.speed > 0 && c.index < len(c.segments)
}

// SetSpeed changes the speed. Changing speed restarts frame timing, so the
// first tick afterwards only records its timestamp. Revealed samples are kept.
func (c *Clock) SetSpeed(speed float64) {
	c.speed = speed
	c.hasPrev = false
	c.carry = 0
}

// Tick advances the clock to the frame timestamp ts (milliseconds). The first
// tick after a start, speed change or segment boundary only records ts.
func (c *Clock) Tick(ts float64) Step {
	if !c.Active() {
		return Step{}
	}
	if !c.hasPrev {
		c.prevTS = ts
		c.hasPrev = true
		return Step{}
	}

	elapsed := ts - c.prevTS
	c.prevTS = ts
	if elapsed <= 0 {
		return Step{}
	}

	exact := elapsed*c.speed*c.samplesPerMs + c.carry
	dx := int(math.Floor(exact))
	c.carry = exact - float64(dx)
	if dx <= 0 {
		return Step{}
	}

	seg := c.segments[c.index]
	n := seg.SampleCount()
	end := c.cursor + dx
	if end > n {
		end = n
	}
	revealed := end - c.cursor

	// Append-then-replace: readers holding the old lanes never observe a
	// partially extended buffer.
	next := make([]signal.Line, len(seg))
	for l, lead := range seg {
		old := c.current[l]
		next[l] = append(old[:len(old):len(old)], lead[c.cursor:end]...)
	}
	c.current = next
	c.cursor = end

	step := Step{Revealed: revealed}
	if c.cursor >= n {
		c.finishSegment(&step)
	}
	return step
}

func (c *Clock) finishSegment(step *Step) {
	c.resetSegmentProgress()
	next := c.index + 1
	if next < len(c.segments) {
		c.previous = c.current
		c.current = c.emptyLanes()
		c.index = next
		step.Boundary = true
		step.Next = next
		return
	}
	c.index = next
	c.done = Complete
	step.Complete = true
}

// Skip jumps to the end state: speed zero with the final two segments fully
// revealed. No frames are run.
func (c *Clock) Skip() {
	c.speed = 0
	c.resetSegmentProgress()
	n := len(c.segments)
	c.index = n
	c.done = Skipped
	if n == 0 {
		c.previous, c.current = nil, nil
		return
	}
	c.current = fullLanes(c.segments[n-1])
	c.previous = nil
	if n >= 2 {
		c.previous = fullLanes(c.segments[n-2])
	}
}

func fullLanes(seg signal.Segment) []signal.Line {
	out := make([]signal.Line, len(seg))
	for l, lead := range seg {
		out[l] = lead.Clone()
	}
	return out
}

// View returns a snapshot of the reveal buffers. The lines are shared with the
// clock but never mutated after publication.
func (c *Clock) View() View {
	revealed := c.cursor
	if c.done == Complete || c.done == Skipped {
		if len(c.current) > 0 {
			revealed = len(c.current[0])
		}
	}
	return View{
		SegmentIndex: c.index,
		Previous:     c.previous,
		Current:      c.current,
		Revealed:     revealed,
		State:        c.State(),
	}
}

// Progress returns playback progress in [0, 1] as segment index over the
// last segment index.
func Progress(segmentIndex, segmentCount int) float64 {
	if segmentCount <= 1 {
		if segmentIndex > 0 {
			return 1
		}
		return 0
	}
	return math.Min(float64(segmentIndex)/float64(segmentCount-1), 1)
}

// TimeDomain returns the [start, end] seconds shown by the two-lane display
// while segmentIndex is playing.
func TimeDomain(segmentIndex int, segmentDuration float64) (float64, float64) {
	return float64(segmentIndex) * segmentDuration, float64(segmentIndex+2) * segmentDuration
}
