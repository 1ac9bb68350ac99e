package playback

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/trace.report/internal/monitoring"
	"github.com/banshee-data/trace.report/internal/signal"
)

// Callbacks are invoked outside the playback lock, on whichever goroutine
// delivered the frame.
type Callbacks struct {
	// OnSegmentComplete receives the index of the segment that starts next.
	OnSegmentComplete func(next int)
	// OnComplete is called once when playback finishes or is skipped (nil)
	// or when a frame could not be scheduled.
	OnComplete func(err error)
	// OnFrame, if set, receives the view published after every frame.
	OnFrame func(View)
}

// Config tunes frame pacing.
type Config struct {
	// SamplesPerMillisecond is the reveal rate at speed 1.
	SamplesPerMillisecond float64
}

// DefaultConfig paces a 64 Hz recording at a quarter of a sample per
// millisecond.
func DefaultConfig() Config {
	return Config{SamplesPerMillisecond: float64(signal.DefaultSamplingRate) / 256}
}

// Playback drives a Clock from a Scheduler. At most one frame is scheduled at
// any time.
type Playback struct {
	sched Scheduler
	cb    Callbacks

	mu        sync.Mutex
	clock     *Clock
	handle    FrameHandle
	hasHandle bool
	gen       uint64
	disposed  bool
	failed    error
	completed bool

	view atomic.Pointer[View]
}

// CreatePlayback starts animating segments at speed. A speed of zero creates a
// paused playback. Scheduling failures are delivered through OnComplete.
func CreatePlayback(segments []signal.Segment, speed float64, cb Callbacks, sched Scheduler, cfg Config) (*Playback, error) {
	if sched == nil {
		return nil, errors.New("playback: nil scheduler")
	}
	if len(segments) == 0 {
		return nil, signal.Malformedf("playback needs at least one segment")
	}
	if cfg.SamplesPerMillisecond <= 0 {
		cfg = DefaultConfig()
	}
	p := &Playback{
		sched: sched,
		cb:    cb,
		clock: NewClock(segments, speed, cfg.SamplesPerMillisecond),
	}

	p.mu.Lock()
	p.publishLocked()
	err := p.scheduleIfActiveLocked()
	p.mu.Unlock()
	p.reportFailure(err)
	return p, nil
}

// View returns the latest published snapshot.
func (p *Playback) View() View {
	if v := p.view.Load(); v != nil {
		return *v
	}
	return View{}
}

// Speed returns the current speed multiplier.
func (p *Playback) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock.Speed()
}

// Err returns the scheduling failure that ended playback, if any.
func (p *Playback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// SetSpeed cancels the in-flight frame, applies speed and schedules a new
// frame if playback should continue. Zero pauses without losing progress.
func (p *Playback) SetSpeed(speed float64) {
	p.mu.Lock()
	if p.disposed || p.failed != nil {
		p.mu.Unlock()
		return
	}
	p.cancelLocked()
	p.clock.SetSpeed(speed)
	p.publishLocked()
	err := p.scheduleIfActiveLocked()
	p.mu.Unlock()
	p.reportFailure(err)
}

// SkipToEnd stops frames and shows the last two segments fully revealed.
func (p *Playback) SkipToEnd() {
	p.mu.Lock()
	if p.disposed || p.failed != nil {
		p.mu.Unlock()
		return
	}
	p.cancelLocked()
	p.clock.Skip()
	view := p.publishLocked()
	notify := !p.completed
	p.completed = true
	p.mu.Unlock()

	if p.cb.OnFrame != nil {
		p.cb.OnFrame(view)
	}
	if notify && p.cb.OnComplete != nil {
		p.cb.OnComplete(nil)
	}
}

// Restart rewinds to the first segment and keeps the current speed.
func (p *Playback) Restart() {
	p.mu.Lock()
	if p.disposed || p.failed != nil {
		p.mu.Unlock()
		return
	}
	p.cancelLocked()
	p.clock.Restart()
	p.completed = false
	p.publishLocked()
	err := p.scheduleIfActiveLocked()
	p.mu.Unlock()
	p.reportFailure(err)
}

// Dispose cancels the in-flight frame. The playback ignores all later calls
// and frames.
func (p *Playback) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return
	}
	p.cancelLocked()
	p.disposed = true
}

func (p *Playback) frame(gen uint64) FrameFunc {
	return func(ts float64) { p.onFrame(gen, ts) }
}

func (p *Playback) onFrame(gen uint64, ts float64) {
	p.mu.Lock()
	if p.disposed || gen != p.gen || !p.hasHandle {
		p.mu.Unlock()
		return
	}
	p.hasHandle = false

	step := p.clock.Tick(ts)
	view := p.publishLocked()
	var err error
	if step.Complete {
		p.completed = true
	} else {
		err = p.scheduleIfActiveLocked()
	}
	p.mu.Unlock()

	if p.cb.OnFrame != nil {
		p.cb.OnFrame(view)
	}
	if step.Boundary && p.cb.OnSegmentComplete != nil {
		p.cb.OnSegmentComplete(step.Next)
	}
	if step.Complete && p.cb.OnComplete != nil {
		p.cb.OnComplete(nil)
	}
	p.reportFailure(err)
}

// reportFailure hands a scheduling error to OnComplete.
func (p *Playback) reportFailure(err error) {
	if err == nil {
		return
	}
	monitoring.Logf("[playback] %v", err)
	if p.cb.OnComplete != nil {
		p.cb.OnComplete(err)
	}
}

func (p *Playback) scheduleIfActiveLocked() error {
	if !p.clock.Active() {
		return nil
	}
	p.gen++
	h, err := p.sched.Schedule(p.frame(p.gen))
	if err != nil {
		if !errors.Is(err, ErrSchedulingFailure) {
			err = fmt.Errorf("%w: %v", ErrSchedulingFailure, err)
		}
		p.failed = err
		p.clock.SetSpeed(0)
		p.publishLocked()
		return err
	}
	p.handle = h
	p.hasHandle = true
	return nil
}

func (p *Playback) cancelLocked() {
	if p.hasHandle {
		p.sched.Cancel(p.handle)
		p.hasHandle = false
	}
	p.gen++
}

func (p *Playback) publishLocked() View {
	v := p.clock.View()
	p.view.Store(&v)
	return v
}
