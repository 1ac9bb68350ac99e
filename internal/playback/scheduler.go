package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/trace.report/internal/timeutil"
)

// ErrSchedulingFailure is returned when a frame could not be scheduled.
var ErrSchedulingFailure = errors.New("scheduling failure")

// FrameHandle identifies one scheduled frame.
type FrameHandle uint64

// FrameFunc receives the frame timestamp in milliseconds.
type FrameFunc func(ts float64)

// Scheduler requests one-shot animation frames.
type Scheduler interface {
	// Schedule arranges for fn to be called once with a frame timestamp.
	Schedule(fn FrameFunc) (FrameHandle, error)
	// Cancel drops a pending frame. Cancelling a fired or unknown handle is a
	// no-op.
	Cancel(h FrameHandle)
}

// ClockScheduler fires frames at a fixed interval off a timeutil.Clock.
// Timestamps are milliseconds since the scheduler was created.
type ClockScheduler struct {
	clock    timeutil.Clock
	interval time.Duration
	origin   time.Time

	mu      sync.Mutex
	next    FrameHandle
	pending map[FrameHandle]chan struct{}
	closed  bool
}

// NewClockScheduler creates a scheduler. An interval <= 0 falls back to
// 16ms.
func NewClockScheduler(clock timeutil.Clock, interval time.Duration) *ClockScheduler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &ClockScheduler{
		clock:    clock,
		interval: interval,
		origin:   clock.Now(),
		pending:  make(map[FrameHandle]chan struct{}),
	}
}

// Schedule starts a timer for one frame.
func (s *ClockScheduler) Schedule(fn FrameFunc) (FrameHandle, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: scheduler closed", ErrSchedulingFailure)
	}
	s.next++
	h := s.next
	cancel := make(chan struct{})
	s.pending[h] = cancel
	timer := s.clock.NewTimer(s.interval)
	s.mu.Unlock()

	go func() {
		select {
		case now := <-timer.C():
			s.mu.Lock()
			_, live := s.pending[h]
			delete(s.pending, h)
			s.mu.Unlock()
			if live {
				fn(timeutil.Milliseconds(now.Sub(s.origin)))
			}
		case <-cancel:
			timer.Stop()
		}
	}()
	return h, nil
}

// Cancel drops a pending frame.
func (s *ClockScheduler) Cancel(h FrameHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.pending[h]; ok {
		delete(s.pending, h)
		close(cancel)
	}
}

// Pending returns how many frames are waiting to fire.
func (s *ClockScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels all pending frames. Later Schedule calls fail with
// ErrSchedulingFailure.
func (s *ClockScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for h, cancel := range s.pending {
		delete(s.pending, h)
		close(cancel)
	}
}

// ManualScheduler holds scheduled frames until Fire is called. It is used to
// drive playback with synthetic timestamps.
type ManualScheduler struct {
	mu      sync.Mutex
	next    FrameHandle
	pending map[FrameHandle]FrameFunc
	order   []FrameHandle

	// FailNext, when set, is returned (wrapped) by the next Schedule call.
	FailNext error
	// Scheduled counts successful Schedule calls.
	Scheduled int
}

// NewManualScheduler creates an empty ManualScheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{pending: make(map[FrameHandle]FrameFunc)}
}

// Schedule queues fn.
func (m *ManualScheduler) Schedule(fn FrameFunc) (FrameHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailNext; err != nil {
		m.FailNext = nil
		return 0, fmt.Errorf("%w: %v", ErrSchedulingFailure, err)
	}
	m.next++
	m.pending[m.next] = fn
	m.order = append(m.order, m.next)
	m.Scheduled++
	return m.next, nil
}

// Cancel drops a queued frame.
func (m *ManualScheduler) Cancel(h FrameHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, h)
}

// Pending returns how many frames are queued.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Fire runs every frame queued before the call with timestamp ts and reports
// how many ran. Frames scheduled by those callbacks wait for the next Fire.
func (m *ManualScheduler) Fire(ts float64) int {
	m.mu.Lock()
	order := m.order
	m.order = nil
	var due []FrameFunc
	for _, h := range order {
		if fn, ok := m.pending[h]; ok {
			due = append(due, fn)
			delete(m.pending, h)
		}
	}
	m.mu.Unlock()

	for _, fn := range due {
		fn(ts)
	}
	return len(due)
}

// Take removes a queued frame and returns its callback so a test can invoke
// it after the owner has moved on, as a frame racing its cancellation would.
func (m *ManualScheduler) Take(h FrameHandle) FrameFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn := m.pending[h]
	delete(m.pending, h)
	return fn
}
