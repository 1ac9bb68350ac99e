package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trace.report/internal/monitoring"
	"github.com/banshee-data/trace.report/internal/timeutil"
)

type recorder struct {
	mu        sync.Mutex
	segments  []int
	completes []error
	frames    int
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnSegmentComplete: func(next int) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.segments = append(r.segments, next)
		},
		OnComplete: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completes = append(r.completes, err)
		},
		OnFrame: func(View) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.frames++
		},
	}
}

func muteLogs(t *testing.T) {
	t.Helper()
	orig := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = orig })
}

func TestPlayback_RunsToCompletion(t *testing.T) {
	sched := NewManualScheduler()
	rec := &recorder{}
	p, err := CreatePlayback(rampSegments(3, 2, 10), 1, rec.callbacks(), sched, Config{SamplesPerMillisecond: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, sched.Pending())

	ts := 0.0
	for i := 0; i < 100 && sched.Pending() > 0; i++ {
		require.Equal(t, 1, sched.Pending(), "exactly one frame in flight")
		sched.Fire(ts)
		ts += 4
	}

	assert.Equal(t, []int{1, 2}, rec.segments)
	require.Len(t, rec.completes, 1)
	assert.NoError(t, rec.completes[0])
	assert.Equal(t, Complete, p.View().State)
	assert.Equal(t, 0, sched.Pending())
}

func TestPlayback_PausedStartSchedulesNothing(t *testing.T) {
	sched := NewManualScheduler()
	p, err := CreatePlayback(rampSegments(2, 1, 10), 0, Callbacks{}, sched, Config{})
	require.NoError(t, err)
	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, Idle, p.View().State)

	p.SetSpeed(1)
	assert.Equal(t, 1, sched.Pending())
	assert.Equal(t, 1.0, p.Speed())
}

func TestPlayback_SetSpeedCancelsInFlightFrame(t *testing.T) {
	sched := NewManualScheduler()
	p, err := CreatePlayback(rampSegments(1, 1, 50), 1, Callbacks{}, sched, Config{SamplesPerMillisecond: 1})
	require.NoError(t, err)
	sched.Fire(0)
	sched.Fire(5)
	require.Equal(t, 5, p.View().Revealed)

	p.SetSpeed(0)
	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, 0, sched.Fire(500))
	assert.Equal(t, 5, p.View().Revealed)

	p.SetSpeed(2)
	p.SetSpeed(2)
	assert.Equal(t, 1, sched.Pending())
	sched.Fire(600)
	sched.Fire(603)
	assert.Equal(t, 11, p.View().Revealed)
}

func TestPlayback_StaleFrameIgnored(t *testing.T) {
	sched := NewManualScheduler()
	p, err := CreatePlayback(rampSegments(1, 1, 50), 1, Callbacks{}, sched, Config{SamplesPerMillisecond: 1})
	require.NoError(t, err)
	sched.Fire(0)
	stale := sched.Take(FrameHandle(sched.Scheduled))
	require.NotNil(t, stale)

	p.SetSpeed(1)
	stale(40)
	assert.Equal(t, 0, p.View().Revealed)
	assert.Equal(t, 1, sched.Pending())
}

func TestPlayback_SkipToEnd(t *testing.T) {
	sched := NewManualScheduler()
	rec := &recorder{}
	segs := rampSegments(4, 1, 10)
	p, err := CreatePlayback(segs, 1, rec.callbacks(), sched, Config{SamplesPerMillisecond: 1})
	require.NoError(t, err)

	p.SkipToEnd()
	p.SkipToEnd()
	assert.Equal(t, 0, sched.Pending())
	v := p.View()
	assert.Equal(t, Skipped, v.State)
	assert.Equal(t, segs[2][0], v.Previous[0])
	assert.Equal(t, segs[3][0], v.Current[0])
	assert.Equal(t, []error{nil}, rec.completes)
	assert.Empty(t, rec.segments)

	p.Restart()
	assert.Equal(t, Idle, p.View().State, "skip leaves speed at zero")
	p.SetSpeed(1)
	assert.Equal(t, 1, sched.Pending())
}

func TestPlayback_SchedulingFailure(t *testing.T) {
	muteLogs(t)
	sched := NewManualScheduler()
	rec := &recorder{}
	p, err := CreatePlayback(rampSegments(2, 1, 10), 1, rec.callbacks(), sched, Config{SamplesPerMillisecond: 1})
	require.NoError(t, err)

	sched.FailNext = errors.New("no display")
	sched.Fire(0)

	require.Len(t, rec.completes, 1)
	assert.ErrorIs(t, rec.completes[0], ErrSchedulingFailure)
	assert.ErrorIs(t, p.Err(), ErrSchedulingFailure)
	assert.Equal(t, 0, sched.Pending())

	// No retries after a failure.
	p.SetSpeed(1)
	p.Restart()
	assert.Equal(t, 0, sched.Pending())
	assert.Len(t, rec.completes, 1)
}

func TestPlayback_Dispose(t *testing.T) {
	sched := NewManualScheduler()
	rec := &recorder{}
	p, err := CreatePlayback(rampSegments(2, 1, 10), 1, rec.callbacks(), sched, Config{})
	require.NoError(t, err)

	p.Dispose()
	p.Dispose()
	assert.Equal(t, 0, sched.Pending())
	p.SetSpeed(5)
	p.SkipToEnd()
	assert.Equal(t, 0, sched.Pending())
	assert.Empty(t, rec.completes)
}

func TestCreatePlayback_Errors(t *testing.T) {
	_, err := CreatePlayback(rampSegments(1, 1, 2), 1, Callbacks{}, nil, Config{})
	assert.Error(t, err)
	_, err = CreatePlayback(nil, 1, Callbacks{}, NewManualScheduler(), Config{})
	assert.Error(t, err)
}

func TestPlayback_ClockScheduler(t *testing.T) {
	mock := timeutil.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	sched := NewClockScheduler(mock, 10*time.Millisecond)
	defer sched.Close()

	done := make(chan error, 1)
	p, err := CreatePlayback(rampSegments(1, 1, 8), 1, Callbacks{
		OnComplete: func(err error) { done <- err },
	}, sched, Config{SamplesPerMillisecond: 0.5})
	require.NoError(t, err)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			assert.Equal(t, Complete, p.View().State)
			return
		case <-deadline:
			t.Fatal("playback did not complete")
		default:
		}
		mock.Advance(10 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}
}

func TestClockScheduler_CloseFailsSchedule(t *testing.T) {
	sched := NewClockScheduler(timeutil.NewMockClock(time.Time{}), 0)
	h, err := sched.Schedule(func(float64) {})
	require.NoError(t, err)
	assert.Equal(t, 1, sched.Pending())
	sched.Cancel(h)
	sched.Cancel(h)
	assert.Equal(t, 0, sched.Pending())

	sched.Close()
	_, err = sched.Schedule(func(float64) {})
	assert.ErrorIs(t, err, ErrSchedulingFailure)
}
