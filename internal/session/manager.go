package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/trace.report/internal/config"
	"github.com/banshee-data/trace.report/internal/monitoring"
	"github.com/banshee-data/trace.report/internal/signal"
	"github.com/banshee-data/trace.report/internal/timeutil"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("session not found")

// Session is one loaded recording.
type Session struct {
	ID        string
	Name      string
	CreatedAt time.Time
	*Prepared
}

// Summary is the JSON description of a session.
type Summary struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	CreatedAt       time.Time `json:"created_at"`
	SegmentCount    int       `json:"segment_count"`
	LeadCount       int       `json:"lead_count"`
	SamplingRate    int       `json:"sampling_rate"`
	SegmentDuration float64   `json:"segment_duration"`
	DurationSeconds float64   `json:"duration_seconds"`
	Mode            string    `json:"mode"`
	EventCount      int       `json:"event_count"`
	Live            bool      `json:"live"`
}

// Summary describes the session.
func (s *Session) Summary() Summary {
	return Summary{
		ID:              s.ID,
		Name:            s.Name,
		CreatedAt:       s.CreatedAt,
		SegmentCount:    s.SegmentCount(),
		LeadCount:       s.LeadCount(),
		SamplingRate:    s.Timing.SamplingRate,
		SegmentDuration: s.Timing.SegmentDuration,
		DurationSeconds: s.Duration(),
		Mode:            s.Predictions.Mode.String(),
		EventCount:      len(s.Events),
		Live:            true,
	}
}

// Store persists session metadata. It is optional.
type Store interface {
	SaveSession(ctx context.Context, s *Session) error
	DeleteRecording(ctx context.Context, id string) error
}

// Manager owns the loaded sessions.
type Manager struct {
	cfg   *config.DisplayConfig
	store Store
	clock timeutil.Clock

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager. store and clock may be nil.
func NewManager(cfg *config.DisplayConfig, store Store, clock timeutil.Clock) *Manager {
	if cfg == nil {
		cfg = config.DefaultDisplayConfig()
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		clock:    clock,
		sessions: make(map[string]*Session),
	}
}

// Config returns the display configuration sessions are prepared with.
func (m *Manager) Config() *config.DisplayConfig { return m.cfg }

// Create parses and prepares raw, then registers the result under a new id.
func (m *Manager) Create(ctx context.Context, name string, raw []byte) (*Session, error) {
	rec, err := signal.ParseRecording(raw)
	if err != nil {
		return nil, err
	}
	m.cfg.ApplyDefaults(&rec.Predictions)

	prepared, err := Prepare(ctx, rec, m.cfg.Timing())
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: m.clock.Now().UTC(),
		Prepared:  prepared,
	}
	if m.store != nil {
		if err := m.store.SaveSession(ctx, s); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	monitoring.Logf("[session] created %s (%q)", s.ID, name)
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// List returns the live sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Close tears down a session and removes its stored metadata. Closing a
// session that is only in the store still deletes it there.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	_, live := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.DeleteRecording(ctx, id); err != nil {
			if !live {
				return err
			}
			monitoring.Logf("[session] delete stored recording %s: %v", id, err)
		}
		return nil
	}
	if !live {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Shutdown drops every live session. Stored metadata is kept.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.sessions)
	m.sessions = make(map[string]*Session)
	if n > 0 {
		monitoring.Logf("[session] dropped %d live sessions", n)
	}
}
