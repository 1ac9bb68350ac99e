package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/trace.report/internal/session"
)

// Recording is the stored metadata of one uploaded recording.
type Recording struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	SegmentCount    int       `json:"segment_count"`
	LeadCount       int       `json:"lead_count"`
	SamplingRate    int       `json:"sampling_rate"`
	SegmentDuration float64   `json:"segment_duration"`
	Mode            string    `json:"mode"`
	EventCount      int       `json:"event_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// RecordingEvent is the stored bounds of one grouped event. The traces are not
// persisted.
type RecordingEvent struct {
	Index        int      `json:"index"`
	FirstSegment int      `json:"first_segment"`
	LastSegment  int      `json:"last_segment"`
	StartSeconds float64  `json:"start_seconds"`
	EndSeconds   float64  `json:"end_seconds"`
	Diagnosis    []string `json:"diagnosis,omitempty"`
}

// LeadStat is the normalization statistics of one lead.
type LeadStat struct {
	Lead        int     `json:"lead"`
	Name        string  `json:"name"`
	Mean        float64 `json:"mean"`
	Std         float64 `json:"std"`
	SampleCount int     `json:"sample_count"`
}

// Store adapts DB to session.Store. LeadName labels stored lead statistics.
type Store struct {
	DB       *DB
	LeadName func(int) string
}

// NewStore returns a session store backed by db.
func NewStore(db *DB, leadName func(int) string) *Store {
	return &Store{DB: db, LeadName: leadName}
}

// SaveSession stores the session's metadata, events and lead statistics.
func (s *Store) SaveSession(ctx context.Context, sess *session.Session) error {
	rec := Recording{
		ID:              sess.ID,
		Name:            sess.Name,
		SegmentCount:    sess.SegmentCount(),
		LeadCount:       sess.LeadCount(),
		SamplingRate:    sess.Timing.SamplingRate,
		SegmentDuration: sess.Timing.SegmentDuration,
		Mode:            sess.Predictions.Mode.String(),
		EventCount:      len(sess.Events),
		CreatedAt:       sess.CreatedAt,
	}
	evs := make([]RecordingEvent, len(sess.Events))
	for i, ev := range sess.Events {
		evs[i] = RecordingEvent{
			Index:        i,
			FirstSegment: ev.FirstSegment,
			LastSegment:  ev.LastSegment,
			StartSeconds: ev.StartSeconds,
			EndSeconds:   ev.EndSeconds,
			Diagnosis:    ev.Diagnosis,
		}
	}
	stats := make([]LeadStat, len(sess.Stats.Mean))
	for l := range sess.Stats.Mean {
		name := fmt.Sprintf("lead_%d", l)
		if s.LeadName != nil {
			name = s.LeadName(l)
		}
		stats[l] = LeadStat{
			Lead:        l,
			Name:        name,
			Mean:        sess.Stats.Mean[l],
			Std:         sess.Stats.Std[l],
			SampleCount: sess.Stats.N,
		}
	}
	return s.DB.InsertRecording(ctx, rec, evs, stats)
}

// DeleteRecording removes a stored recording.
func (s *Store) DeleteRecording(ctx context.Context, id string) error {
	return s.DB.DeleteRecording(ctx, id)
}

// InsertRecording writes a recording with its events and lead statistics in
// one transaction.
func (db *DB) InsertRecording(ctx context.Context, rec Recording, evs []RecordingEvent, stats []LeadStat) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recordings (
			recording_id, name, segment_count, lead_count, sampling_rate,
			segment_duration, prediction_mode, event_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.SegmentCount, rec.LeadCount, rec.SamplingRate,
		rec.SegmentDuration, rec.Mode, rec.EventCount, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert recording: %w", err)
	}

	for _, ev := range evs {
		var diag sql.NullString
		if len(ev.Diagnosis) > 0 {
			b, err := json.Marshal(ev.Diagnosis)
			if err != nil {
				return fmt.Errorf("failed to encode diagnosis: %w", err)
			}
			diag = sql.NullString{String: string(b), Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO recording_events (
				recording_id, event_index, first_segment, last_segment,
				start_seconds, end_seconds, diagnosis_json
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, ev.Index, ev.FirstSegment, ev.LastSegment,
			ev.StartSeconds, ev.EndSeconds, diag,
		)
		if err != nil {
			return fmt.Errorf("failed to insert event %d: %w", ev.Index, err)
		}
	}

	for _, st := range stats {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO lead_stats (
				recording_id, lead_index, lead_name, mean, std, sample_count
			) VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, st.Lead, st.Name, st.Mean, st.Std, st.SampleCount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert lead stat %d: %w", st.Lead, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recording: %w", err)
	}
	return nil
}

const recordingColumns = `
	recording_id, name, segment_count, lead_count, sampling_rate,
	segment_duration, prediction_mode, event_count, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (Recording, error) {
	var rec Recording
	var createdAt int64
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.SegmentCount, &rec.LeadCount, &rec.SamplingRate,
		&rec.SegmentDuration, &rec.Mode, &rec.EventCount, &createdAt,
	)
	if err != nil {
		return Recording{}, err
	}
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return rec, nil
}

// ListRecordings returns stored recordings, newest first.
func (db *DB) ListRecordings(ctx context.Context) ([]Recording, error) {
	rows, err := db.QueryContext(ctx, `SELECT`+recordingColumns+`
		FROM recordings
		ORDER BY created_at DESC, recording_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	defer rows.Close()

	out := []Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetRecording returns one stored recording. A missing id wraps
// session.ErrNotFound.
func (db *DB) GetRecording(ctx context.Context, id string) (*Recording, error) {
	row := db.QueryRowContext(ctx, `SELECT`+recordingColumns+`
		FROM recordings
		WHERE recording_id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}
	return &rec, nil
}

// RecordingEvents returns the stored events of a recording in order.
func (db *DB) RecordingEvents(ctx context.Context, id string) ([]RecordingEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT event_index, first_segment, last_segment, start_seconds, end_seconds, diagnosis_json
		FROM recording_events
		WHERE recording_id = ?
		ORDER BY event_index`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	out := []RecordingEvent{}
	for rows.Next() {
		var ev RecordingEvent
		var diag sql.NullString
		if err := rows.Scan(&ev.Index, &ev.FirstSegment, &ev.LastSegment, &ev.StartSeconds, &ev.EndSeconds, &diag); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if diag.Valid {
			if err := json.Unmarshal([]byte(diag.String), &ev.Diagnosis); err != nil {
				return nil, fmt.Errorf("failed to decode diagnosis of event %d: %w", ev.Index, err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// RecordingLeadStats returns the stored normalization statistics by lead.
func (db *DB) RecordingLeadStats(ctx context.Context, id string) ([]LeadStat, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT lead_index, lead_name, mean, std, sample_count
		FROM lead_stats
		WHERE recording_id = ?
		ORDER BY lead_index`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query lead stats: %w", err)
	}
	defer rows.Close()

	out := []LeadStat{}
	for rows.Next() {
		var st LeadStat
		if err := rows.Scan(&st.Lead, &st.Name, &st.Mean, &st.Std, &st.SampleCount); err != nil {
			return nil, fmt.Errorf("failed to scan lead stat: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// DeleteRecording removes a recording; events and lead statistics cascade.
func (db *DB) DeleteRecording(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM recordings WHERE recording_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recording: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	return nil
}
