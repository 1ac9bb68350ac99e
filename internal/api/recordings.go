package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/banshee-data/trace.report/internal/db"
	"github.com/banshee-data/trace.report/internal/events"
	"github.com/banshee-data/trace.report/internal/focus"
	"github.com/banshee-data/trace.report/internal/httputil"
	"github.com/banshee-data/trace.report/internal/render"
	"github.com/banshee-data/trace.report/internal/security"
	"github.com/banshee-data/trace.report/internal/session"
	"github.com/banshee-data/trace.report/internal/signal"
	"github.com/banshee-data/trace.report/internal/units"
	"github.com/banshee-data/trace.report/internal/version"
)

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, signal.ErrMalformedInput), errors.Is(err, focus.ErrEmptyWindow):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, signal.ErrDegenerateLead):
		httputil.UnprocessableEntity(w, err.Error())
	case errors.Is(err, session.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.As(err, &tooLarge):
		httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

// EventSummary describes one event without its traces.
type EventSummary struct {
	Index        int      `json:"index"`
	StartSeconds float64  `json:"start_seconds"`
	EndSeconds   float64  `json:"end_seconds"`
	Duration     float64  `json:"duration"`
	Label        string   `json:"label"`
	Diagnosis    []string `json:"diagnosis,omitempty"`
	FirstSegment int      `json:"first_segment"`
	LastSegment  int      `json:"last_segment"`
}

func summarizeEvent(i int, start, end float64, diag []string, first, last int) EventSummary {
	return EventSummary{
		Index:        i,
		StartSeconds: start,
		EndSeconds:   end,
		Duration:     end - start,
		Label:        units.FormatRange(start, end),
		Diagnosis:    diag,
		FirstSegment: first,
		LastSegment:  last,
	}
}

func liveEventSummaries(evs []events.Event) []EventSummary {
	out := make([]EventSummary, len(evs))
	for i, ev := range evs {
		out[i] = summarizeEvent(i, ev.StartSeconds, ev.EndSeconds, ev.Diagnosis, ev.FirstSegment, ev.LastSegment)
	}
	return out
}

// RecordingDetail is a recording summary with its events and lead statistics.
type RecordingDetail struct {
	session.Summary
	Events    []EventSummary   `json:"events"`
	LeadStats []db.LeadStat    `json:"lead_stats"`
	Findings  session.Findings `json:"findings"`
}

func storedSummary(rec db.Recording, live bool) session.Summary {
	return session.Summary{
		ID:              rec.ID,
		Name:            rec.Name,
		CreatedAt:       rec.CreatedAt,
		SegmentCount:    rec.SegmentCount,
		LeadCount:       rec.LeadCount,
		SamplingRate:    rec.SamplingRate,
		SegmentDuration: rec.SegmentDuration,
		DurationSeconds: float64(rec.SegmentCount) * rec.SegmentDuration,
		Mode:            rec.Mode,
		EventCount:      rec.EventCount,
		Live:            live,
	}
}

func (s *Server) createRecording(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUploadBytes))
	if err != nil {
		writeError(w, fmt.Errorf("read upload: %w", err))
		return
	}
	name := r.URL.Query().Get("name")
	sess, err := s.sessions.Create(r.Context(), name, raw)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sess.Summary())
}

func (s *Server) listRecordings(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		live := s.sessions.List()
		out := make([]session.Summary, len(live))
		for i, sess := range live {
			out[i] = sess.Summary()
		}
		httputil.WriteJSONOK(w, out)
		return
	}

	stored, err := s.db.ListRecordings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]session.Summary, len(stored))
	for i, rec := range stored {
		_, err := s.sessions.Get(rec.ID)
		out[i] = storedSummary(rec, err == nil)
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) showRecording(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if sess, err := s.sessions.Get(id); err == nil {
		cfg := s.sessions.Config()
		stats := make([]db.LeadStat, len(sess.Stats.Mean))
		for l := range sess.Stats.Mean {
			stats[l] = db.LeadStat{
				Lead:        l,
				Name:        cfg.LeadName(l),
				Mean:        sess.Stats.Mean[l],
				Std:         sess.Stats.Std[l],
				SampleCount: sess.Stats.N,
			}
		}
		httputil.WriteJSONOK(w, RecordingDetail{
			Summary:   sess.Summary(),
			Events:    liveEventSummaries(sess.Events),
			LeadStats: stats,
			Findings:  sess.Findings(),
		})
		return
	}
	if s.db == nil {
		writeError(w, fmt.Errorf("%w: %s", session.ErrNotFound, id))
		return
	}

	ctx := r.Context()
	rec, err := s.db.GetRecording(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	stored, err := s.db.RecordingEvents(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.db.RecordingLeadStats(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	evs := make([]EventSummary, len(stored))
	diag := make([][]string, len(stored))
	for i, ev := range stored {
		evs[i] = summarizeEvent(ev.Index, ev.StartSeconds, ev.EndSeconds, ev.Diagnosis, ev.FirstSegment, ev.LastSegment)
		diag[i] = ev.Diagnosis
	}
	httputil.WriteJSONOK(w, RecordingDetail{
		Summary:   storedSummary(*rec, false),
		Events:    evs,
		LeadStats: stats,
		Findings:  session.CollectFindings(diag),
	})
}

func (s *Server) deleteRecording(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// liveSession resolves the {id} path value to a loaded session.
func (s *Server) liveSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

// indexParam parses the {n} path value and checks it against [0, count).
func indexParam(w http.ResponseWriter, r *http.Request, what string, count int) (int, bool) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid %s index %q", what, r.PathValue("n")))
		return 0, false
	}
	if n < 0 || n >= count {
		httputil.NotFound(w, fmt.Sprintf("%s %d out of range [0,%d)", what, n, count))
		return 0, false
	}
	return n, true
}

func (s *Server) showSegment(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}
	n, ok := indexParam(w, r, "segment", sess.SegmentCount())
	if !ok {
		return
	}
	view, err := sess.DisplaySegment(n, s.sessions.Config().Geometry())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, view)
}

// EventList is the events of a live session plus the event a brush opens on
// for the requested segment.
type EventList struct {
	Events       []EventSummary `json:"events"`
	InitialIndex int            `json:"initial_index"`
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}
	segment := 0
	if v := r.URL.Query().Get("segment"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			httputil.BadRequest(w, "Invalid 'segment' parameter")
			return
		}
		segment = parsed
	}
	httputil.WriteJSONOK(w, EventList{
		Events:       liveEventSummaries(sess.Events),
		InitialIndex: sess.EventIndexFor(segment),
	})
}

// WindowResponse is the focus chart content for a brushed interval.
type WindowResponse struct {
	Event        int           `json:"event"`
	StartSeconds float64       `json:"start_seconds"`
	EndSeconds   float64       `json:"end_seconds"`
	Label        string        `json:"label"`
	Extent       focus.Extent  `json:"extent"`
	Lines        []signal.Line `json:"lines"`
}

func floatParam(r *http.Request, key string, def float64) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid '%s' parameter", key)
	}
	return f, nil
}

func (s *Server) showWindow(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}
	n, ok := indexParam(w, r, "event", len(sess.Events))
	if !ok {
		return
	}

	cfg := s.sessions.Config()
	unit := r.URL.Query().Get("units")
	if unit == "" {
		unit = units.Seconds
	}
	if !units.IsValid(unit) {
		httputil.BadRequest(w, fmt.Sprintf("Invalid 'units' parameter, must be one of: %s", units.GetValidUnitsString()))
		return
	}
	rate := sess.Timing.SamplingRate
	initial := units.FromSeconds(cfg.GetBrushInitDuration(), unit, rate)
	start, err := floatParam(r, "start", 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	end, err := floatParam(r, "end", start+initial)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	g := cfg.Geometry()
	g.SamplingRate = rate
	brush, err := focus.NewBrush(sess.Events, g, cfg.GetBrushInitDuration(), n)
	if err != nil {
		writeError(w, err)
		return
	}
	startS, endS := brush.Move(units.ToSeconds(start, unit, rate), units.ToSeconds(end, unit, rate))
	lines, err := brush.Window()
	if err != nil {
		writeError(w, err)
		return
	}
	ev := brush.Event()
	httputil.WriteJSONOK(w, WindowResponse{
		Event:        n,
		StartSeconds: startS,
		EndSeconds:   endS,
		Label:        units.FormatRange(ev.StartSeconds+startS, ev.StartSeconds+endS),
		Extent:       brush.Extent(),
		Lines:        lines,
	})
}

func (s *Server) renderOptions(sess *session.Session) render.Options {
	o := render.DefaultOptions()
	o.SamplingRate = sess.Timing.SamplingRate
	o.LeadNames = s.sessions.Config().GetLeadNames()
	return o
}

func (s *Server) showChart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}
	n, ok := indexParam(w, r, "event", len(sess.Events))
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.WriteEventChart(&buf, sess.Events[n], s.renderOptions(sess), s.sessions.Config().GetBrushInitDuration()); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteBody(w, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) showPlot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}
	n, ok := indexParam(w, r, "event", len(sess.Events))
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.WriteEventPNG(&buf, sess.Events[n], s.renderOptions(sess)); err != nil {
		writeError(w, err)
		return
	}
	name := security.SanitizeFilename(fmt.Sprintf("%s_event_%d.png", sess.Name, n))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	httputil.WriteBody(w, "image/png", buf.Bytes())
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.sessions.Config()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"sampling_rate":           cfg.GetSamplingRate(),
		"segment_duration":        cfg.GetSegmentDuration(),
		"graph_width":             cfg.GetGraphWidth(),
		"graph_height":            cfg.GetGraphHeight(),
		"brush_height":            cfg.GetBrushHeight(),
		"brush_init_duration":     cfg.GetBrushInitDuration(),
		"samples_per_millisecond": cfg.GetSamplesPerMillisecond(),
		"frame_interval":          cfg.GetFrameInterval().String(),
		"speed_presets":           cfg.GetSpeedPresets(),
		"lead_names":              cfg.GetLeadNames(),
		"class_labels":            cfg.ClassLabels,
		"normal_class":            cfg.GetNormalClass(),
		"units":                   units.ValidUnits,
		"version":                 version.Version,
	})
}
