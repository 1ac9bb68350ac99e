// Package api serves recordings, their segments and events over HTTP.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/trace.report/internal/db"
	"github.com/banshee-data/trace.report/internal/session"
)

// ANSI escape codes for the request log
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// DefaultMaxUploadBytes caps the size of an uploaded recording.
const DefaultMaxUploadBytes = 256 << 20

type Server struct {
	sessions *session.Manager
	// db is optional; without it only live sessions are listed.
	db             *db.DB
	maxUploadBytes int64
}

func NewServer(sessions *session.Manager, database *db.DB) *Server {
	return &Server{
		sessions:       sessions,
		db:             database,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
}

// SetMaxUploadBytes changes the upload size limit.
func (s *Server) SetMaxUploadBytes(n int64) { s.maxUploadBytes = n }

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs status, method, URI and latency for every request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux registers the API routes. The database admin routes are mounted
// separately by the caller.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/recordings", s.createRecording)
	mux.HandleFunc("GET /api/recordings", s.listRecordings)
	mux.HandleFunc("GET /api/recordings/{id}", s.showRecording)
	mux.HandleFunc("DELETE /api/recordings/{id}", s.deleteRecording)
	mux.HandleFunc("GET /api/recordings/{id}/segments/{n}", s.showSegment)
	mux.HandleFunc("GET /api/recordings/{id}/events", s.listEvents)
	mux.HandleFunc("GET /api/recordings/{id}/events/{n}/window", s.showWindow)
	mux.HandleFunc("GET /api/recordings/{id}/events/{n}/chart", s.showChart)
	mux.HandleFunc("GET /api/recordings/{id}/events/{n}/plot.png", s.showPlot)
	mux.HandleFunc("GET /api/config", s.showConfig)
	return mux
}
