// Package testutil provides shared test helpers and recording fixtures.
package testutil

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/trace.report/internal/signal"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewTestRequest creates a test HTTP request with an optional body.
func NewTestRequest(method, path string, body []byte) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, path, nil)
	}
	return httptest.NewRequest(method, path, bytes.NewReader(body))
}

// SineSegments builds [segment][lead][sample] data with a distinct frequency,
// amplitude and offset per lead so every lead has non-zero variance.
func SineSegments(segments, leads, samples int) [][][]float64 {
	out := make([][][]float64, segments)
	n := 0
	for s := range out {
		out[s] = make([][]float64, leads)
		for l := range out[s] {
			vals := make([]float64, samples)
			for i := range vals {
				t := float64(n + i)
				vals[i] = float64(l+1)*math.Sin(t*float64(l+1)/10) + float64(10*l)
			}
			out[s][l] = vals
		}
		n += samples
	}
	return out
}

// DefaultSegments is SineSegments sized for the default 64 Hz, 6 s timing.
func DefaultSegments(segments, leads int) [][][]float64 {
	return SineSegments(segments, leads, signal.DefaultTiming().SegmentLength())
}

// IndexRecordingJSON encodes segments with a positive index list using the
// single-class "data"/"preds" keys.
func IndexRecordingJSON(t testing.TB, segments [][][]float64, indices []int) []byte {
	t.Helper()
	if indices == nil {
		indices = []int{}
	}
	return mustMarshal(t, map[string]interface{}{"data": segments, "preds": indices})
}

// MatrixRecordingJSON encodes segments with a probability matrix.
func MatrixRecordingJSON(t testing.TB, segments [][][]float64, probs [][]float64, thresholds []float64, labels []string) []byte {
	t.Helper()
	doc := map[string]interface{}{
		"segments":    segments,
		"predictions": probs,
		"thresholds":  thresholds,
	}
	if labels != nil {
		doc["labels"] = labels
	}
	return mustMarshal(t, doc)
}

func mustMarshal(t testing.TB, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return data
}
