package signal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecording_IndexList(t *testing.T) {
	doc := `{"data": [[[1,2],[3,4]],[[5,6],[7,8]]], "preds": [1, 0, 1]}`
	rec, err := ParseRecording([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, 2, rec.SegmentCount())
	assert.Equal(t, 2, rec.LeadCount())
	assert.Equal(t, 2, rec.SampleCount())
	assert.Equal(t, IndexList, rec.Predictions.Mode)
	assert.Equal(t, []int{1, 0, 1}, rec.Predictions.Indices)
	assert.Equal(t, []int{0, 1}, rec.Predictions.SortedIndices())
	assert.True(t, rec.Predictions.IsPositive(1))
	assert.False(t, rec.Predictions.IsPositive(2))
}

func TestParseRecording_ThresholdMatrix(t *testing.T) {
	doc := `{
		"segments": [[[1,2]],[[3,4]]],
		"predictions": [[0.9, 0.1, 0.8], [0.2, 0.7, 0.1]],
		"thresholds": [0.5, 0.5, 0.5],
		"labels": ["SR", "AF", "PVC"],
		"normal_class": 0
	}`
	rec, err := ParseRecording([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, rec.Validate(Timing{}))

	p := rec.Predictions
	assert.Equal(t, ThresholdMatrix, p.Mode)
	assert.Equal(t, 3, p.ClassCount())
	assert.Equal(t, 0, p.NormalClass)
	// Class 0 is the normal class and never counts as active.
	assert.Equal(t, []int{2}, p.ActiveClasses(0))
	assert.Equal(t, []int{1}, p.ActiveClasses(1))
	assert.Equal(t, "PVC", p.Label(2))
	assert.Equal(t, "class_7", p.Label(7))
}

func TestParseRecording_EmptyPredictions(t *testing.T) {
	rec, err := ParseRecording([]byte(`{"segments": [[[1,2]]], "predictions": []}`))
	require.NoError(t, err)
	assert.Equal(t, IndexList, rec.Predictions.Mode)
	assert.Empty(t, rec.Predictions.Indices)
	assert.Nil(t, rec.Predictions.SortedIndices())

	rec, err = ParseRecording([]byte(`{"segments": [[[1,2]]], "thresholds": [0.5]}`))
	require.NoError(t, err)
	assert.Equal(t, ThresholdMatrix, rec.Predictions.Mode)
}

func TestParseRecording_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"segments": [`},
		{"non numeric sample", `{"segments": [[["a"]]]}`},
		{"predictions not array", `{"segments": [[[1]]], "predictions": 3}`},
		{"fractional index", `{"segments": [[[1]]], "predictions": [1.5]}`},
		{"non numeric probability", `{"segments": [[[1]]], "predictions": [["x"]], "thresholds": [0.5]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecording([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedInput), "got %v", err)
			var me *MalformedInputError
			assert.True(t, errors.As(err, &me))
			assert.NotEmpty(t, me.Reason)
		})
	}
}

func TestRecordingValidate(t *testing.T) {
	ok := func() *Recording {
		return &Recording{
			Segments: [][][]float64{
				{{1, 2, 3, 4}, {5, 6, 7, 8}},
				{{1, 2, 3, 4}, {5, 6, 7, 8}},
			},
			Predictions: Predictions{Mode: IndexList, Indices: []int{1}},
		}
	}
	timing := Timing{SamplingRate: 2, SegmentDuration: 2}

	require.NoError(t, ok().Validate(timing))
	require.NoError(t, ok().Validate(Timing{}))

	tests := []struct {
		name   string
		mutate func(r *Recording)
	}{
		{"no segments", func(r *Recording) { r.Segments = nil }},
		{"no leads", func(r *Recording) { r.Segments[0] = nil }},
		{"no samples", func(r *Recording) { r.Segments[0][0] = nil }},
		{"lead count mismatch", func(r *Recording) { r.Segments[1] = r.Segments[1][:1] }},
		{"sample count mismatch", func(r *Recording) { r.Segments[1][1] = []float64{1, 2, 3} }},
		{"index out of range", func(r *Recording) { r.Predictions.Indices = []int{2} }},
		{"negative index", func(r *Recording) { r.Predictions.Indices = []int{-1} }},
		{"matrix without thresholds", func(r *Recording) {
			r.Predictions = Predictions{Mode: ThresholdMatrix, Probabilities: [][]float64{{1}, {1}}, NormalClass: NoNormalClass}
		}},
		{"matrix row count", func(r *Recording) {
			r.Predictions = Predictions{Mode: ThresholdMatrix, Probabilities: [][]float64{{1}}, Thresholds: []float64{0.5}, NormalClass: NoNormalClass}
		}},
		{"matrix width", func(r *Recording) {
			r.Predictions = Predictions{Mode: ThresholdMatrix, Probabilities: [][]float64{{1}, {1, 2}}, Thresholds: []float64{0.5}, NormalClass: NoNormalClass}
		}},
		{"label count", func(r *Recording) {
			r.Predictions = Predictions{Mode: ThresholdMatrix, Thresholds: []float64{0.5}, Labels: []string{"a", "b"}, NormalClass: NoNormalClass}
		}},
		{"normal class range", func(r *Recording) {
			r.Predictions = Predictions{Mode: ThresholdMatrix, Thresholds: []float64{0.5}, NormalClass: 3}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ok()
			tt.mutate(r)
			err := r.Validate(timing)
			assert.ErrorIs(t, err, ErrMalformedInput)
		})
	}

	t.Run("timing mismatch", func(t *testing.T) {
		err := ok().Validate(DefaultTiming())
		assert.ErrorIs(t, err, ErrMalformedInput)
	})
}

func TestTiming(t *testing.T) {
	tm := DefaultTiming()
	assert.Equal(t, 384, tm.SegmentLength())
	assert.Equal(t, 320, tm.SampleIndex(5))
}
