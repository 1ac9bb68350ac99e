package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trace.report/internal/signal"
)

// testSegments builds count segments of leads lines with samples points each.
// Point Y encodes the segment index so concatenation order can be checked.
func testSegments(count, leads, samples int) []signal.Segment {
	segs := make([]signal.Segment, count)
	for s := range segs {
		segs[s] = make(signal.Segment, leads)
		for l := range segs[s] {
			vals := make([]float64, samples)
			for i := range vals {
				vals[i] = float64(s)
			}
			segs[s][l] = signal.ToPoints(vals, signal.SignKeep)
		}
	}
	return segs
}

func span(evs []Event) [][2]float64 {
	out := make([][2]float64, len(evs))
	for i, e := range evs {
		out[i] = [2]float64{e.StartSeconds, e.EndSeconds}
	}
	return out
}

func TestGroup_IndexList(t *testing.T) {
	t.Parallel()

	segs := testSegments(10, 2, 4)
	preds := signal.Predictions{Mode: signal.IndexList, Indices: []int{2, 3, 4, 9}}

	evs, err := Group(segs, preds, 6)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, [][2]float64{{12, 30}, {54, 60}}, span(evs))

	first := evs[0]
	assert.Equal(t, 2, first.FirstSegment)
	assert.Equal(t, 4, first.LastSegment)
	assert.Equal(t, 3, first.SegmentCount())
	assert.Equal(t, 18.0, first.Duration())
	assert.Nil(t, first.Diagnosis)

	require.Len(t, first.Data, 2)
	for _, lead := range first.Data {
		require.Len(t, lead, 12)
		for i := 1; i < len(lead); i++ {
			assert.Greater(t, lead[i].X, lead[i-1].X)
		}
		assert.Equal(t, 2.0, lead[0].Y)
		assert.Equal(t, 3.0, lead[4].Y)
		assert.Equal(t, 4.0, lead[11].Y)
	}

	assert.Equal(t, 1, evs[1].SegmentCount())
}

func TestGroup_IndexListUnsortedDuplicates(t *testing.T) {
	t.Parallel()

	segs := testSegments(8, 1, 2)
	preds := signal.Predictions{Mode: signal.IndexList, Indices: []int{5, 1, 0, 5, 7, 6}}

	evs, err := Group(segs, preds, 1)
	require.NoError(t, err)
	assert.Equal(t, [][2]float64{{0, 2}, {5, 8}}, span(evs))
}

func TestGroup_Empty(t *testing.T) {
	t.Parallel()

	segs := testSegments(3, 1, 2)

	evs, err := Group(segs, signal.Predictions{Mode: signal.IndexList}, 6)
	require.NoError(t, err)
	assert.Empty(t, evs)

	evs, err = Group(segs, signal.Predictions{Mode: signal.ThresholdMatrix, Thresholds: []float64{0.5}, NormalClass: signal.NoNormalClass}, 6)
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestGroup_ThresholdNoMergeAcrossNormalGap(t *testing.T) {
	t.Parallel()

	segs := testSegments(4, 1, 3)
	preds := signal.Predictions{
		Mode: signal.ThresholdMatrix,
		Probabilities: [][]float64{
			{0.9, 0.1},
			{0.8, 0.2},
			{0.1, 0.1},
			{0.7, 0.3},
		},
		Thresholds:  []float64{0.5, 0.5},
		Labels:      []string{"A", "B"},
		NormalClass: signal.NoNormalClass,
	}

	evs, err := Group(segs, preds, 6)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, [][2]float64{{0, 12}, {18, 24}}, span(evs))
	assert.Equal(t, []string{"A"}, evs[0].Diagnosis)
	assert.Equal(t, []string{"A"}, evs[1].Diagnosis)
}

func TestGroup_ThresholdKeyChange(t *testing.T) {
	t.Parallel()

	segs := testSegments(6, 1, 2)
	preds := signal.Predictions{
		Mode: signal.ThresholdMatrix,
		Probabilities: [][]float64{
			{0.9, 0.9, 0.1}, // {A}
			{0.9, 0.9, 0.1}, // {A}
			{0.9, 0.9, 0.9}, // {A,B}
			{0.9, 0.1, 0.9}, // {B}
			{0.9, 0.1, 0.9}, // {B}
			{0.9, 0.1, 0.1}, // normal
		},
		Thresholds:  []float64{0.5, 0.5, 0.5},
		Labels:      []string{"SR", "A", "B"},
		NormalClass: 0,
	}

	evs, err := Group(segs, preds, 2)
	require.NoError(t, err)
	assert.Equal(t, [][2]float64{{0, 4}, {4, 6}, {6, 10}}, span(evs))
	assert.Equal(t, []string{"A"}, evs[0].Diagnosis)
	assert.Equal(t, []string{"A", "B"}, evs[1].Diagnosis)
	assert.Equal(t, []string{"B"}, evs[2].Diagnosis)
}

func TestGroup_ThresholdFlickerAndFinalFlush(t *testing.T) {
	t.Parallel()

	segs := testSegments(4, 2, 2)
	preds := signal.Predictions{
		Mode: signal.ThresholdMatrix,
		Probabilities: [][]float64{
			{0.9, 0.1},
			{0.1, 0.9},
			{0.9, 0.1},
			{0.1, 0.9},
		},
		Thresholds:  []float64{0.5, 0.5},
		NormalClass: signal.NoNormalClass,
	}

	evs, err := Group(segs, preds, 6)
	require.NoError(t, err)
	// Each segment is its own diagnostic run; the last run is flushed and
	// ends exactly at the end of the recording.
	assert.Equal(t, [][2]float64{{0, 6}, {6, 12}, {12, 18}, {18, 24}}, span(evs))
	assert.Equal(t, []string{"class_1"}, evs[3].Diagnosis)
}

func TestGroup_ThresholdIsInclusive(t *testing.T) {
	t.Parallel()

	segs := testSegments(1, 1, 2)
	preds := signal.Predictions{
		Mode:          signal.ThresholdMatrix,
		Probabilities: [][]float64{{0.5}},
		Thresholds:    []float64{0.5},
		NormalClass:   signal.NoNormalClass,
	}
	evs, err := Group(segs, preds, 6)
	require.NoError(t, err)
	require.Len(t, evs, 1)
}

func TestGroup_Partition(t *testing.T) {
	t.Parallel()

	segs := testSegments(20, 1, 2)
	indices := []int{0, 1, 3, 4, 5, 8, 10, 11, 19}
	evs, err := Group(segs, signal.Predictions{Mode: signal.IndexList, Indices: indices}, 6)
	require.NoError(t, err)

	covered := map[int]int{}
	for i, e := range evs {
		if i > 0 {
			assert.Less(t, evs[i-1].EndSeconds, e.StartSeconds+1e-9)
			assert.Greater(t, e.StartSeconds, evs[i-1].StartSeconds)
		}
		for s := e.FirstSegment; s <= e.LastSegment; s++ {
			covered[s]++
		}
	}
	for _, idx := range indices {
		assert.Equal(t, 1, covered[idx], "segment %d", idx)
		assert.NotEqual(t, -1, IndexOf(evs, idx))
	}
	assert.Len(t, covered, len(indices))
	assert.Equal(t, -1, IndexOf(evs, 2))
}

func TestGroup_Errors(t *testing.T) {
	t.Parallel()

	segs := testSegments(3, 1, 2)

	_, err := Group(segs, signal.Predictions{Mode: signal.IndexList, Indices: []int{3}}, 6)
	assert.ErrorIs(t, err, signal.ErrMalformedInput)

	_, err = Group(segs, signal.Predictions{Mode: signal.IndexList}, 0)
	assert.ErrorIs(t, err, signal.ErrMalformedInput)

	_, err = Group(segs, signal.Predictions{
		Mode:          signal.ThresholdMatrix,
		Probabilities: [][]float64{{1}, {1}, {1}, {1}},
		Thresholds:    []float64{0.5},
		NormalClass:   signal.NoNormalClass,
	}, 6)
	assert.ErrorIs(t, err, signal.ErrMalformedInput)

	_, err = Group(segs, signal.Predictions{Mode: signal.PredictionMode(9)}, 6)
	assert.ErrorIs(t, err, signal.ErrMalformedInput)
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "event[12-30s]", Event{StartSeconds: 12, EndSeconds: 30}.String())
	assert.Equal(t, "event[0-6s A,B]", Event{EndSeconds: 6, Diagnosis: []string{"A", "B"}}.String())
}
