package signal

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestToPoints(t *testing.T) {
	got := ToPoints([]float64{0.5, -1, 2}, SignInvert)
	want := Line{{X: 0, Y: -0.5}, {X: 1, Y: 1}, {X: 2, Y: -2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ToPoints mismatch (-want +got):\n%s", diff)
	}

	kept := ToPoints([]float64{3}, SignKeep)
	assert.Equal(t, Line{{X: 0, Y: 3}}, kept)
}

func TestRescale(t *testing.T) {
	segs := []Segment{
		{Line{{X: 0, Y: 1}, {X: 1, Y: -1}}},
		{Line{{X: 2, Y: 0}}},
	}
	got := Rescale(segs, 2, 10, 5)
	want := []Segment{
		{Line{{X: 0, Y: 15}, {X: 2, Y: -5}}},
		{Line{{X: 4, Y: 5}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rescale mismatch (-want +got):\n%s", diff)
	}
	// Input untouched.
	assert.Equal(t, 1.0, segs[0][0][0].Y)
}

func TestRescale_PropagatesNonFinite(t *testing.T) {
	segs := []Segment{{Line{{X: 0, Y: math.NaN()}}}}
	got := Rescale(segs, 1, 1, 0)
	assert.True(t, math.IsNaN(got[0][0][0].Y))
}

func TestLeadOffset(t *testing.T) {
	tests := []struct {
		lead, count int
		height      float64
		want        float64
	}{
		{0, 1, 100, 50},
		{0, 2, 100, 25},
		{1, 2, 100, 75},
		{4, 5, 500, 450},
		{0, 0, 100, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LeadOffset(tt.lead, tt.count, tt.height))
	}
}

func TestRescaleStacked_NoOverlap(t *testing.T) {
	seg := Segment{
		Line{{X: 0, Y: 0}, {X: 1, Y: 1}},
		Line{{X: 0, Y: 0}, {X: 1, Y: 1}},
	}
	got := RescaleStacked([]Segment{seg}, 1, 10, 200)
	assert.Equal(t, 50.0, got[0][0][0].Y)
	assert.Equal(t, 150.0, got[0][1][0].Y)
	assert.Equal(t, 60.0, got[0][0][1].Y)
}

func TestConcat(t *testing.T) {
	a := ToPoints([]float64{1, 2, 3}, SignKeep)
	b := ToPoints([]float64{4, 5}, SignKeep)
	got := Concat(a, nil, b)

	want := Line{{X: 0, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 3}, {X: 3, Y: 4}, {X: 4, Y: 5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Concat mismatch (-want +got):\n%s", diff)
	}

	t.Run("scaled lines keep spacing", func(t *testing.T) {
		tr := Transform{XScale: 0.5, YScale: 1}
		got := Concat(tr.Line(a), tr.Line(b))
		for i := 1; i < len(got); i++ {
			assert.InDelta(t, 0.5, got[i].X-got[i-1].X, 1e-12)
		}
	})

	t.Run("strictly increasing", func(t *testing.T) {
		single := Line{{X: 0, Y: 0}}
		got := Concat(single, single, single)
		for i := 1; i < len(got); i++ {
			assert.Greater(t, got[i].X, got[i-1].X)
		}
	})

	assert.Empty(t, Concat())
}
