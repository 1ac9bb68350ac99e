package signal

import (
	"context"
	"math"
	"runtime"

	"gonum.org/v1/gonum/floats"
)

// Stats holds the per-lead statistics a recording was normalized with.
type Stats struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
	// N is the number of samples per lead the statistics cover.
	N int `json:"n"`
}

// degenerateTolerance bounds a usable standard deviation relative to the
// lead's mean magnitude.
const degenerateTolerance = 1e-12

// Yielder is called between segments in each normalization pass. Returning an
// error aborts the computation; there is no partial result to resume from.
type Yielder func(ctx context.Context) error

// CooperativeYield checks for cancellation and hands the processor back to
// the scheduler so long recordings do not starve other goroutines.
func CooperativeYield(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runtime.Gosched()
	return nil
}

// Normalizer rescales each lead to zero mean and unit variance over the whole
// recording.
type Normalizer struct {
	Yield Yielder
}

// NewNormalizer returns a Normalizer that yields with CooperativeYield.
func NewNormalizer() *Normalizer {
	return &Normalizer{Yield: CooperativeYield}
}

// Normalize is shorthand for NewNormalizer().Normalize.
func Normalize(ctx context.Context, segments [][][]float64) ([][][]float64, Stats, error) {
	return NewNormalizer().Normalize(ctx, segments)
}

// Normalize computes per-lead mean and population standard deviation across
// every segment and returns (sample-mean)/std with the input's shape. The
// input is not modified. A lead whose samples are all equal, or whose spread
// is negligible next to its mean, yields a *DegenerateLeadError.
func (n *Normalizer) Normalize(ctx context.Context, segments [][][]float64) ([][][]float64, Stats, error) {
	stats, err := n.ComputeStats(ctx, segments)
	if err != nil {
		return nil, Stats{}, err
	}
	out, err := n.Apply(ctx, segments, stats)
	if err != nil {
		return nil, Stats{}, err
	}
	return out, stats, nil
}

// ComputeStats runs the two accumulation passes: sums, then squared
// deviations from the mean.
func (n *Normalizer) ComputeStats(ctx context.Context, segments [][][]float64) (Stats, error) {
	if len(segments) == 0 || len(segments[0]) == 0 {
		return Stats{}, Malformedf("cannot normalize an empty recording")
	}
	leadCount := len(segments[0])

	sums := make([]float64, leadCount)
	counts := make([]int, leadCount)
	lo := make([]float64, leadCount)
	hi := make([]float64, leadCount)
	for s, seg := range segments {
		if len(seg) != leadCount {
			return Stats{}, Malformedf("segment %d has %d leads, want %d", s, len(seg), leadCount)
		}
		for l, lead := range seg {
			if len(lead) == 0 {
				continue
			}
			if counts[l] == 0 {
				lo[l], hi[l] = lead[0], lead[0]
			}
			lo[l] = math.Min(lo[l], floats.Min(lead))
			hi[l] = math.Max(hi[l], floats.Max(lead))
			sums[l] += floats.Sum(lead)
			counts[l] += len(lead)
		}
		if err := n.yield(ctx); err != nil {
			return Stats{}, err
		}
	}

	means := make([]float64, leadCount)
	for l := range means {
		if counts[l] == 0 {
			return Stats{}, Malformedf("lead %d has no samples", l)
		}
		if counts[l] != counts[0] {
			return Stats{}, Malformedf("lead %d has %d samples, lead 0 has %d", l, counts[l], counts[0])
		}
		// A constant lead is rejected before the mean rounds it into a
		// tiny nonzero spread.
		if lo[l] == hi[l] {
			return Stats{}, &DegenerateLeadError{Lead: l, Std: 0}
		}
		means[l] = sums[l] / float64(counts[l])
	}

	squares := make([]float64, leadCount)
	var scratch []float64
	for _, seg := range segments {
		for l, lead := range seg {
			scratch = append(scratch[:0], lead...)
			floats.AddConst(-means[l], scratch)
			squares[l] += floats.Dot(scratch, scratch)
		}
		if err := n.yield(ctx); err != nil {
			return Stats{}, err
		}
	}

	stds := make([]float64, leadCount)
	for l := range stds {
		stds[l] = math.Sqrt(squares[l] / float64(counts[l]))
		if degenerateStd(stds[l], means[l]) {
			return Stats{}, &DegenerateLeadError{Lead: l, Std: stds[l]}
		}
	}

	return Stats{Mean: means, Std: stds, N: counts[0]}, nil
}

// Apply rescales segments with precomputed statistics.
func (n *Normalizer) Apply(ctx context.Context, segments [][][]float64, stats Stats) ([][][]float64, error) {
	out := make([][][]float64, len(segments))
	for s, seg := range segments {
		out[s] = make([][]float64, len(seg))
		for l, lead := range seg {
			if l >= len(stats.Mean) || l >= len(stats.Std) {
				return nil, Malformedf("segment %d lead %d has no statistics", s, l)
			}
			if degenerateStd(stats.Std[l], stats.Mean[l]) {
				return nil, &DegenerateLeadError{Lead: l, Std: stats.Std[l]}
			}
			scaled := make([]float64, len(lead))
			copy(scaled, lead)
			floats.AddConst(-stats.Mean[l], scaled)
			floats.Scale(1/stats.Std[l], scaled)
			out[s][l] = scaled
		}
		if err := n.yield(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// degenerateStd reports whether std is too small relative to mean to divide
// by, or is not finite.
func degenerateStd(std, mean float64) bool {
	if math.IsNaN(std) || math.IsInf(std, 0) {
		return true
	}
	return std <= degenerateTolerance*math.Max(1, math.Abs(mean))
}

func (n *Normalizer) yield(ctx context.Context) error {
	if n.Yield == nil {
		return ctx.Err()
	}
	return n.Yield(ctx)
}
