package visualization

import (
	"math"
	"sort"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// valueRange is the count interval mapped onto the colormap
type valueRange struct {
	lo, hi float64
}

func (r valueRange) union(o valueRange) valueRange {
	return valueRange{math.Min(r.lo, o.lo), math.Max(r.hi, o.hi)}
}

// normalize maps v into [0, 1]. Brightening takes the square root of the
// counts and of both bounds before scaling. Non-finite values map to 0.
func (r valueRange) normalize(v float64, brighten bool) float64 {
	if !finite(v) {
		return 0
	}
	lo, hi := r.lo, r.hi
	if brighten {
		v, lo, hi = root(v), root(lo), root(hi)
	}
	if hi <= lo {
		return 0
	}
	return clamp((v-lo)/(hi-lo), 0, 1)
}

func root(v float64) float64 {
	return math.Sqrt(math.Max(v, 0))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// unit clamps t to [0, 1], sending NaN to 0
func unit(t float64) float64 {
	if math.IsNaN(t) {
		return 0
	}
	return clamp(t, 0, 1)
}

// clipRange computes the colormap range of data. Absolute bounds win over
// the percentile, which only moves the upper bound. Non-finite pixels are
// left out.
func clipRange(data *mat.Dense, opts Options) valueRange {
	if opts.ClipMax > opts.ClipMin {
		return valueRange{opts.ClipMin, opts.ClipMax}
	}

	rows, cols := data.Dims()
	values := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := data.At(i, j); finite(v) {
				values = append(values, v)
			}
		}
	}
	sort.Float64s(values)
	if len(values) == 0 {
		return valueRange{}
	}

	r := valueRange{values[0], values[len(values)-1]}
	if opts.ClipPercentile > 0 && opts.ClipPercentile < 100 {
		r.hi = stat.Quantile(opts.ClipPercentile/100, stat.Empirical, values, nil)
	}
	return r
}
