// Package filter derives new channels from existing ones: denoising, low-pass
// smoothing, background masking and isobaric correction. Inputs are never
// modified.
package filter

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"mibitools/internal/models"
	"mibitools/pkg/errs"
)

// Derived transform names
const (
	DerivedMedian     = "median"
	DerivedLowPass    = "lowpass"
	DerivedBackground = "background_removed"
	DerivedIsobaric   = "isobaric"
)

// Median replaces every pixel with the median of the (2*radius+1)^2 window
// around it. Windows are clipped at the image border.
func Median(ch models.Channel, radius int) (models.Channel, error) {
	if radius < 1 {
		return models.Channel{}, errors.Wrapf(errs.ErrInvalidConfig, "median radius must be at least 1, got %d", radius)
	}
	rows, cols := ch.Dims()
	if rows == 0 || cols == 0 {
		return models.Channel{}, errors.Wrapf(errs.ErrMalformedInput, "channel %q has no data", ch.Label())
	}

	out := mat.NewDense(rows, cols, nil)
	window := make([]float64, 0, (2*radius+1)*(2*radius+1))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			window = window[:0]
			for ni := max(i-radius, 0); ni <= min(i+radius, rows-1); ni++ {
				for nj := max(j-radius, 0); nj <= min(j+radius, cols-1); nj++ {
					window = append(window, ch.Data.At(ni, nj))
				}
			}
			out.Set(i, j, median(window))
		}
	}

	return ch.WithData(out, ch.Label()+"_denoised", DerivedMedian), nil
}

// median sorts values in place
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)

	n := len(values)
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}
