package filter

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"

	"mibitools/internal/models"
	"mibitools/pkg/errs"
)

// LowPass smooths a channel with a Gaussian transfer function in the
// frequency domain. cutoff is the standard deviation of the Gaussian in
// cycles per pixel, in (0, 0.5]. The DC gain is 1, so total counts are kept.
func LowPass(ch models.Channel, cutoff float64) (models.Channel, error) {
	if !(cutoff > 0 && cutoff <= 0.5) {
		return models.Channel{}, errors.Wrapf(errs.ErrInvalidConfig, "low-pass cutoff must be in (0, 0.5], got %v", cutoff)
	}
	rows, cols := ch.Dims()
	if rows == 0 || cols == 0 {
		return models.Channel{}, errors.Wrapf(errs.ErrMalformedInput, "channel %q has no data", ch.Label())
	}

	spectrum := make([]complex128, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			spectrum[i*cols+j] = complex(ch.Data.At(i, j), 0)
		}
	}

	fft2D(spectrum, rows, cols, false)

	s2 := 2 * cutoff * cutoff
	for i := 0; i < rows; i++ {
		fu := frequency(i, rows)
		for j := 0; j < cols; j++ {
			fv := frequency(j, cols)
			spectrum[i*cols+j] *= complex(math.Exp(-(fu*fu+fv*fv)/s2), 0)
		}
	}

	fft2D(spectrum, rows, cols, true)

	out := mat.NewDense(rows, cols, nil)
	scale := 1 / float64(rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, real(spectrum[i*cols+j])*scale)
		}
	}
	return ch.WithData(out, ch.Label()+"_lowpass", DerivedLowPass), nil
}

// frequency returns the signed frequency in cycles per pixel of FFT index k
func frequency(k, n int) float64 {
	if k > n/2 {
		k -= n
	}
	return float64(k) / float64(n)
}

// fft2D transforms a row-major rows x cols grid in place, rows first then
// columns. The inverse is unnormalized.
func fft2D(data []complex128, rows, cols int, inverse bool) {
	rowFFT := fourier.NewCmplxFFT(cols)
	row := make([]complex128, cols)
	for i := 0; i < rows; i++ {
		copy(row, data[i*cols:(i+1)*cols])
		if inverse {
			rowFFT.Sequence(data[i*cols:(i+1)*cols], row)
		} else {
			rowFFT.Coefficients(data[i*cols:(i+1)*cols], row)
		}
	}

	colFFT := fourier.NewCmplxFFT(rows)
	col := make([]complex128, rows)
	res := make([]complex128, rows)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			col[i] = data[i*cols+j]
		}
		if inverse {
			colFFT.Sequence(res, col)
		} else {
			colFFT.Coefficients(res, col)
		}
		for i := 0; i < rows; i++ {
			data[i*cols+j] = res[i]
		}
	}
}
