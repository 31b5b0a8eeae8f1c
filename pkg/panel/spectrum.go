package panel

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"mibitools/pkg/errs"
)

// Spectrum is a time-of-flight spectrum
type Spectrum struct {
	Bins   []float64
	Counts []float64

	// MZ is empty when the file has no m/z column
	MZ []float64
}

// Total returns the summed counts
func (s *Spectrum) Total() float64 {
	return floats.Sum(s.Counts)
}

// ReadSpectrum reads a spectrum CSV indexed by bin. Counts come from the
// "counts" column, else "count", else the sum of every Depth* column.
func ReadSpectrum(path string) (*Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errs.ErrPathNotFound, "spectrum %s", path)
		}
		return nil, err
	}
	defer f.Close()

	header, rows, err := readCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "spectrum %s", path)
	}

	idx, err := columnIndex(header, "bin")
	if err != nil {
		return nil, errors.Wrapf(err, "spectrum %s", path)
	}

	var countCols []int
	if i, ok := columnOf(header, "counts"); ok {
		countCols = []int{i}
	} else if i, ok := columnOf(header, "count"); ok {
		countCols = []int{i}
	} else {
		for i, h := range header {
			if strings.Contains(h, "Depth") {
				countCols = append(countCols, i)
			}
		}
	}
	if len(countCols) == 0 {
		return nil, errors.Wrapf(errs.ErrMalformedInput, "spectrum %s has no counts, count or Depth columns", path)
	}
	mzCol, hasMZ := columnOf(header, "m/z")

	s := &Spectrum{}
	for r, row := range rows {
		bin, err := parseCell(row[idx["bin"]], r)
		if err != nil {
			return nil, errors.Wrapf(err, "spectrum %s", path)
		}

		counts := 0.0
		for _, c := range countCols {
			v, err := parseCell(row[c], r)
			if err != nil {
				return nil, errors.Wrapf(err, "spectrum %s", path)
			}
			counts += v
		}

		s.Bins = append(s.Bins, bin)
		s.Counts = append(s.Counts, counts)

		if hasMZ {
			mz, err := parseCell(row[mzCol], r)
			if err != nil {
				return nil, errors.Wrapf(err, "spectrum %s", path)
			}
			s.MZ = append(s.MZ, mz)
		}
	}
	return s, nil
}

func columnOf(header []string, name string) (int, bool) {
	for i, h := range header {
		if h == name {
			return i, true
		}
	}
	return 0, false
}

func parseCell(cell string, row int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, errors.Wrapf(errs.ErrMalformedInput, "row %d: %q is not a number", row+2, cell)
	}
	return v, nil
}
