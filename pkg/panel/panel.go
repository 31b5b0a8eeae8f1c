// Package panel reads the ancillary files that accompany MIBI runs: the
// antibody panel, isobaric corrections and spectra.
package panel

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"mibitools/internal/models"
	"mibitools/pkg/errs"
)

// Required panel columns
const (
	ColMass    = "Mass"
	ColTarget  = "Target"
	ColElement = "Element"
)

// xenonMass is the mass of the Xe128 channel, whose Element is usually empty
const xenonMass = 128

// Entry is one row of a panel
type Entry struct {
	Mass    float64
	Target  string
	Element string
}

// Panel is the ordered list of channels measured in a run
type Panel struct {
	Entries []Entry
}

// ReadPanel reads a panel CSV. With anonymize set every target is replaced by
// Element+Mass (Au197) so that plots do not reveal the antibodies used.
func ReadPanel(path string, anonymize bool) (*Panel, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errs.ErrPathNotFound, "panel %s", path)
		}
		return nil, err
	}
	defer f.Close()

	p, err := ParsePanel(f, anonymize)
	if err != nil {
		return nil, errors.Wrapf(err, "panel %s", path)
	}
	return p, nil
}

// ParsePanel reads panel CSV data
func ParsePanel(r io.Reader, anonymize bool) (*Panel, error) {
	header, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}

	idx, err := columnIndex(header, ColMass, ColTarget, ColElement)
	if err != nil {
		return nil, errors.Wrap(err, "panel format not understood")
	}

	p := &Panel{}
	for i, row := range rows {
		mass, err := strconv.ParseFloat(strings.TrimSpace(row[idx[ColMass]]), 64)
		if err != nil {
			return nil, errors.Wrapf(errs.ErrMalformedInput, "row %d: bad mass %q", i+2, row[idx[ColMass]])
		}
		p.Entries = append(p.Entries, Entry{
			Mass:    mass,
			Target:  strings.TrimSpace(row[idx[ColTarget]]),
			Element: strings.TrimSpace(row[idx[ColElement]]),
		})
	}

	if anonymize {
		if err := p.anonymize(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Panel) anonymize() error {
	for i := range p.Entries {
		e := &p.Entries[i]
		if e.Mass == xenonMass && e.Target == "Xe128" && e.Element == "" {
			e.Element = "Xe"
		}
	}

	for i := range p.Entries {
		e := &p.Entries[i]
		if e.Element == "" {
			return errors.Wrapf(errs.ErrMalformedInput, "cannot anonymize %q: no element for mass %s",
				e.Target, models.FormatMass(e.Mass))
		}
		e.Target = e.Element + models.FormatMass(e.Mass)
	}
	return nil
}

// Target returns the target measured at mass
func (p *Panel) Target(mass float64) (string, bool) {
	for _, e := range p.Entries {
		if e.Mass == mass {
			return e.Target, true
		}
	}
	return "", false
}

// TargetsForMasses maps each mass to its panel target
func (p *Panel) TargetsForMasses(masses []float64) ([]string, error) {
	targets := make([]string, len(masses))
	for i, m := range masses {
		t, ok := p.Target(m)
		if !ok {
			return nil, errors.Wrapf(errs.ErrChannelNotFound, "mass %s is not in the panel", models.FormatMass(m))
		}
		targets[i] = t
	}
	return targets, nil
}

// readCSV returns the header and the data rows of a CSV
func readCSV(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrap(errs.ErrMalformedInput, err.Error())
	}
	if len(records) == 0 {
		return nil, nil, errors.Wrap(errs.ErrMalformedInput, "empty CSV")
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := records[1:]
	for i, row := range rows {
		if len(row) < len(header) {
			return nil, nil, errors.Wrapf(errs.ErrMalformedInput, "row %d has %d fields, header has %d", i+2, len(row), len(header))
		}
	}
	return header, rows, nil
}

func columnIndex(header []string, names ...string) (map[string]int, error) {
	idx := map[string]int{}
	for i, h := range header {
		idx[h] = i
	}

	var missing []string
	for _, n := range names {
		if _, ok := idx[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Wrapf(errs.ErrMalformedInput, "missing columns %s", strings.Join(missing, ", "))
	}
	return idx, nil
}
