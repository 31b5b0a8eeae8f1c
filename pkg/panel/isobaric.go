package panel

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"mibitools/pkg/errs"
)

// Correction describes mass-overlap contamination of a recipient channel by a
// donor channel
type Correction struct {
	RecipientMass float64
	DonorMass     float64

	// Coefficient is the fraction of donor counts to remove, 1 when absent
	Coefficient float64
}

type correctionJSON struct {
	RecipientMass *float64 `json:"RecipientMass"`
	DonorMass     *float64 `json:"DonorMass"`
	Coefficient   *float64 `json:"Coefficient"`
}

// ReadIsobaricCorrections reads the isobaric corrections file written by MIBI/O
func ReadIsobaricCorrections(path string) ([]Correction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errs.ErrPathNotFound, "isobaric corrections %s", path)
		}
		return nil, err
	}

	var raw []correctionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(errs.ErrMalformedInput, "isobaric corrections %s: %v", path, err)
	}

	result := make([]Correction, 0, len(raw))
	for i, c := range raw {
		if c.RecipientMass == nil || c.DonorMass == nil {
			return nil, errors.Wrapf(errs.ErrMalformedInput, "isobaric corrections %s: entry %d needs RecipientMass and DonorMass", path, i)
		}
		corr := Correction{RecipientMass: *c.RecipientMass, DonorMass: *c.DonorMass, Coefficient: 1}
		if c.Coefficient != nil {
			corr.Coefficient = *c.Coefficient
		}
		result = append(result, corr)
	}
	return result, nil
}

// DonorMap groups corrections as recipient mass -> donor masses. When masses is
// not empty the map has exactly those keys, with empty lists for masses that
// receive no correction.
func DonorMap(corrections []Correction, masses []float64) map[float64][]float64 {
	all := map[float64][]float64{}
	for _, c := range corrections {
		all[c.RecipientMass] = append(all[c.RecipientMass], c.DonorMass)
	}
	if len(masses) == 0 {
		return all
	}

	selected := make(map[float64][]float64, len(masses))
	for _, m := range masses {
		donors, ok := all[m]
		if !ok {
			donors = []float64{}
		}
		selected[m] = donors
	}
	return selected
}
