package sweep

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"mibitools/internal/models"
	"mibitools/pkg/config"
	"mibitools/pkg/errs"
)

// MIBI/O generator keys. 197 and 181 are the gold and tantalum masses.
const (
	KeyMassStart     = "Generator.DefaultMassStart"
	KeyMassStop      = "Generator.DefaultMassStop"
	KeyAutoEvents    = "Generator.BackgroundRemovalAuto.events"
	KeyAutoGold      = "Generator.BackgroundRemovalAuto.197"
	KeyAutoTantalum  = "Generator.BackgroundRemovalAuto.181"
	KeyValueEvents   = "Generator.BackgroundRemovalValue.events"
	KeyValueGold     = "Generator.BackgroundRemovalValue.197"
	KeyValueTantalum = "Generator.BackgroundRemovalValue.181"
)

// UpdateGeneratorConfig rewrites the MIBI/O config file for one combination.
// Keys it does not manage are kept. Every removal method starts disabled and
// only the combination's methods are switched on.
func UpdateGeneratorConfig(path string, c models.Combination, massStart, massStop float64) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(errs.ErrMissingSource, "mibio config %s", path)
		}
		return err
	}

	doc := map[string]interface{}{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Wrapf(errs.ErrMalformedInput, "mibio config %s: %v", path, err)
	}

	doc[KeyMassStart] = massStart
	doc[KeyMassStop] = massStop

	doc[KeyAutoEvents] = false
	doc[KeyAutoGold] = false
	doc[KeyAutoTantalum] = false
	doc[KeyValueEvents] = config.DefaultThreshold
	doc[KeyValueGold] = config.DefaultThreshold
	doc[KeyValueTantalum] = config.DefaultThreshold

	if c.RemoveBackground {
		if c.Has(models.MethodAutoEvents) {
			doc[KeyAutoEvents] = true
		}
		if c.Has(models.MethodAutoGold) {
			doc[KeyAutoGold] = true
		}
		if c.Has(models.MethodAutoTa) {
			doc[KeyAutoTantalum] = true
		}
		if c.Has(models.MethodEvents) {
			doc[KeyValueEvents] = c.EventThreshold
		}
		if c.Has(models.MethodGold) {
			doc[KeyValueGold] = c.GoldThreshold
		}
		if c.Has(models.MethodTantalum) {
			doc[KeyValueTantalum] = c.TantalumThreshold
		}
	}

	out, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}
