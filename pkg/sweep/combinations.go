// Package sweep drives the MIBI/O TIFF generator over background removal
// parameter sweeps, one run per combination, and files each run's output in
// a directory named after its parameters.
package sweep

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"mibitools/internal/models"
	"mibitools/pkg/config"
	"mibitools/pkg/errs"
)

// Thresholds used in default parameter mode when none are configured
const (
	DefaultModeEventThreshold    = 0.2
	DefaultModeGoldThreshold     = 50
	DefaultModeTantalumThreshold = 20
)

// DefaultModeMethods are the methods of a default parameter run
var DefaultModeMethods = []string{models.MethodAutoEvents, models.MethodEvents, models.MethodGold, models.MethodTantalum}

// Expand produces the combinations of a sweep: the cross product of event,
// gold and tantalum thresholds, where a list is only iterated when its method
// is selected. Every combination gets a distinct directory name.
func Expand(cfg *config.Config) ([]models.Combination, error) {
	gen := cfg.Generator
	if !gen.RemoveBackground {
		return []models.Combination{{RemoveBackground: false}}, nil
	}

	methods := gen.Methods
	evs, aus, tas := gen.EventThresholds, gen.GoldThresholds, gen.TantalumThresholds
	if gen.UseDefaults {
		methods = DefaultModeMethods
		for _, l := range []struct {
			name   string
			values *[]float64
			def    float64
		}{
			{"event", &evs, DefaultModeEventThreshold},
			{"gold", &aus, DefaultModeGoldThreshold},
			{"tantalum", &tas, DefaultModeTantalumThreshold},
		} {
			switch len(*l.values) {
			case 0:
				*l.values = []float64{l.def}
			case 1:
			default:
				return nil, errors.Wrapf(errs.ErrInvalidConfig, "default parameter mode takes a single %s threshold, got %v", l.name, *l.values)
			}
		}
	}

	if len(methods) == 0 {
		return nil, errors.Wrap(errs.ErrInvalidConfig, "background removal needs at least one method")
	}
	for _, m := range methods {
		if !models.ValidMethod(m) {
			return nil, errors.Wrapf(errs.ErrInvalidConfig, "invalid background removal method %q (valid: %s)",
				m, strings.Join(models.ValidMethods, " "))
		}
	}

	evs, err := loopValues(evs, slices.Contains(methods, models.MethodEvents), "event")
	if err != nil {
		return nil, err
	}
	aus, err = loopValues(aus, slices.Contains(methods, models.MethodGold), "gold")
	if err != nil {
		return nil, err
	}
	tas, err = loopValues(tas, slices.Contains(methods, models.MethodTantalum), "tantalum")
	if err != nil {
		return nil, err
	}

	var combs []models.Combination
	seen := map[string]bool{}
	for _, ev := range evs {
		for _, au := range aus {
			for _, ta := range tas {
				c := models.Combination{
					RemoveBackground:  true,
					UseDefaults:       gen.UseDefaults,
					Methods:           slices.Clone(methods),
					EventThreshold:    ev,
					GoldThreshold:     au,
					TantalumThreshold: ta,
				}
				name := DirName(c, cfg.Naming)
				if seen[name] {
					return nil, errors.Wrapf(errs.ErrNamingCollision, "two combinations map to %s", name)
				}
				seen[name] = true
				combs = append(combs, c)
			}
		}
	}
	return combs, nil
}

// loopValues returns the thresholds to iterate: all of them for a selected
// method, else only the first. An unselected method with no thresholds gets
// the disabled value.
func loopValues(values []float64, selected bool, name string) ([]float64, error) {
	if len(values) == 0 {
		if selected {
			return nil, errors.Wrapf(errs.ErrInvalidConfig, "no %s thresholds for a selected method", name)
		}
		return []float64{config.DefaultThreshold}, nil
	}
	if !selected {
		return values[:1], nil
	}
	return values, nil
}

// DirName names the result directory of a combination, e.g. bg_au_050_ta_020
func DirName(c models.Combination, naming config.NamingConfig) string {
	prefix := naming.Prefix
	if prefix == "" {
		prefix = "bg"
	}
	if !c.RemoveBackground {
		return prefix + "_none"
	}

	var b strings.Builder
	b.WriteString(prefix)
	if c.UseDefaults {
		b.WriteString("_default")
		return b.String()
	}

	for _, flag := range []struct{ method, suffix string }{
		{models.MethodAutoEvents, "_autoevents"},
		{models.MethodAutoGold, "_autoau"},
		{models.MethodAutoTa, "_autota"},
	} {
		if c.Has(flag.method) {
			b.WriteString(flag.suffix)
		}
	}

	for _, v := range []struct {
		method, label string
		value         float64
	}{
		{models.MethodEvents, "events", c.EventThreshold},
		{models.MethodGold, "au", c.GoldThreshold},
		{models.MethodTantalum, "ta", c.TantalumThreshold},
	} {
		if c.Has(v.method) {
			fmt.Fprintf(&b, "_%s_%s", v.label, formatThreshold(v.value, naming.Width))
		}
	}
	return b.String()
}

// formatThreshold zero pads integers to width and prints anything else in
// its shortest form
func formatThreshold(v float64, width int) string {
	if width < 1 {
		width = 3
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%0*d", width, int64(v))
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
