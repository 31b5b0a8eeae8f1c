// Package export writes one PNG per channel for every FOV of a project.
package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"mibitools/internal/models"
	"mibitools/pkg/errs"
	"mibitools/pkg/mibitiff"
	"mibitools/pkg/panel"
	"mibitools/pkg/visualization"
)

// OutputDirName is created inside the MIBItiff directory
const OutputDirName = "PNGs"

// Options select channels and style
type Options struct {
	// Masses lists the channel masses to export. When empty every integer
	// mass from MassMin to MassMax is selected.
	Masses  []float64
	MassMin float64
	MassMax float64

	Plot visualization.Options
}

// DefaultOptions select masses 10 to 219 on a dark, brightened style
func DefaultOptions() Options {
	plot := visualization.DefaultOptions()
	plot.Brighten = true
	plot.Dark = true
	return Options{MassMin: 10, MassMax: 219, Plot: plot}
}

func (o Options) selected(mass float64) bool {
	if len(o.Masses) > 0 {
		for _, m := range o.Masses {
			if m == mass {
				return true
			}
		}
		return false
	}
	return mass == math.Trunc(mass) && mass >= o.MassMin && mass <= o.MassMax
}

// ExtractPNGs reads <inputDir>/<fov>.tiff for every FOV of the list and
// writes <inputDir>/PNGs/<fov>/<fov>_<mass>_<target>.png per selected channel.
// It refuses to run when the PNGs directory already exists.
func ExtractPNGs(fovList, inputDir string, opts Options, logger zerolog.Logger) ([]string, error) {
	fovs, err := panel.ReadFOVList(fovList)
	if err != nil {
		return nil, err
	}

	outDir := filepath.Join(inputDir, OutputDirName)
	if _, err := os.Stat(outDir); err == nil {
		return nil, errors.Wrapf(errs.ErrDestinationExists, "output folder %s exists", outDir)
	}
	logger.Info().Str("dir", outDir).Msg("creating output folder")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	var written []string
	for _, fov := range fovs {
		stack, err := mibitiff.Read(filepath.Join(inputDir, fov+".tiff"))
		if err != nil {
			return written, err
		}
		fovDir := filepath.Join(outDir, fov)
		if err := os.MkdirAll(fovDir, 0755); err != nil {
			return written, err
		}

		files, err := exportFOV(fov, stack, fovDir, opts)
		written = append(written, files...)
		if err != nil {
			return written, err
		}
		logger.Info().Str("fov", fov).Int("images", len(files)).Msg("exported FOV")
	}
	return written, nil
}

// pathSafe keeps targets such as "CD8/a" inside the FOV directory
var pathSafe = strings.NewReplacer("/", "_", "\\", "_")

func exportFOV(fov string, stack *models.Stack, dir string, opts Options) ([]string, error) {
	chs := stack.Channels()
	sort.SliceStable(chs, func(i, j int) bool { return chs[i].Mass < chs[j].Mass })

	var written []string
	for _, ch := range chs {
		if !opts.selected(ch.Mass) {
			continue
		}
		mass := models.FormatMass(ch.Mass)
		fig := &visualization.Figure{
			Panels: []visualization.Panel{{
				Title: fmt.Sprintf("%s (%s, '%s') %.2e", fov, mass, ch.Target, ch.Counts()),
				Data:  ch.Data,
			}},
			Options: opts.Plot,
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_%s_%s.png", fov, mass, pathSafe.Replace(ch.Target)))
		if err := fig.Save(path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
