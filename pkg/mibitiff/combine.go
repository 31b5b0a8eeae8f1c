package mibitiff

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"

	"mibitools/internal/models"
	"mibitools/pkg/errs"
	"mibitools/pkg/panel"
)

// Combine builds a stack from a directory of single channel TIFs, one per
// panel target, named <Target>.tif or <Target>.tiff. This is the layout the
// MATLAB extraction pipeline produces.
func Combine(dir string, p *panel.Panel, meta map[string]string) (*models.Stack, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, errors.Wrapf(errs.ErrPathNotFound, "%s", dir)
	}

	channels := make([]models.Channel, 0, len(p.Entries))
	for _, e := range p.Entries {
		path, err := findChannelFile(dir, e.Target)
		if err != nil {
			return nil, err
		}

		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		img, err := tiff.Decode(f)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(errs.ErrMalformedInput, "%s: %v", path, err)
		}

		channels = append(channels, models.Channel{
			Mass:   e.Mass,
			Target: e.Target,
			Data:   ImageToDense(img),
		})
	}
	return models.NewStack(meta, channels)
}

func findChannelFile(dir, target string) (string, error) {
	for _, ext := range []string{".tif", ".tiff"} {
		path := filepath.Join(dir, target+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.Wrapf(errs.ErrMissingSource, "no TIF for target %q in %s", target, dir)
}
