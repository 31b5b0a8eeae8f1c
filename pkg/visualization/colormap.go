package visualization

import (
	"image/color"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"mibitools/pkg/errs"
)

// Colormap maps a normalized value in [0, 1] to a color
type Colormap func(t float64) color.RGBA

// Colormap names
const (
	ColormapAfmhot  = "afmhot"
	ColormapHot     = "hot"
	ColormapGray    = "gray"
	ColormapViridis = "viridis"
)

var colormaps = map[string]Colormap{
	ColormapAfmhot:  afmhot,
	ColormapHot:     hot,
	ColormapGray:    gray,
	ColormapViridis: viridis,
}

// LookupColormap returns the named colormap. An empty name is afmhot.
func LookupColormap(name string) (Colormap, error) {
	if name == "" {
		return afmhot, nil
	}
	cm, ok := colormaps[strings.ToLower(name)]
	if !ok {
		names := make([]string, 0, len(colormaps))
		for n := range colormaps {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, errors.Wrapf(errs.ErrInvalidConfig, "unknown colormap %q (have %s)", name, strings.Join(names, ", "))
	}
	return cm, nil
}

func channel8(v float64) uint8 {
	return uint8(math.Round(255 * unit(v)))
}

// afmhot ramps red, green and blue in turn over [0, 1] with slope 2
func afmhot(t float64) color.RGBA {
	t = unit(t)
	return color.RGBA{channel8(2 * t), channel8(2*t - 0.5), channel8(2*t - 1), 255}
}

// hot ramps red over the first third, green the second, blue the last
func hot(t float64) color.RGBA {
	t = unit(t)
	return color.RGBA{channel8(3 * t), channel8(3*t - 1), channel8(3*t - 2), 255}
}

func gray(t float64) color.RGBA {
	v := channel8(t)
	return color.RGBA{v, v, v, 255}
}

// viridis control points, interpolated linearly
var viridisStops = [][3]float64{
	{0.267, 0.005, 0.329},
	{0.283, 0.141, 0.458},
	{0.254, 0.265, 0.530},
	{0.207, 0.372, 0.553},
	{0.164, 0.471, 0.558},
	{0.128, 0.567, 0.551},
	{0.135, 0.659, 0.518},
	{0.267, 0.749, 0.441},
	{0.478, 0.821, 0.318},
	{0.741, 0.873, 0.150},
	{0.993, 0.906, 0.144},
}

func viridis(t float64) color.RGBA {
	t = unit(t)
	pos := t * float64(len(viridisStops)-1)
	i := int(pos)
	if i >= len(viridisStops)-1 {
		i = len(viridisStops) - 2
	}
	f := pos - float64(i)
	a, b := viridisStops[i], viridisStops[i+1]
	return color.RGBA{
		channel8(a[0] + f*(b[0]-a[0])),
		channel8(a[1] + f*(b[1]-a[1])),
		channel8(a[2] + f*(b[2]-a[2])),
		255,
	}
}
