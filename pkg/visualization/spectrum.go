package visualization

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"mibitools/pkg/errs"
	"mibitools/pkg/panel"
)

// Spectrum plot size in pixels
const (
	SpectrumWidth  = 1024
	SpectrumHeight = 400
)

// PlotSpectrum draws counts against TOF bin, or against m/z when byMass is
// set, and returns PNG bytes
func PlotSpectrum(s *panel.Spectrum, byMass bool, title string, opts Options) ([]byte, error) {
	if len(s.Counts) < 2 {
		return nil, errors.Wrap(errs.ErrMalformedInput, "spectrum needs at least two points")
	}

	xs, xName := s.Bins, "TOF bin"
	if byMass {
		if len(s.MZ) != len(s.Counts) {
			return nil, errors.Wrap(errs.ErrMalformedInput, "spectrum has no m/z column")
		}
		xs, xName = s.MZ, "m/z"
	}

	fg, bg := drawing.ColorBlack, drawing.ColorWhite
	if opts.Dark {
		fg, bg = drawing.ColorWhite, drawing.ColorBlack
	}
	axisStyle := chart.Style{FontSize: 10.0, FontColor: fg, StrokeColor: fg}

	graph := chart.Chart{
		Title:      title,
		TitleStyle: chart.Style{FontColor: fg},
		Width:      SpectrumWidth,
		Height:     SpectrumHeight,
		Background: chart.Style{FillColor: bg},
		Canvas:     chart.Style{FillColor: bg},
		XAxis: chart.XAxis{
			Name:      xName,
			NameStyle: chart.Style{FontColor: fg},
			Style:     axisStyle,
		},
		YAxis: chart.YAxis{
			Name:      ColorbarLabel,
			NameStyle: chart.Style{FontColor: fg},
			Style:     axisStyle,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    title,
				XValues: xs,
				YValues: s.Counts,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 1.0},
			},
		},
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, errors.Wrap(err, "render spectrum")
	}
	return buffer.Bytes(), nil
}
