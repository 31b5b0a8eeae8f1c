// Package visualization renders MIBItiff channels as heatmaps, overlays and
// multi-panel grids.
package visualization

import (
	"fmt"
	"image"
	"image/color"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/mat"

	"mibitools/pkg/config"
	"mibitools/pkg/errs"
)

// Layout in pixels
const (
	margin        = 8
	titleHeight   = 20
	colorbarWidth = 12
	charWidth     = 7
	lineHeight    = 13
)

// ColorbarLabel is printed under every colorbar
const ColorbarLabel = "counts"

// Options control how panels are scaled and drawn
type Options struct {
	// Colormap name, afmhot when empty
	Colormap string

	// ClipMin and ClipMax give absolute bounds, used when ClipMax > ClipMin
	ClipMin float64
	ClipMax float64

	// ClipPercentile caps the upper bound at this percentile of the data
	ClipPercentile float64

	// Brighten applies a gamma of 1/2. Brightened panels have no colorbar.
	Brighten bool

	// HiRes doubles the rendered size
	HiRes bool

	// PanelSize is the length in pixels of the longer side of each panel,
	// 0 keeps the image size
	PanelSize int

	// Dark draws on a black background with white text
	Dark bool

	// SharedScale uses one colormap range across every panel of a figure
	SharedScale bool

	// Colorbar draws a colorbar next to heatmap panels
	Colorbar bool
}

// DefaultOptions returns afmhot with a colorbar
func DefaultOptions() Options {
	return Options{Colormap: ColormapAfmhot, Colorbar: true}
}

func (o Options) background() color.RGBA {
	if o.Dark {
		return color.RGBA{0, 0, 0, 255}
	}
	return color.RGBA{255, 255, 255, 255}
}

func (o Options) foreground() color.RGBA {
	if o.Dark {
		return color.RGBA{255, 255, 255, 255}
	}
	return color.RGBA{0, 0, 0, 255}
}

// Panel is one cell of a figure. Exactly one of Data and RGB is set: Data is
// colormapped, RGB is drawn as is.
type Panel struct {
	Title string
	Data  *mat.Dense
	RGB   *image.RGBA
}

// Figure is a grid of panels drawn with shared options
type Figure struct {
	Panels []Panel

	// Cols is the number of panels per row, all in one row when 0
	Cols int

	Options Options
}

// Render draws the figure
func (f *Figure) Render() (*image.RGBA, error) {
	if len(f.Panels) == 0 {
		return nil, errors.Wrap(errs.ErrMalformedInput, "figure has no panels")
	}
	cmap, err := LookupColormap(f.Options.Colormap)
	if err != nil {
		return nil, err
	}

	ranges := make([]valueRange, len(f.Panels))
	haveRange := false
	var shared valueRange
	for i, p := range f.Panels {
		if p.Data == nil {
			continue
		}
		ranges[i] = clipRange(p.Data, f.Options)
		if !haveRange {
			shared = ranges[i]
			haveRange = true
		} else {
			shared = shared.union(ranges[i])
		}
	}
	if f.Options.SharedScale {
		for i := range ranges {
			ranges[i] = shared
		}
	}

	images := make([]*image.RGBA, len(f.Panels))
	cellW, cellH := 0, 0
	for i, p := range f.Panels {
		var src *image.RGBA
		switch {
		case p.Data != nil:
			src = colorize(p.Data, ranges[i], cmap, f.Options.Brighten)
		case p.RGB != nil:
			src = p.RGB
		default:
			return nil, errors.Wrapf(errs.ErrMalformedInput, "panel %d has no image", i)
		}
		images[i] = resize(src, f.Options)
		w, h := images[i].Bounds().Dx(), images[i].Bounds().Dy()
		cellW = max(cellW, w, len(p.Title)*charWidth)
		cellH = max(cellH, h)
	}

	withBar := f.Options.Colorbar && !f.Options.Brighten
	barArea := 0
	if withBar {
		barArea = colorbarWidth + 4 + charWidth*max(len(ColorbarLabel), 9)
	}

	cols := f.Cols
	if cols <= 0 || cols > len(f.Panels) {
		cols = len(f.Panels)
	}
	rows := (len(f.Panels) + cols - 1) / cols

	stepX := cellW + barArea + margin
	stepY := cellH + titleHeight + margin
	out := image.NewRGBA(image.Rect(0, 0, margin+cols*stepX, margin+rows*stepY))
	draw.Draw(out, out.Bounds(), image.NewUniform(f.Options.background()), image.Point{}, draw.Src)

	for i, p := range f.Panels {
		x := margin + (i%cols)*stepX
		y := margin + (i/cols)*stepY

		drawText(out, x, y+lineHeight, p.Title, f.Options.foreground())
		img := images[i]
		at := image.Pt(x, y+titleHeight)
		draw.Draw(out, img.Bounds().Sub(img.Bounds().Min).Add(at), img, img.Bounds().Min, draw.Src)

		if withBar && p.Data != nil {
			drawColorbar(out, x+img.Bounds().Dx()+4, y+titleHeight, img.Bounds().Dy(), ranges[i], cmap, f.Options.foreground())
		}
	}
	return out, nil
}

// colorize maps counts through the colormap, one pixel per matrix element
func colorize(data *mat.Dense, r valueRange, cmap Colormap, brighten bool) *image.RGBA {
	rows, cols := data.Dims()
	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			img.SetRGBA(j, i, cmap(r.normalize(data.At(i, j), brighten)))
		}
	}
	return img
}

// resize scales to the requested panel size, then doubles for hi-res output
func resize(src *image.RGBA, opts Options) *image.RGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	tw, th := w, h
	if opts.PanelSize > 0 {
		longer := max(w, h)
		tw = max(1, w*opts.PanelSize/longer)
		th = max(1, h*opts.PanelSize/longer)
	}
	if opts.HiRes {
		tw, th = 2*tw, 2*th
	}
	if tw == w && th == h {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func drawColorbar(dst *image.RGBA, x, y, height int, r valueRange, cmap Colormap, fg color.RGBA) {
	for row := 0; row < height; row++ {
		t := 1 - float64(row)/float64(max(height-1, 1))
		c := cmap(t)
		for col := 0; col < colorbarWidth; col++ {
			dst.SetRGBA(x+col, y+row, c)
		}
	}

	textX := x + colorbarWidth + 4
	drawText(dst, textX, y+lineHeight, fmt.Sprintf("%.3g", r.hi), fg)
	drawText(dst, textX, y+height, fmt.Sprintf("%.3g", r.lo), fg)
	drawText(dst, textX, y+height/2+lineHeight/2, ColorbarLabel, fg)
}

// drawText draws s with its baseline at y
func drawText(dst *image.RGBA, x, y int, s string, col color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(s)
}

// OptionsFromConfig maps the plot section of the configuration
func OptionsFromConfig(p config.PlotConfig) Options {
	return Options{
		Colormap:       p.Colormap,
		ClipPercentile: p.ClipPercentile,
		Brighten:       p.Brighten,
		HiRes:          p.HiRes,
		PanelSize:      p.PanelSize,
		Dark:           p.Dark,
		SharedScale:    p.SharedScale,
		Colorbar:       p.Colorbar,
	}
}
