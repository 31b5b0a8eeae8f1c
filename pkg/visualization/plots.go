package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"mibitools/internal/models"
	"mibitools/pkg/errs"
)

// DefaultOverlayColors are used when Overlay gets no colors
var DefaultOverlayColors = []color.RGBA{
	{255, 0, 0, 255},
	{0, 255, 0, 255},
	{0, 0, 255, 255},
}

// ToggleDelay is the time each frame of a toggle animation is shown, in
// hundredths of a second
const ToggleDelay = 100

// Heatmap plots one channel of a stack. An empty title is the channel label.
func Heatmap(stack *models.Stack, selector, title string, opts Options) (*Figure, error) {
	ch, err := stack.Channel(selector)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = ch.Label()
	}
	return &Figure{Panels: []Panel{{Title: title, Data: ch.Data}}, Options: opts}, nil
}

// Overlay adds two or three channels into one RGB panel, each channel scaled
// to its own clip range and tinted by its color
func Overlay(channels []models.Channel, colors []color.RGBA, opts Options) (*Figure, error) {
	if len(channels) < 2 || len(channels) > 3 {
		return nil, errors.Wrapf(errs.ErrInvalidConfig, "overlay needs 2 or 3 channels, got %d", len(channels))
	}
	if len(colors) == 0 {
		colors = DefaultOverlayColors
	}
	if len(colors) < len(channels) {
		return nil, errors.Wrapf(errs.ErrInvalidConfig, "%d colors for %d channels", len(colors), len(channels))
	}

	rows, cols := channels[0].Dims()
	labels := make([]string, len(channels))
	for i, ch := range channels {
		r, c := ch.Dims()
		if r != rows || c != cols {
			return nil, errors.Wrapf(errs.ErrShapeMismatch, "overlay of %s (%dx%d) and %s (%dx%d)",
				channels[0].Label(), cols, rows, ch.Label(), c, r)
		}
		labels[i] = ch.Label()
	}

	acc := make([][3]float64, rows*cols)
	for k, ch := range channels {
		rng := clipRange(ch.Data, opts)
		tint := colors[k]
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				t := rng.normalize(ch.Data.At(i, j), opts.Brighten)
				px := &acc[i*cols+j]
				px[0] += t * float64(tint.R)
				px[1] += t * float64(tint.G)
				px[2] += t * float64(tint.B)
			}
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			px := acc[i*cols+j]
			img.SetRGBA(j, i, color.RGBA{
				uint8(clamp(px[0], 0, 255)),
				uint8(clamp(px[1], 0, 255)),
				uint8(clamp(px[2], 0, 255)),
				255,
			})
		}
	}

	opts.Colorbar = false
	return &Figure{Panels: []Panel{{Title: strings.Join(labels, " / "), RGB: img}}, Options: opts}, nil
}

// Toggle renders two co-registered channels as a looping two-frame
// animation. Both frames share one colormap range.
func Toggle(a, b models.Channel, opts Options) (*gif.GIF, error) {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra != rb || ca != cb {
		return nil, errors.Wrapf(errs.ErrShapeMismatch, "toggle of %s (%dx%d) and %s (%dx%d)",
			a.Label(), ca, ra, b.Label(), cb, rb)
	}

	opts.SharedScale = true
	anim := &gif.GIF{}
	var shared valueRange
	for i, ch := range []models.Channel{a, b} {
		r := clipRange(ch.Data, opts)
		if i == 0 {
			shared = r
		} else {
			shared = shared.union(r)
		}
	}
	if !(opts.ClipMax > opts.ClipMin) {
		opts.ClipMin, opts.ClipMax = shared.lo, shared.hi
	}

	for _, ch := range []models.Channel{a, b} {
		fig := &Figure{Panels: []Panel{{Title: ch.Label(), Data: ch.Data}}, Options: opts}
		rgba, err := fig.Render()
		if err != nil {
			return nil, err
		}
		frame := image.NewPaletted(rgba.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(frame, rgba.Bounds(), rgba, rgba.Bounds().Min)
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, ToggleDelay)
	}
	return anim, nil
}

// GridRow is one row of a grid figure, usually one FOV
type GridRow struct {
	ID    string
	Stack *models.Stack
}

// Grid plots rows of stacks against columns of channels. Panels are brightened
// and titled "<id>: <channel> <total counts>".
func Grid(rows []GridRow, selectors []string, opts Options) (*Figure, error) {
	if len(rows) == 0 || len(selectors) == 0 {
		return nil, errors.Wrap(errs.ErrMalformedInput, "grid needs at least one row and one channel")
	}

	opts.Brighten = true
	fig := &Figure{Cols: len(selectors), Options: opts}
	for _, row := range rows {
		for _, sel := range selectors {
			ch, err := row.Stack.Channel(sel)
			if err != nil {
				return nil, errors.Wrapf(err, "row %s", row.ID)
			}
			fig.Panels = append(fig.Panels, Panel{
				Title: fmt.Sprintf("%s: %s %.2e", row.ID, ch.Label(), ch.Counts()),
				Data:  ch.Data,
			})
		}
	}
	return fig, nil
}
