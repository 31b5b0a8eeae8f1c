package visualization

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"mibitools/internal/models"
	"mibitools/pkg/errs"
	"mibitools/pkg/panel"
)

func createChannel(mass float64, target string, rows, cols int) models.Channel {
	data := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			data.Set(r, c, float64(r+c))
		}
	}
	return models.Channel{Mass: mass, Target: target, Data: data}
}

func createScenarioStack(t *testing.T) *models.Stack {
	t.Helper()
	stack, err := models.NewStack(nil, []models.Channel{
		createChannel(197, "Au", 512, 512),
		createChannel(181, "Ta", 512, 512),
		createChannel(89, "dsDNA", 512, 512),
	})
	if err != nil {
		t.Fatalf("Failed to create stack: %v", err)
	}
	return stack
}

// TestHeatmapScenario verifies that a present channel plots and an absent one fails
func TestHeatmapScenario(t *testing.T) {
	stack := createScenarioStack(t)

	fig, err := Heatmap(stack, "Ta", "", DefaultOptions())
	if err != nil {
		t.Fatalf("Heatmap failed: %v", err)
	}
	if len(fig.Panels) != 1 {
		t.Fatalf("Expected 1 panel, got %d", len(fig.Panels))
	}
	if fig.Panels[0].Title != "Ta" {
		t.Errorf("Expected title Ta, got %s", fig.Panels[0].Title)
	}
	img, err := fig.Render()
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if img.Bounds().Dx() < 512 || img.Bounds().Dy() < 512 {
		t.Errorf("Expected at least 512x512, got %v", img.Bounds())
	}

	if _, err := Heatmap(stack, "Background", "", DefaultOptions()); !errors.Is(err, errs.ErrChannelNotFound) {
		t.Errorf("Expected ErrChannelNotFound, got %v", err)
	}
}

func TestOverlayShapeMismatch(t *testing.T) {
	a := createChannel(89, "dsDNA", 4, 4)
	b := createChannel(113, "CD45", 4, 5)

	if _, err := Overlay([]models.Channel{a, b}, nil, DefaultOptions()); !errors.Is(err, errs.ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch, got %v", err)
	}
	if _, err := Toggle(a, b, DefaultOptions()); !errors.Is(err, errs.ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch from toggle, got %v", err)
	}
	if _, err := Overlay([]models.Channel{a}, nil, DefaultOptions()); !errors.Is(err, errs.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for a single channel, got %v", err)
	}
}

// TestOverlayColors verifies that channels are added into their own color
func TestOverlayColors(t *testing.T) {
	a := createChannel(89, "dsDNA", 3, 3)
	b := createChannel(113, "CD45", 3, 3)

	fig, err := Overlay([]models.Channel{a, b}, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	rgb := fig.Panels[0].RGB
	if got := rgb.RGBAAt(2, 2); got != (color.RGBA{255, 255, 0, 255}) {
		t.Errorf("Expected yellow at the maximum, got %v", got)
	}
	if got := rgb.RGBAAt(0, 0); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("Expected black at the minimum, got %v", got)
	}
	if fig.Panels[0].Title != "dsDNA / CD45" {
		t.Errorf("Expected combined title, got %s", fig.Panels[0].Title)
	}
}

func TestToggle(t *testing.T) {
	a := createChannel(89, "dsDNA", 8, 8)
	b := createChannel(113, "CD45", 8, 8)

	anim, err := Toggle(a, b, DefaultOptions())
	if err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if len(anim.Image) != 2 || len(anim.Delay) != 2 {
		t.Errorf("Expected 2 frames, got %d", len(anim.Image))
	}

	path := filepath.Join(t.TempDir(), "toggle.gif")
	if err := SaveGIF(path, anim); err != nil {
		t.Fatalf("SaveGIF failed: %v", err)
	}
}

func TestGrid(t *testing.T) {
	stack := createScenarioStack(t)
	small, err := stack.Crop(image.Rect(0, 0, 16, 16))
	if err != nil {
		t.Fatal(err)
	}

	fig, err := Grid([]GridRow{{ID: "Point1", Stack: small}, {ID: "Point2", Stack: small}}, []string{"Au", "dsDNA"}, DefaultOptions())
	if err != nil {
		t.Fatalf("Grid failed: %v", err)
	}
	if len(fig.Panels) != 4 || fig.Cols != 2 {
		t.Fatalf("Expected 2x2 panels, got %d panels in %d columns", len(fig.Panels), fig.Cols)
	}
	if got := fig.Panels[1].Title; got != "Point1: dsDNA 3.84e+03" {
		t.Errorf("Unexpected title %q", got)
	}
	if !fig.Options.Brighten {
		t.Error("Expected grid panels to be brightened")
	}

	if _, err := Grid([]GridRow{{ID: "Point1", Stack: small}}, []string{"Background"}, DefaultOptions()); !errors.Is(err, errs.ErrChannelNotFound) {
		t.Errorf("Expected ErrChannelNotFound, got %v", err)
	}
}

func TestClipRange(t *testing.T) {
	data := mat.NewDense(1, 100, nil)
	for i := 0; i < 100; i++ {
		data.Set(0, i, float64(i+1))
	}

	r := clipRange(data, Options{})
	if r.lo != 1 || r.hi != 100 {
		t.Errorf("Expected [1, 100], got [%v, %v]", r.lo, r.hi)
	}
	r = clipRange(data, Options{ClipPercentile: 50})
	if r.hi != 50 {
		t.Errorf("Expected upper bound 50, got %v", r.hi)
	}
	r = clipRange(data, Options{ClipMin: 5, ClipMax: 10, ClipPercentile: 90})
	if r.lo != 5 || r.hi != 10 {
		t.Errorf("Expected absolute bounds [5, 10], got [%v, %v]", r.lo, r.hi)
	}

	if got := r.normalize(7.5, false); got != 0.5 {
		t.Errorf("Expected 0.5, got %v", got)
	}
	if got := (valueRange{0, 4}).normalize(1, true); got != 0.5 {
		t.Errorf("Expected brightened 0.5, got %v", got)
	}
	// square root of the counts first, then min-max
	if got := (valueRange{4, 16}).normalize(9, true); got != 0.5 {
		t.Errorf("Expected brightened 0.5 with a non-zero minimum, got %v", got)
	}
}

func TestNonFinitePixels(t *testing.T) {
	data := mat.NewDense(4, 4, nil)
	data.Set(0, 0, math.NaN())
	data.Set(0, 1, math.Inf(1))
	data.Set(3, 3, 15)

	r := clipRange(data, Options{})
	if r.lo != 0 || r.hi != 15 {
		t.Errorf("Expected [0, 15], got [%v, %v]", r.lo, r.hi)
	}

	for _, name := range []string{ColormapAfmhot, ColormapHot, ColormapGray, ColormapViridis} {
		cm, err := LookupColormap(name)
		if err != nil {
			t.Fatalf("LookupColormap(%s) failed: %v", name, err)
		}
		for _, brighten := range []bool{false, true} {
			img := colorize(data, r, cm, brighten)
			if got := img.RGBAAt(3, 3); got != cm(1) {
				t.Errorf("%s: expected max pixel %v, got %v", name, cm(1), got)
			}
			if got := img.RGBAAt(0, 0); got != cm(0) {
				t.Errorf("%s: expected NaN pixel %v, got %v", name, cm(0), got)
			}
		}
		if got := cm(math.NaN()); got != cm(0) {
			t.Errorf("%s: expected NaN to map like 0, got %v", name, got)
		}

		stack, err := models.NewStack(nil, []models.Channel{{Mass: 89, Target: "dsDNA", Data: data}})
		if err != nil {
			t.Fatalf("Failed to create stack: %v", err)
		}
		opts := DefaultOptions()
		opts.Colormap = name
		fig, err := Heatmap(stack, "dsDNA", "", opts)
		if err != nil {
			t.Fatalf("Heatmap failed: %v", err)
		}
		if _, err := fig.Render(); err != nil {
			t.Errorf("%s: Render failed: %v", name, err)
		}
	}
}

func TestColormaps(t *testing.T) {
	for _, name := range []string{ColormapAfmhot, ColormapHot, ColormapGray, ColormapViridis} {
		cm, err := LookupColormap(name)
		if err != nil {
			t.Fatalf("LookupColormap(%s) failed: %v", name, err)
		}
		lo, hi := cm(0), cm(1)
		if int(lo.R)+int(lo.G)+int(lo.B) >= int(hi.R)+int(hi.G)+int(hi.B) {
			t.Errorf("%s: expected 0 to be darker than 1, got %v and %v", name, lo, hi)
		}
	}
	if got := afmhot(1); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("Expected afmhot(1) to be white, got %v", got)
	}
	if _, err := LookupColormap("jet"); !errors.Is(err, errs.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

// TestSave verifies PNG output and the hi-res and panel size options
func TestSave(t *testing.T) {
	stack := createScenarioStack(t)
	small, _ := stack.Crop(image.Rect(0, 0, 10, 20))

	fig, err := Heatmap(small, "Au", "", Options{PanelSize: 40, HiRes: true})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out", "Au.png")
	if err := fig.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Saved file is not a PNG: %v", err)
	}
	// 20 rows scale to 40, then double
	if h := img.Bounds().Dy(); h != 2*margin+titleHeight+80 {
		t.Errorf("Expected height %d, got %d", 2*margin+titleHeight+80, h)
	}

	if err := fig.Save(filepath.Join(t.TempDir(), "Au.bmp")); !errors.Is(err, errs.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for bmp, got %v", err)
	}
}

func TestPlotSpectrum(t *testing.T) {
	s := &panel.Spectrum{Bins: []float64{1, 2, 3, 4}, Counts: []float64{5, 9, 2, 7}}

	data, err := PlotSpectrum(s, false, "Point1", DefaultOptions())
	if err != nil {
		t.Fatalf("PlotSpectrum failed: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("Expected PNG output: %v", err)
	}

	if _, err := PlotSpectrum(s, true, "Point1", DefaultOptions()); !errors.Is(err, errs.ErrMalformedInput) {
		t.Errorf("Expected ErrMalformedInput without m/z, got %v", err)
	}
}
