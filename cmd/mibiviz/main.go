package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"mibitools/internal/models"
	"mibitools/pkg/config"
	"mibitools/pkg/errs"
	"mibitools/pkg/filter"
	"mibitools/pkg/logging"
	"mibitools/pkg/mibitiff"
	"mibitools/pkg/panel"
	"mibitools/pkg/visualization"
)

type options struct {
	mode        string
	inputs      []string
	channels    []string
	output      string
	title       string
	panelPath   string
	isobaric    string
	denoise     int
	lowpass     float64
	crop        string
	bgChannel   string
	bgThreshold float64
	byMass      bool
}

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "mibitools.yaml", "Configuration file (.yaml or .toml)")
	mode := flag.String("mode", "heatmap", "heatmap, overlay, grid, toggle, spectrum, info or combine")
	input := flag.String("input", "", "MIBItiff file; comma separated files for grid; TIF directory for combine; CSV for spectrum")
	channels := flag.String("channels", "", "Comma separated channel selectors (target, mass or Target(mass))")
	output := flag.String("output", "", "Output image (.png, .jpg, .gif for toggle, .tiff for combine)")
	title := flag.String("title", "", "Figure title")
	panelPath := flag.String("panel", "", "Panel CSV, required for combine")
	isobaric := flag.String("isobaric", "", "Isobaric corrections JSON applied before plotting")
	denoise := flag.Int("denoise", 0, "Median denoise radius in pixels (0 = off)")
	lowpass := flag.Float64("lowpass", 0, "Gaussian low-pass cutoff in cycles per pixel (0 = off)")
	crop := flag.String("crop", "", "Crop rectangle x0,y0,x1,y1 in pixels")
	bgChannel := flag.String("bg-channel", "", "Preview background removal using this channel")
	bgThreshold := flag.Float64("bg-threshold", 0, "Counts at or above which background is removed")
	byMass := flag.Bool("by-mass", false, "Plot spectrum against m/z instead of TOF bin")
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.InitLogger("mibiviz", cfg.Output.Verbose, cfg.Output.LogLevel)

	opts := options{
		mode:        strings.ToLower(*mode),
		inputs:      splitList(*input),
		channels:    splitList(*channels),
		output:      *output,
		title:       *title,
		panelPath:   *panelPath,
		isobaric:    *isobaric,
		denoise:     *denoise,
		lowpass:     *lowpass,
		crop:        *crop,
		bgChannel:   *bgChannel,
		bgThreshold: *bgThreshold,
		byMass:      *byMass,
	}
	if err := run(cfg, opts, logger); err != nil {
		logger.Fatal().Err(err).Str("mode", opts.mode).Msg("mibiviz failed")
	}
}

func run(cfg *config.Config, o options, logger zerolog.Logger) error {
	plot := visualization.OptionsFromConfig(cfg.Plot)

	switch o.mode {
	case "combine":
		return combine(o, logger)
	case "spectrum":
		s, err := panel.ReadSpectrum(o.inputs[0])
		if err != nil {
			return err
		}
		data, err := visualization.PlotSpectrum(s, o.byMass, titleOr(o.title, filepath.Base(o.inputs[0])), plot)
		if err != nil {
			return err
		}
		out := outputPath(cfg, o, "spectrum.png")
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return err
		}
		logger.Info().Str("file", out).Float64("total", s.Total()).Msg("saved spectrum")
		return nil
	}

	if o.mode == "grid" {
		rows := make([]visualization.GridRow, 0, len(o.inputs))
		var selectors []string
		for _, in := range o.inputs {
			stack, sel, err := loadStack(in, o, logger)
			if err != nil {
				return err
			}
			selectors = sel
			rows = append(rows, visualization.GridRow{ID: stem(in), Stack: stack})
		}
		fig, err := visualization.Grid(rows, selectors, plot)
		if err != nil {
			return err
		}
		return save(fig, outputPath(cfg, o, "grid."+cfg.Plot.Format), logger)
	}

	stack, selectors, err := loadStack(o.inputs[0], o, logger)
	if err != nil {
		return err
	}

	switch o.mode {
	case "info":
		printInfo(o.inputs[0], stack)
		return printPanelInfo(o, stack)

	case "heatmap":
		selector := firstOr(selectors, stack.Labels()[0])
		fig, err := visualization.Heatmap(stack, selector, o.title, plot)
		if err != nil {
			return err
		}
		return save(fig, outputPath(cfg, o, selector+"."+cfg.Plot.Format), logger)

	case "overlay":
		chs, err := lookup(stack, selectors)
		if err != nil {
			return err
		}
		fig, err := visualization.Overlay(chs, nil, plot)
		if err != nil {
			return err
		}
		if o.title != "" {
			fig.Panels[0].Title = o.title
		}
		return save(fig, outputPath(cfg, o, "overlay."+cfg.Plot.Format), logger)

	case "toggle":
		chs, err := lookup(stack, selectors)
		if err != nil {
			return err
		}
		if len(chs) != 2 {
			return errors.Wrapf(errs.ErrInvalidConfig, "toggle needs exactly 2 channels, got %d", len(chs))
		}
		anim, err := visualization.Toggle(chs[0], chs[1], plot)
		if err != nil {
			return err
		}
		out := outputPath(cfg, o, "toggle.gif")
		if err := visualization.SaveGIF(out, anim); err != nil {
			return err
		}
		logger.Info().Str("file", out).Msg("saved toggle animation")
		return nil
	}

	return errors.Wrapf(errs.ErrInvalidConfig, "unknown mode %q", o.mode)
}

// loadStack reads a MIBItiff and applies the requested transforms. The
// returned selectors name the derived channels in place of the originals.
func loadStack(path string, o options, logger zerolog.Logger) (*models.Stack, []string, error) {
	stack, err := mibitiff.Read(path)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug().Str("file", path).Int("channels", stack.Len()).Msg("read stack")

	if o.crop != "" {
		r, err := parseRect(o.crop)
		if err != nil {
			return nil, nil, err
		}
		if stack, err = stack.Crop(r); err != nil {
			return nil, nil, err
		}
	}

	if o.isobaric != "" {
		corrections, err := panel.ReadIsobaricCorrections(o.isobaric)
		if err != nil {
			return nil, nil, err
		}
		if stack, err = filter.ApplyIsobaric(stack, corrections); err != nil {
			return nil, nil, err
		}
	}

	if o.bgChannel != "" {
		if stack, err = filter.BackgroundMask(stack, o.bgChannel, o.bgThreshold); err != nil {
			return nil, nil, err
		}
	}

	selectors := append([]string(nil), o.channels...)
	if o.denoise <= 0 && o.lowpass <= 0 {
		return stack, selectors, nil
	}

	if len(selectors) == 0 {
		selectors = stack.Labels()
	}
	derived := make([]models.Channel, 0, len(selectors))
	for i, sel := range selectors {
		ch, err := stack.Channel(sel)
		if err != nil {
			return nil, nil, err
		}
		if o.denoise > 0 {
			if ch, err = filter.Median(ch, o.denoise); err != nil {
				return nil, nil, err
			}
		}
		if o.lowpass > 0 {
			if ch, err = filter.LowPass(ch, o.lowpass); err != nil {
				return nil, nil, err
			}
		}
		derived = append(derived, ch)
		selectors[i] = ch.Label()
	}
	if stack, err = stack.With(derived...); err != nil {
		return nil, nil, err
	}
	return stack, selectors, nil
}

func combine(o options, logger zerolog.Logger) error {
	if o.panelPath == "" {
		return errors.Wrap(errs.ErrInvalidConfig, "combine needs -panel")
	}
	p, err := panel.ReadPanel(o.panelPath, false)
	if err != nil {
		return err
	}
	stack, err := mibitiff.Combine(o.inputs[0], p, nil)
	if err != nil {
		return err
	}

	out := o.output
	if out == "" {
		out = filepath.Join(o.inputs[0], "combined.tiff")
	}
	if err := mibitiff.WriteFile(out, stack, mibitiff.WriteOptions{}); err != nil {
		return err
	}
	logger.Info().Str("file", out).Int("channels", stack.Len()).Msg("combined single channel TIFs")
	return nil
}

func printInfo(path string, stack *models.Stack) {
	rows, cols := stack.Dims()
	fmt.Printf("%s: %d channels, %dx%d\n", path, stack.Len(), cols, rows)
	for _, ch := range stack.Channels() {
		fmt.Printf("  %-8s %-16s %.2e\n", models.FormatMass(ch.Mass), ch.Label(), ch.Counts())
	}
	keys := make([]string, 0, len(stack.Metadata))
	for k := range stack.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s = %s\n", k, stack.Metadata[k])
	}
}

// printPanelInfo reports panel targets, isobaric donors and the well known
// element masses found in the stack
func printPanelInfo(o options, stack *models.Stack) error {
	masses := stack.Masses()
	for _, km := range panel.KnownMasses() {
		if _, ok := stack.ChannelByMass(km.Mass); ok {
			fmt.Printf("  found %s at %s\n", km.Element, models.FormatMass(km.Mass))
		}
	}

	if o.panelPath != "" {
		p, err := panel.ReadPanel(o.panelPath, false)
		if err != nil {
			return err
		}
		targets, err := p.TargetsForMasses(masses)
		if err != nil {
			return err
		}
		fmt.Printf("  panel targets: %s\n", strings.Join(targets, ", "))
	}

	if o.isobaric != "" {
		corrections, err := panel.ReadIsobaricCorrections(o.isobaric)
		if err != nil {
			return err
		}
		donors := panel.DonorMap(corrections, masses)
		recipients := make([]float64, 0, len(donors))
		for r, d := range donors {
			if len(d) == 0 {
				continue
			}
			recipients = append(recipients, r)
		}
		sort.Float64s(recipients)
		for _, r := range recipients {
			fmt.Printf("  isobaric %s <- %v\n", models.FormatMass(r), donors[r])
		}
	}
	return nil
}

func save(fig *visualization.Figure, path string, logger zerolog.Logger) error {
	if err := fig.Save(path); err != nil {
		return err
	}
	logger.Info().Str("file", path).Int("panels", len(fig.Panels)).Msg("saved figure")
	return nil
}

func lookup(stack *models.Stack, selectors []string) ([]models.Channel, error) {
	chs := make([]models.Channel, 0, len(selectors))
	for _, sel := range selectors {
		ch, err := stack.Channel(sel)
		if err != nil {
			return nil, err
		}
		chs = append(chs, ch)
	}
	return chs, nil
}

func outputPath(cfg *config.Config, o options, name string) string {
	if o.output != "" {
		return o.output
	}
	dir := cfg.Output.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, strings.ReplaceAll(name, string(filepath.Separator), "_"))
}

// parseRect reads x0,y0,x1,y1
func parseRect(s string) (image.Rectangle, error) {
	parts := splitList(s)
	if len(parts) != 4 {
		return image.Rectangle{}, errors.Wrapf(errs.ErrInvalidConfig, "crop %q is not x0,y0,x1,y1", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return image.Rectangle{}, errors.Wrapf(errs.ErrInvalidConfig, "crop %q: %v", s, err)
		}
		v[i] = n
	}
	return image.Rect(v[0], v[1], v[2], v[3]), nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstOr(list []string, def string) string {
	if len(list) > 0 {
		return list[0]
	}
	return def
}

func titleOr(title, def string) string {
	if title != "" {
		return title
	}
	return def
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
