package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"mibitools/pkg/config"
	"mibitools/pkg/export"
	"mibitools/pkg/logging"
	"mibitools/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "Configuration file (.yaml or .toml)")
	fovList := flag.String("fov-list", "", "CSV with a 'FOV Name' column")
	inputDir := flag.String("input", "", "Directory holding <fov>.tiff files")
	masses := flag.String("masses", "", "Comma separated masses to export (default every integer mass in the configured range)")
	flag.Parse()

	if *fovList == "" || *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.InitLogger("extractpngs", cfg.Output.Verbose, cfg.Output.LogLevel)

	opts := export.DefaultOptions()
	opts.Plot = visualization.OptionsFromConfig(cfg.Plot)
	opts.Plot.Brighten = true
	opts.Plot.Dark = true
	opts.MassMin = cfg.Plot.MassMin
	opts.MassMax = cfg.Plot.MassMax
	if opts.Masses, err = parseMasses(*masses); err != nil {
		logger.Fatal().Err(err).Msg("Invalid mass list")
	}

	files, err := export.ExtractPNGs(*fovList, *inputDir, opts, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("input", *inputDir).Msg("PNG extraction failed")
	}
	logFiles(logger, files)
	fmt.Printf("Wrote %d images\n", len(files))
}

func parseMasses(s string) ([]float64, error) {
	var out []float64
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		m, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func logFiles(logger zerolog.Logger, files []string) {
	for _, f := range files {
		logger.Debug().Str("file", f).Msg("saved")
	}
}
