package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"mibitools/pkg/config"
	"mibitools/pkg/linker"
	"mibitools/pkg/logging"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "Configuration file (.yaml or .toml)")
	dest := flag.String("dest", "", "Destination directory (default from config)")
	mode := flag.String("mode", "", "symlink or copy (default from config)")
	dryRun := flag.Bool("dry-run", false, "Print the commands without touching the filesystem")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <run dir> [n_points]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.InitLogger("linkrun", cfg.Output.Verbose, cfg.Output.LogLevel)

	opts := linker.Options{ImagePath: cfg.Link.ImagePath}
	if flag.NArg() == 2 {
		n, err := strconv.Atoi(flag.Arg(1))
		if err != nil || n < 1 {
			logger.Fatal().Str("n_points", flag.Arg(1)).Msg("n_points must be a positive integer")
		}
		opts.Points = n
	}

	if *mode == "" {
		*mode = cfg.Link.Mode
	}
	m, err := linker.ParseMode(*mode)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid link mode")
	}
	if *dest == "" {
		*dest = cfg.Link.Dest
	}
	if *dest == "" {
		logger.Fatal().Msg("No destination directory given")
	}

	links, err := linker.Plan(flag.Arg(0), opts)
	if err != nil {
		logger.Fatal().Err(err).Str("run", flag.Arg(0)).Msg("Failed to plan links")
	}

	l := &linker.Linker{
		Mode:        m,
		DryRun:      *dryRun || cfg.Link.DryRun,
		Logger:      logger,
		CommandLine: os.Args,
		Out:         os.Stdout,
	}
	sum, err := l.Apply(links, *dest)
	if err != nil {
		logger.Fatal().Err(err).Str("dest", *dest).Msg("Failed to link images")
	}
	logger.Info().
		Int("created", sum.Created).
		Int("unchanged", sum.Unchanged).
		Str("dest", *dest).
		Str("mode", strings.ToLower(string(m))).
		Msg("Linked run images")
}
