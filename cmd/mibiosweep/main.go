package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"mibitools/pkg/config"
	"mibitools/pkg/logging"
	"mibitools/pkg/sweep"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "mibitools.yaml", "Configuration file (.yaml or .toml)")
	dryRun := flag.Bool("dry-run", false, "Print the commands without running MIBI/O")
	initConfig := flag.Bool("init", false, "Write a default configuration file and exit")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dryRun {
		cfg.Generator.DryRun = true
	}
	logger := logging.InitLogger("mibiosweep", cfg.Output.Verbose, cfg.Output.LogLevel)

	combs, err := sweep.Expand(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid background removal settings")
	}
	logger.Info().Int("combinations", len(combs)).Str("xml", cfg.Data.XML).Msg("Starting sweep")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	startTime := time.Now()
	results, err := sweep.NewDriver(cfg, logger).Sweep(ctx, combs)
	for _, r := range results {
		if !r.DryRun {
			logger.Info().Str("dir", r.Dir).Dur("took", r.Duration).Msg("done")
		}
	}
	if err != nil {
		logger.Fatal().Err(err).Int("completed", len(results)).Msg("Sweep failed")
	}
	fmt.Printf("Sweep of %d combinations completed in %.2f seconds\n", len(results), time.Since(startTime).Seconds())
}
