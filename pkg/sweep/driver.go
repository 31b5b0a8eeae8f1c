package sweep

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"mibitools/internal/models"
	"mibitools/pkg/config"
	"mibitools/pkg/errs"
	"mibitools/pkg/fsutil"
)

// Result describes one finished run
type Result struct {
	Combination models.Combination
	Name        string
	Dir         string
	Command     Command
	ExitCode    int
	Duration    time.Duration
	DryRun      bool
}

// Driver runs MIBI/O once per combination
type Driver struct {
	Config *config.Config
	Runner CommandRunner
	Logger zerolog.Logger

	// Out receives the dry-run listing
	Out io.Writer
}

// NewDriver returns a driver using the local host runner
func NewDriver(cfg *config.Config, logger zerolog.Logger) *Driver {
	return &Driver{Config: cfg, Runner: ExecRunner{}, Logger: logger, Out: os.Stdout}
}

// Run generates the TIFF of one combination and files it in its directory
func (d *Driver) Run(ctx context.Context, c models.Combination) (Result, error) {
	cfg := d.Config
	name := DirName(c, cfg.Naming)
	cmd, err := BuildCommand(cfg)
	if err != nil {
		return Result{Combination: c, Name: name}, err
	}

	output := OutputFile(cfg)
	tiffDir := filepath.Dir(output)
	dest := filepath.Join(tiffDir, name)
	res := Result{Combination: c, Name: name, Dir: dest, Command: cmd}
	logger := d.Logger.With().Str("combination", name).Logger()

	if cfg.Generator.DryRun {
		res.DryRun = true
		fmt.Fprintf(d.out(), "cd %s\n%s\n# -> %s\n", cmd.Dir, cmd, dest)
		return res, nil
	}

	if fsutil.Exists(output) {
		return res, errors.Wrapf(errs.ErrDestinationExists, "output file %s exists before the run", output)
	}
	if fsutil.Exists(dest) && !cfg.Generator.Overwrite {
		return res, errors.Wrapf(errs.ErrDestinationExists, "result directory %s", dest)
	}

	configPath := cfg.Mibio.HelperPath(cfg.Mibio.ConfigFile)
	logPath := cfg.Mibio.HelperPath(cfg.Mibio.LogFile)
	lo, hi := cfg.Generator.MassWindow()
	if err := UpdateGeneratorConfig(configPath, c, lo, hi); err != nil {
		return res, err
	}

	if err := os.MkdirAll(tiffDir, 0755); err != nil {
		return res, err
	}
	launchLog := filepath.Join(tiffDir, LaunchLogName)
	if err := os.WriteFile(launchLog, []byte(fmt.Sprintf("cd %s\n%s\n", cmd.Dir, cmd)), 0644); err != nil {
		return res, err
	}

	timeout, err := cfg.Mibio.TimeoutDuration()
	if err != nil {
		return res, err
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger.Info().Str("cmd", cmd.String()).Msg("launching mibio")
	start := time.Now()
	out, code, runErr := d.Runner.Run(runCtx, cmd.Dir, cmd.Name, cmd.Args...)
	res.ExitCode = code
	res.Duration = time.Since(start)
	if err := appendFile(launchLog, fmt.Sprintf("exit code: %d\n%s", code, out)); err != nil {
		return res, err
	}

	switch {
	case runErr == nil:
	case errors.Is(runErr, context.DeadlineExceeded) && ctx.Err() == nil:
		// MIBI/O may stay open after writing its output, so a stopped run
		// still counts when the TIFF is there
		logger.Warn().Dur("timeout", timeout).Msg("mibio stopped at timeout")
	default:
		return res, runErr
	}

	if fsutil.EmptyFile(output) {
		return res, errors.Wrapf(errs.ErrMissingSource, "mibio produced no output at %s", output)
	}

	if fsutil.Exists(dest) {
		logger.Warn().Str("dir", dest).Msg("replacing existing result directory")
		if err := os.RemoveAll(dest); err != nil {
			return res, err
		}
	}
	if err := os.Mkdir(dest, 0755); err != nil {
		return res, err
	}

	if err := fsutil.MoveFile(output, filepath.Join(dest, filepath.Base(output))); err != nil {
		return res, err
	}
	if err := fsutil.MoveFile(launchLog, filepath.Join(dest, LaunchLogName)); err != nil {
		return res, err
	}
	if err := fsutil.CopyFile(configPath, filepath.Join(dest, filepath.Base(configPath))); err != nil {
		return res, err
	}
	if err := fsutil.CopyFile(logPath, filepath.Join(dest, filepath.Base(logPath))); err != nil {
		return res, err
	}

	logger.Info().Dur("took", res.Duration).Str("dir", dest).Msg("job done")
	return res, nil
}

// Sweep runs the combinations in order and stops at the first failure,
// returning the results gathered so far
func (d *Driver) Sweep(ctx context.Context, combs []models.Combination) ([]Result, error) {
	results := make([]Result, 0, len(combs))
	for i, c := range combs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		d.Logger.Debug().Int("index", i+1).Int("total", len(combs)).Msg("starting combination")

		res, err := d.Run(ctx, c)
		if err != nil {
			return results, errors.Wrapf(err, "combination %s", res.Name)
		}
		results = append(results, res)
	}
	d.Logger.Info().Int("runs", len(results)).Msg("finished loop over thresholds")
	return results, nil
}

func (d *Driver) out() io.Writer {
	if d.Out == nil {
		return os.Stdout
	}
	return d.Out
}

func appendFile(path, s string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
