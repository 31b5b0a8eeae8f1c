// Package config provides configuration loading and management for mibitools.
// It handles loading configuration from YAML or TOML files and provides the
// default values used by every command.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"mibitools/internal/models"
	"mibitools/pkg/errs"
)

// DefaultThreshold disables a background removal method in MIBI/O
const DefaultThreshold = 1000000

// MibioConfig locates the MIBI/O installation and bounds each run
type MibioConfig struct {
	// Program is the MIBI/O executable
	Program string `yaml:"program" toml:"program"`

	// HelperDir holds mibio_config.json and mibio.log, usually ~/.mibio
	HelperDir string `yaml:"helperDir" toml:"helper_dir"`

	// ConfigFile and LogFile are names inside HelperDir
	ConfigFile string `yaml:"configFile" toml:"config_file"`
	LogFile    string `yaml:"logFile" toml:"log_file"`

	// RelativePaths passes data paths relative to the program directory
	RelativePaths bool `yaml:"relativePaths" toml:"relative_paths"`

	// Timeout bounds one run (e.g. "90s"), empty or "0" for none
	Timeout string `yaml:"timeout" toml:"timeout"`
}

// DataConfig describes the acquisition to process
type DataConfig struct {
	// XML is the run description written by the instrument
	XML string `yaml:"xml" toml:"xml"`

	// Panel is the panel CSV
	Panel string `yaml:"panel" toml:"panel"`

	// FOVs is passed to --fovs, e.g. "Point1"
	FOVs string `yaml:"fovs" toml:"fovs"`

	// FOVSize is the field of view size in um
	FOVSize int `yaml:"fovSize" toml:"fov_size"`
}

// GeneratorConfig drives TIFF generation and background removal sweeps
type GeneratorConfig struct {
	RemoveBackground bool `yaml:"removeBackground" toml:"remove_background"`
	RecalibrateMass  bool `yaml:"recalibrateMass" toml:"recalibrate_mass"`

	// UseDefaultMassWindows widens the mass window to -0.3..0.3
	UseDefaultMassWindows bool    `yaml:"useDefaultMassWindows" toml:"use_default_mass_windows"`
	MassStart             float64 `yaml:"massStart" toml:"mass_start"`
	MassStop              float64 `yaml:"massStop" toml:"mass_stop"`

	// UseDefaults runs the vendor default parameter set
	UseDefaults bool `yaml:"useDefaults" toml:"use_defaults"`

	// Methods are the background removal methods, see models.ValidMethods
	Methods []string `yaml:"methods" toml:"methods"`

	EventThresholds    []float64 `yaml:"eventThresholds" toml:"event_thresholds"`
	GoldThresholds     []float64 `yaml:"goldThresholds" toml:"gold_thresholds"`
	TantalumThresholds []float64 `yaml:"tantalumThresholds" toml:"tantalum_thresholds"`

	// Overwrite replaces existing result directories
	Overwrite bool `yaml:"overwrite" toml:"overwrite"`

	// DryRun prints commands without running them
	DryRun bool `yaml:"dryRun" toml:"dry_run"`
}

// NamingConfig controls result directory names
type NamingConfig struct {
	Prefix string `yaml:"prefix" toml:"prefix"`
	Width  int    `yaml:"width" toml:"width"`
}

// OutputConfig controls logging
type OutputConfig struct {
	// Verbose enables debug logging
	Verbose bool `yaml:"verbose" toml:"verbose"`

	// LogLevel overrides Verbose when set (debug, info, warn, error)
	LogLevel string `yaml:"logLevel" toml:"log_level"`

	// Dir receives plots when a command is not given an output path
	Dir string `yaml:"dir" toml:"dir"`
}

// PlotConfig holds plotting defaults
type PlotConfig struct {
	Colormap       string  `yaml:"colormap" toml:"colormap"`
	ClipPercentile float64 `yaml:"clipPercentile" toml:"clip_percentile"`
	Brighten       bool    `yaml:"brighten" toml:"brighten"`
	HiRes          bool    `yaml:"hiRes" toml:"hi_res"`
	PanelSize      int     `yaml:"panelSize" toml:"panel_size"`
	Dark           bool    `yaml:"dark" toml:"dark"`
	SharedScale    bool    `yaml:"sharedScale" toml:"shared_scale"`
	Colorbar       bool    `yaml:"colorbar" toml:"colorbar"`

	// Format is png or jpeg
	Format string `yaml:"format" toml:"format"`

	// MassMin and MassMax select channels for PNG extraction
	MassMin float64 `yaml:"massMin" toml:"mass_min"`
	MassMax float64 `yaml:"massMax" toml:"mass_max"`
}

// LinkConfig controls run image linking
type LinkConfig struct {
	// Dest is the directory receiving the links, the working directory when empty
	Dest string `yaml:"dest" toml:"dest"`

	// Mode is symlink or copy
	Mode string `yaml:"mode" toml:"mode"`

	// ImagePath is the image location inside a FOV directory
	ImagePath string `yaml:"imagePath" toml:"image_path"`

	DryRun bool `yaml:"dryRun" toml:"dry_run"`
}

// Config represents the application configuration
type Config struct {
	Mibio     MibioConfig     `yaml:"mibio" toml:"mibio"`
	Data      DataConfig      `yaml:"data" toml:"data"`
	Generator GeneratorConfig `yaml:"generator" toml:"generator"`
	Naming    NamingConfig    `yaml:"naming" toml:"naming"`
	Output    OutputConfig    `yaml:"output" toml:"output"`
	Plot      PlotConfig      `yaml:"plot" toml:"plot"`
	Link      LinkConfig      `yaml:"link" toml:"link"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Mibio.HelperDir = "~/.mibio"
	cfg.Mibio.ConfigFile = "mibio_config.json"
	cfg.Mibio.LogFile = "mibio.log"

	cfg.Data.FOVSize = 500

	// good parameter set: events off, Au 50, Ta 20
	cfg.Generator.RemoveBackground = true
	cfg.Generator.MassStart = -0.3
	cfg.Generator.MassStop = 0
	cfg.Generator.Methods = []string{models.MethodGold, models.MethodTantalum}
	cfg.Generator.EventThresholds = []float64{DefaultThreshold}
	cfg.Generator.GoldThresholds = []float64{50}
	cfg.Generator.TantalumThresholds = []float64{20}
	cfg.Generator.Overwrite = true

	cfg.Naming.Prefix = "bg"
	cfg.Naming.Width = 3

	cfg.Output.Verbose = false

	cfg.Plot.Colormap = "afmhot"
	cfg.Plot.Colorbar = true
	cfg.Plot.Format = "png"
	cfg.Plot.MassMin = 10
	cfg.Plot.MassMax = 219

	cfg.Link.Mode = "symlink"
	cfg.Link.ImagePath = models.DefaultFOVImagePath

	return cfg
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by extension.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.Wrapf(errs.ErrInvalidConfig, "error parsing config file %s: %v", configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration, as TOML for .toml paths and YAML otherwise
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var data []byte
	if isTOML(configPath) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	for _, m := range c.Generator.Methods {
		if !models.ValidMethod(m) {
			return errors.Wrapf(errs.ErrInvalidConfig, "invalid background removal method %q (valid: %s)",
				m, strings.Join(models.ValidMethods, " "))
		}
	}
	if c.Data.FOVSize < 0 {
		return errors.Wrapf(errs.ErrInvalidConfig, "fov size must not be negative, got %d", c.Data.FOVSize)
	}
	if c.Generator.MassStart > c.Generator.MassStop {
		return errors.Wrapf(errs.ErrInvalidConfig, "mass window start %v is after stop %v",
			c.Generator.MassStart, c.Generator.MassStop)
	}
	if c.Naming.Width < 1 || c.Naming.Width > 9 {
		return errors.Wrapf(errs.ErrInvalidConfig, "naming width must be between 1 and 9, got %d", c.Naming.Width)
	}
	if strings.TrimSpace(c.Naming.Prefix) == "" || strings.ContainsAny(c.Naming.Prefix, `/\`) {
		return errors.Wrapf(errs.ErrInvalidConfig, "naming prefix %q is not a valid directory name", c.Naming.Prefix)
	}
	switch c.Link.Mode {
	case "symlink", "copy":
	default:
		return errors.Wrapf(errs.ErrInvalidConfig, "link mode must be symlink or copy, got %q", c.Link.Mode)
	}
	switch strings.ToLower(c.Plot.Format) {
	case "png", "jpeg", "jpg":
	default:
		return errors.Wrapf(errs.ErrInvalidConfig, "plot format must be png or jpeg, got %q", c.Plot.Format)
	}
	if c.Plot.ClipPercentile < 0 || c.Plot.ClipPercentile > 100 {
		return errors.Wrapf(errs.ErrInvalidConfig, "clip percentile must be in [0, 100], got %v", c.Plot.ClipPercentile)
	}
	if _, err := c.Mibio.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// TimeoutDuration parses Timeout, 0 when unset
func (m MibioConfig) TimeoutDuration() (time.Duration, error) {
	s := strings.TrimSpace(m.Timeout)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, errors.Wrapf(errs.ErrInvalidConfig, "parse timeout %q", m.Timeout)
	}
	return d, nil
}

// HelperPath returns a file inside HelperDir with a leading ~ expanded
func (m MibioConfig) HelperPath(name string) string {
	dir := m.HelperDir
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}
	return filepath.Join(dir, name)
}

// MassWindow returns the mass window applied to every panel mass
func (g GeneratorConfig) MassWindow() (float64, float64) {
	if g.UseDefaultMassWindows {
		return -0.3, 0.3
	}
	return g.MassStart, g.MassStop
}
