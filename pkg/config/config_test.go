package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mibitools/pkg/errs"
)

// TestLoadConfigMissing verifies that a missing file yields the defaults
func TestLoadConfigMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Data.FOVSize != 500 {
		t.Errorf("Expected fov size 500, got %d", cfg.Data.FOVSize)
	}
	if cfg.Naming.Prefix != "bg" || cfg.Naming.Width != 3 {
		t.Errorf("Expected naming bg/3, got %s/%d", cfg.Naming.Prefix, cfg.Naming.Width)
	}
	if len(cfg.Generator.GoldThresholds) != 1 || cfg.Generator.GoldThresholds[0] != 50 {
		t.Errorf("Expected gold thresholds [50], got %v", cfg.Generator.GoldThresholds)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mibitools.yaml")
	content := `
mibio:
  program: /opt/mibio/mibio-linux
  timeout: 90s
data:
  xml: /data/run/run_name.xml
  fovs: Point1
generator:
  methods: [Au, Ta]
  goldThresholds: [0, 25, 50]
plot:
  colormap: viridis
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Mibio.Program != "/opt/mibio/mibio-linux" {
		t.Errorf("Expected program path, got %q", cfg.Mibio.Program)
	}
	if d, _ := cfg.Mibio.TimeoutDuration(); d != 90*time.Second {
		t.Errorf("Expected 90s timeout, got %v", d)
	}
	if len(cfg.Generator.GoldThresholds) != 3 {
		t.Errorf("Expected 3 gold thresholds, got %v", cfg.Generator.GoldThresholds)
	}
	// unset keys keep their defaults
	if cfg.Data.FOVSize != 500 || cfg.Plot.Colormap != "viridis" {
		t.Errorf("Unexpected values: fov size %d, colormap %s", cfg.Data.FOVSize, cfg.Plot.Colormap)
	}
}

func TestLoadConfigTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mibitools.toml")
	content := `
[data]
fov_size = 800
[naming]
prefix = "slidebg"
[link]
mode = "copy"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Data.FOVSize != 800 || cfg.Naming.Prefix != "slidebg" || cfg.Link.Mode != "copy" {
		t.Errorf("Unexpected values: %+v %+v %+v", cfg.Data, cfg.Naming, cfg.Link)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad method", func(c *Config) { c.Generator.Methods = []string{"Xe"} }},
		{"bad window", func(c *Config) { c.Generator.MassStart = 1 }},
		{"bad width", func(c *Config) { c.Naming.Width = 0 }},
		{"bad prefix", func(c *Config) { c.Naming.Prefix = "a/b" }},
		{"bad mode", func(c *Config) { c.Link.Mode = "hardlink" }},
		{"bad format", func(c *Config) { c.Plot.Format = "tiff" }},
		{"bad timeout", func(c *Config) { c.Mibio.Timeout = "soon" }},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.modify(cfg)
		if err := cfg.Validate(); !errors.Is(err, errs.ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", tt.name, err)
		}
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

// TestSaveConfigRoundTrip verifies both encodings load back
func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"cfg.yaml", "cfg.toml"} {
		path := filepath.Join(dir, "nested", name)
		cfg := DefaultConfig()
		cfg.Data.FOVs = "Point7"
		if err := SaveConfig(cfg, path); err != nil {
			t.Fatalf("SaveConfig(%s) failed: %v", name, err)
		}

		loaded, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig(%s) failed: %v", name, err)
		}
		if loaded.Data.FOVs != "Point7" {
			t.Errorf("%s: expected fovs Point7, got %q", name, loaded.Data.FOVs)
		}
	}
}

func TestMassWindowAndHelperPath(t *testing.T) {
	g := DefaultConfig().Generator
	if lo, hi := g.MassWindow(); lo != -0.3 || hi != 0 {
		t.Errorf("Expected -0.3..0, got %v..%v", lo, hi)
	}
	g.UseDefaultMassWindows = true
	if lo, hi := g.MassWindow(); lo != -0.3 || hi != 0.3 {
		t.Errorf("Expected -0.3..0.3, got %v..%v", lo, hi)
	}

	m := MibioConfig{HelperDir: "/srv/mibio"}
	if got := m.HelperPath("mibio.log"); got != filepath.Join("/srv/mibio", "mibio.log") {
		t.Errorf("Unexpected helper path %q", got)
	}
}
