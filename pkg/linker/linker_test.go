package linker

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"mibitools/internal/models"
	"mibitools/pkg/errs"
)

// createRun lays out Point<N> directories with an image each
func createRun(t *testing.T, dirs ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, d := range dirs {
		path := filepath.Join(root, d, filepath.FromSlash(models.DefaultFOVImagePath))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("BM"+d), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestPlanDiscovery(t *testing.T) {
	root := createRun(t, "Point10", "Point2", "Point1")
	os.MkdirAll(filepath.Join(root, "Summary"), 0755)

	links, err := Plan(root, Options{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	var names []string
	for _, l := range links {
		names = append(names, l.Name)
	}
	if got := strings.Join(names, ","); got != "Image_point1.bmp,Image_point2.bmp,Image_point10.bmp" {
		t.Errorf("Unexpected names %s", got)
	}
}

func TestPlanErrors(t *testing.T) {
	if _, err := Plan(filepath.Join(t.TempDir(), "missing"), Options{}); !errors.Is(err, errs.ErrPathNotFound) {
		t.Errorf("Expected ErrPathNotFound for a missing run, got %v", err)
	}

	root := createRun(t, "Point1")
	if _, err := Plan(root, Options{Points: 2}); !errors.Is(err, errs.ErrPathNotFound) {
		t.Errorf("Expected ErrPathNotFound for a missing FOV, got %v", err)
	}

	os.MkdirAll(filepath.Join(root, "Point2"), 0755)
	if _, err := Plan(root, Options{Points: 2}); !errors.Is(err, errs.ErrPathNotFound) {
		t.Errorf("Expected ErrPathNotFound for a missing image, got %v", err)
	}

	collide := createRun(t, "Point1", "point1")
	if _, err := Plan(collide, Options{}); !errors.Is(err, errs.ErrNamingCollision) {
		t.Errorf("Expected ErrNamingCollision, got %v", err)
	}
}

// TestApplyIdempotent verifies that reruns leave everything as it was
func TestApplyIdempotent(t *testing.T) {
	for _, mode := range []Mode{ModeSymlink, ModeCopy} {
		root := createRun(t, "Point1", "Point2")
		dest := filepath.Join(t.TempDir(), "review")
		links, err := Plan(root, Options{Points: 2})
		if err != nil {
			t.Fatal(err)
		}

		l := &Linker{Mode: mode, Logger: zerolog.Nop(), CommandLine: []string{"linkrun", root, "2"}}
		sum, err := l.Apply(links, dest)
		if err != nil {
			t.Fatalf("%s: Apply failed: %v", mode, err)
		}
		if sum.Created != 2 {
			t.Errorf("%s: expected 2 created, got %d", mode, sum.Created)
		}

		sum, err = l.Apply(links, dest)
		if err != nil {
			t.Fatalf("%s: second Apply failed: %v", mode, err)
		}
		if sum.Created != 0 || sum.Unchanged != 2 {
			t.Errorf("%s: expected 2 unchanged, got %+v", mode, sum)
		}

		data, err := os.ReadFile(filepath.Join(dest, "Image_point2.bmp"))
		if err != nil || string(data) != "BMPoint2" {
			t.Errorf("%s: unexpected image content %q (%v)", mode, data, err)
		}
		cmd, _ := os.ReadFile(filepath.Join(dest, CommandFile))
		if string(cmd) != "linkrun "+root+" 2\n" {
			t.Errorf("%s: unexpected command file %q", mode, cmd)
		}

		os.Remove(filepath.Join(dest, "Image_point1.bmp"))
		os.WriteFile(filepath.Join(dest, "Image_point1.bmp"), []byte("other"), 0644)
		if _, err := l.Apply(links, dest); !errors.Is(err, errs.ErrDestinationExists) {
			t.Errorf("%s: expected ErrDestinationExists, got %v", mode, err)
		}
	}
}

func TestApplyDryRun(t *testing.T) {
	root := createRun(t, "Point1")
	dest := filepath.Join(t.TempDir(), "review")
	links, _ := Plan(root, Options{})

	var out strings.Builder
	l := &Linker{DryRun: true, Out: &out, Logger: zerolog.Nop()}
	if _, err := l.Apply(links, dest); err != nil {
		t.Fatalf("Dry run failed: %v", err)
	}
	if !strings.Contains(out.String(), "ln -s ") || !strings.Contains(out.String(), "Image_point1.bmp") {
		t.Errorf("Unexpected dry-run output %q", out.String())
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("Expected nothing to be written on a dry run")
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeSymlink {
		t.Errorf("Expected symlink default, got %s (%v)", m, err)
	}
	if m, err := ParseMode("COPY"); err != nil || m != ModeCopy {
		t.Errorf("Expected copy, got %s (%v)", m, err)
	}
	if _, err := ParseMode("hardlink"); !errors.Is(err, errs.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}
