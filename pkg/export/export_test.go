package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"mibitools/internal/models"
	"mibitools/pkg/errs"
	"mibitools/pkg/mibitiff"
)

func writeFOV(t *testing.T, path string) {
	t.Helper()
	var chs []models.Channel
	for i, m := range []struct {
		mass   float64
		target string
	}{{197, "Au"}, {89, "dsDNA"}, {88.91, "Y89"}, {5, "low"}} {
		data := mat.NewDense(4, 4, nil)
		data.Set(1, 1, float64(10*(i+1)))
		chs = append(chs, models.Channel{Mass: m.mass, Target: m.target, Data: data})
	}
	stack, err := models.NewStack(nil, chs)
	if err != nil {
		t.Fatal(err)
	}
	if err := mibitiff.WriteFile(path, stack, mibitiff.WriteOptions{}); err != nil {
		t.Fatal(err)
	}
}

func TestExtractPNGs(t *testing.T) {
	dir := t.TempDir()
	writeFOV(t, filepath.Join(dir, "R1C1.tiff"))
	list := filepath.Join(dir, "FOV_List.csv")
	os.WriteFile(list, []byte("FOV Name\nR1C1\n"), 0644)

	files, err := ExtractPNGs(list, dir, DefaultOptions(), zerolog.Nop())
	if err != nil {
		t.Fatalf("ExtractPNGs failed: %v", err)
	}

	expected := []string{
		filepath.Join(dir, "PNGs", "R1C1", "R1C1_89_dsDNA.png"),
		filepath.Join(dir, "PNGs", "R1C1", "R1C1_197_Au.png"),
	}
	if len(files) != len(expected) {
		t.Fatalf("Expected %d files, got %v", len(expected), files)
	}
	for i, want := range expected {
		if files[i] != want {
			t.Errorf("Expected %s, got %s", want, files[i])
		}
		if _, err := os.Stat(want); err != nil {
			t.Errorf("Expected %s to exist: %v", want, err)
		}
	}

	if _, err := ExtractPNGs(list, dir, DefaultOptions(), zerolog.Nop()); !errors.Is(err, errs.ErrDestinationExists) {
		t.Errorf("Expected ErrDestinationExists on rerun, got %v", err)
	}
}

func TestExtractSelectedMasses(t *testing.T) {
	dir := t.TempDir()
	writeFOV(t, filepath.Join(dir, "R1C1.tiff"))
	list := filepath.Join(dir, "FOV_List.csv")
	os.WriteFile(list, []byte("FOV Name\nR1C1\n"), 0644)

	opts := DefaultOptions()
	opts.Masses = []float64{88.91}
	files, err := ExtractPNGs(list, dir, opts, zerolog.Nop())
	if err != nil {
		t.Fatalf("ExtractPNGs failed: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "R1C1_88.91_Y89.png" {
		t.Errorf("Expected only the Y89 channel, got %v", files)
	}
}

func TestExtractMissingFOV(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "FOV_List.csv")
	os.WriteFile(list, []byte("FOV Name\nR9C9\n"), 0644)

	if _, err := ExtractPNGs(list, dir, DefaultOptions(), zerolog.Nop()); !errors.Is(err, errs.ErrPathNotFound) {
		t.Errorf("Expected ErrPathNotFound, got %v", err)
	}
}

func TestExtractTargetWithSeparator(t *testing.T) {
	dir := t.TempDir()
	data := mat.NewDense(4, 4, nil)
	data.Set(2, 2, 7)
	stack, err := models.NewStack(nil, []models.Channel{{Mass: 150, Target: "CD8/a", Data: data}})
	if err != nil {
		t.Fatal(err)
	}
	if err := mibitiff.WriteFile(filepath.Join(dir, "R1C1.tiff"), stack, mibitiff.WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	list := filepath.Join(dir, "FOV_List.csv")
	os.WriteFile(list, []byte("FOV Name\nR1C1\n"), 0644)

	files, err := ExtractPNGs(list, dir, DefaultOptions(), zerolog.Nop())
	if err != nil {
		t.Fatalf("ExtractPNGs failed: %v", err)
	}
	want := filepath.Join(dir, "PNGs", "R1C1", "R1C1_150_CD8_a.png")
	if len(files) != 1 || files[0] != want {
		t.Fatalf("Expected %s, got %v", want, files)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("Expected %s to exist: %v", want, err)
	}
}
