package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mibitools/pkg/errs"
)

func TestCopyAndMove(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "mibio.log")
	if err := os.WriteFile(src, []byte("generated"), 0644); err != nil {
		t.Fatal(err)
	}

	copied := filepath.Join(dir, "bg_none", "mibio.log")
	if err := CopyFile(src, copied); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}
	same, err := SameContent(src, copied)
	if err != nil || !same {
		t.Errorf("Expected identical content, got %v (%v)", same, err)
	}

	moved := filepath.Join(dir, "bg_au_050", "mibio.log")
	if err := MoveFile(src, moved); err != nil {
		t.Fatalf("MoveFile failed: %v", err)
	}
	if Exists(src) {
		t.Error("Expected source to be gone after move")
	}
	if EmptyFile(moved) {
		t.Error("Expected moved file to have content")
	}
}

func TestMissingSource(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.tiff")

	if err := CopyFile(missing, filepath.Join(dir, "x")); !errors.Is(err, errs.ErrMissingSource) {
		t.Errorf("Expected ErrMissingSource from copy, got %v", err)
	}
	err := MoveFile(missing, filepath.Join(dir, "x"))
	if !errors.Is(err, errs.ErrMissingSource) {
		t.Errorf("Expected ErrMissingSource from move, got %v", err)
	}
	if !IsNotFound(err) {
		t.Error("Expected IsNotFound to match")
	}
	if !EmptyFile(missing) {
		t.Error("Expected a missing file to count as empty")
	}
}

func TestSameContentDiffers(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	os.WriteFile(a, []byte("abc"), 0644)
	os.WriteFile(b, []byte("abd"), 0644)

	same, err := SameContent(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if same {
		t.Error("Expected differing content")
	}
}
