// Package fsutil holds the file copy and move helpers shared by the sweep
// driver, the linker and the exporters.
package fsutil

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"mibitools/pkg/errs"
)

// Exists reports whether anything, including a dangling symlink, is at path
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// IsNotFound reports whether err means a file does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, errs.ErrMissingSource) || errors.Is(err, errs.ErrPathNotFound)
}

// CopyFile copies src to dst, creating dst's directory. File mode is kept.
func CopyFile(src, dst string) error {
	fin, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(errs.ErrMissingSource, "%s", src)
		}
		return err
	}
	defer fin.Close()

	info, err := fin.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	fout, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(fout, fin); err != nil {
		fout.Close()
		return err
	}
	return fout.Close()
}

// MoveFile renames src to dst, falling back to copy and remove when the
// rename crosses devices
func MoveFile(src, dst string) error {
	if _, err := os.Lstat(src); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(errs.ErrMissingSource, "%s", src)
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// SameContent reports whether two files hold identical bytes
func SameContent(a, b string) (bool, error) {
	ia, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	if ia.Size() != ib.Size() {
		return false, nil
	}

	da, err := os.ReadFile(a)
	if err != nil {
		return false, err
	}
	db, err := os.ReadFile(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(da, db), nil
}

// EmptyFile reports whether path is missing or has no content
func EmptyFile(path string) bool {
	info, err := os.Stat(path)
	return err != nil || info.Size() == 0
}
