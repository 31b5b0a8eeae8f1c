// Package linker gathers the per-FOV images of a run into one directory, as
// symlinks or copies, for quick review.
package linker

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"mibitools/internal/models"
	"mibitools/pkg/errs"
	"mibitools/pkg/fsutil"
)

// CommandFile records the invoking command line in the destination
const CommandFile = "input_cmd.txt"

// Mode selects how images are placed
type Mode string

const (
	ModeSymlink Mode = "symlink"
	ModeCopy    Mode = "copy"
)

// ParseMode accepts symlink (the default for an empty string) or copy
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSymlink:
		return ModeSymlink, nil
	case ModeCopy:
		return ModeCopy, nil
	}
	return "", errors.Wrapf(errs.ErrInvalidConfig, "link mode must be symlink or copy, got %q", s)
}

var pointDir = regexp.MustCompile(`(?i)^point(\d+)$`)

// Options select the FOVs of a run
type Options struct {
	// Points uses Point1..PointN when positive, else every Point<N> directory
	Points int

	// ImagePath is the image inside a FOV directory
	ImagePath string
}

// Link is one planned destination entry
type Link struct {
	FOV    models.FieldOfView
	Source string
	Name   string
}

// Plan lists the images of a run and their destination names. Missing
// directories or images fail before anything is written, as do two FOVs
// mapping to the same name.
func Plan(runRoot string, opts Options) ([]Link, error) {
	info, err := os.Stat(runRoot)
	if err != nil || !info.IsDir() {
		return nil, errors.Wrapf(errs.ErrPathNotFound, "run directory %s", runRoot)
	}
	if opts.ImagePath == "" {
		opts.ImagePath = models.DefaultFOVImagePath
	}

	fovs, err := findFOVs(runRoot, opts)
	if err != nil {
		return nil, err
	}

	links := make([]Link, 0, len(fovs))
	byName := map[string]string{}
	for _, fov := range fovs {
		src := fov.Source()
		if _, err := os.Stat(src); err != nil {
			return nil, errors.Wrapf(errs.ErrPathNotFound, "image of %s", fov.Dir)
		}

		name := fov.LinkName()
		if other, taken := byName[name]; taken {
			return nil, errors.Wrapf(errs.ErrNamingCollision, "%s and %s both map to %s", other, fov.Dir, name)
		}
		byName[name] = fov.Dir

		links = append(links, Link{FOV: fov, Source: src, Name: name})
	}
	return links, nil
}

func findFOVs(runRoot string, opts Options) ([]models.FieldOfView, error) {
	if opts.Points > 0 {
		fovs := make([]models.FieldOfView, 0, opts.Points)
		for id := 1; id <= opts.Points; id++ {
			dir := fmt.Sprintf("Point%d", id)
			if info, err := os.Stat(filepath.Join(runRoot, dir)); err != nil || !info.IsDir() {
				return nil, errors.Wrapf(errs.ErrPathNotFound, "FOV directory %s", filepath.Join(runRoot, dir))
			}
			fovs = append(fovs, models.FieldOfView{RunRoot: runRoot, Dir: dir, ID: id, ImagePath: opts.ImagePath})
		}
		return fovs, nil
	}

	entries, err := os.ReadDir(runRoot)
	if err != nil {
		return nil, err
	}
	var fovs []models.FieldOfView
	for _, e := range entries {
		m := pointDir.FindStringSubmatch(e.Name())
		if m == nil || !e.IsDir() {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		fovs = append(fovs, models.FieldOfView{RunRoot: runRoot, Dir: e.Name(), ID: id, ImagePath: opts.ImagePath})
	}
	sort.SliceStable(fovs, func(i, j int) bool {
		if fovs[i].ID != fovs[j].ID {
			return fovs[i].ID < fovs[j].ID
		}
		return fovs[i].Dir < fovs[j].Dir
	})
	if len(fovs) == 0 {
		return nil, errors.Wrapf(errs.ErrPathNotFound, "no Point<N> directories in %s", runRoot)
	}
	return fovs, nil
}

// Linker places planned images into a destination directory
type Linker struct {
	Mode   Mode
	DryRun bool
	Logger zerolog.Logger

	// CommandLine is written to CommandFile, skipped when empty
	CommandLine []string

	// Out receives the dry-run listing
	Out io.Writer
}

// Summary counts what Apply did
type Summary struct {
	Created   int
	Unchanged int
}

// Apply creates one entry per link in dest. Entries that already match are
// left alone, so reruns are harmless. An entry that differs is an error.
func (l *Linker) Apply(links []Link, dest string) (Summary, error) {
	var sum Summary
	mode := l.Mode
	if mode == "" {
		mode = ModeSymlink
	}

	names := map[string]bool{}
	for _, link := range links {
		if names[link.Name] {
			return sum, errors.Wrapf(errs.ErrNamingCollision, "%s planned twice", link.Name)
		}
		names[link.Name] = true
	}

	if l.DryRun {
		for _, link := range links {
			target := filepath.Join(dest, link.Name)
			fmt.Fprintf(l.out(), "ls %s\n", link.Source)
			if mode == ModeCopy {
				fmt.Fprintf(l.out(), "cp %s %s\n", link.Source, target)
			} else {
				fmt.Fprintf(l.out(), "ln -s %s %s\n", link.Source, target)
			}
		}
		return sum, nil
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return sum, err
	}

	for _, link := range links {
		src, err := filepath.Abs(link.Source)
		if err != nil {
			return sum, err
		}
		target := filepath.Join(dest, link.Name)

		same, err := matches(target, src, mode)
		if err != nil {
			return sum, err
		}
		if same {
			sum.Unchanged++
			l.Logger.Debug().Str("fov", link.FOV.Dir).Str("name", link.Name).Msg("already in place")
			continue
		}

		if mode == ModeCopy {
			err = fsutil.CopyFile(src, target)
		} else {
			err = os.Symlink(src, target)
		}
		if err != nil {
			return sum, errors.Wrapf(err, "place %s", link.Name)
		}
		sum.Created++
		l.Logger.Info().Str("fov", link.FOV.Dir).Str("name", link.Name).Str("mode", string(mode)).Msg("linked image")
	}

	if len(l.CommandLine) > 0 {
		line := strings.Join(l.CommandLine, " ") + "\n"
		if err := os.WriteFile(filepath.Join(dest, CommandFile), []byte(line), 0644); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// matches reports whether target already holds src. A different entry at
// target is ErrDestinationExists.
func matches(target, src string, mode Mode) (bool, error) {
	info, err := os.Lstat(target)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if mode == ModeSymlink && info.Mode()&os.ModeSymlink != 0 {
		if dest, err := os.Readlink(target); err == nil && dest == src {
			return true, nil
		}
	}
	if mode == ModeCopy && info.Mode().IsRegular() {
		same, err := fsutil.SameContent(target, src)
		if err != nil {
			return false, err
		}
		if same {
			return true, nil
		}
	}
	return false, errors.Wrapf(errs.ErrDestinationExists, "%s", target)
}

func (l *Linker) out() io.Writer {
	if l.Out == nil {
		return os.Stdout
	}
	return l.Out
}
