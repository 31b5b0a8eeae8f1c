package sweep

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"mibitools/pkg/config"
	"mibitools/pkg/errs"
)

// Output names written by one run
const (
	LaunchLogName = "out.launch_mibio.log"
	outputSuffix  = "_RowNumber0_Depth_Profile0.tiff"
)

// Command is one MIBI/O invocation. It runs from Dir, the program's directory.
type Command struct {
	Dir  string
	Name string
	Args []string
}

// String renders the command line, quoting arguments with spaces
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	for _, p := range append([]string{c.Name}, c.Args...) {
		if p == "" || strings.ContainsAny(p, " \t\"'") {
			p = strconv.Quote(p)
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// BuildCommand assembles the generate_tiff invocation
func BuildCommand(cfg *config.Config) (Command, error) {
	program := strings.TrimSpace(cfg.Mibio.Program)
	if program == "" {
		return Command{}, errors.Wrap(errs.ErrInvalidConfig, "mibio program is not set")
	}
	d := cfg.Data
	if d.XML == "" || d.Panel == "" || d.FOVs == "" {
		return Command{}, errors.Wrap(errs.ErrInvalidConfig, "data xml, panel and fovs must be set")
	}

	// the process runs from the program's directory, so every path given
	// relative to the working directory is resolved first
	absProgram, err := filepath.Abs(program)
	if err != nil {
		return Command{}, errors.Wrapf(errs.ErrInvalidConfig, "mibio program %s: %v", program, err)
	}
	cmd := Command{Dir: filepath.Dir(absProgram), Name: absProgram}
	xml, panel := d.XML, d.Panel
	if cfg.Mibio.RelativePaths {
		cmd.Name = "./" + filepath.Base(absProgram)
		if xml, err = relativeTo(cmd.Dir, xml); err != nil {
			return Command{}, err
		}
		if panel, err = relativeTo(cmd.Dir, panel); err != nil {
			return Command{}, err
		}
	} else {
		if xml, err = filepath.Abs(xml); err != nil {
			return Command{}, errors.Wrapf(errs.ErrInvalidConfig, "xml %s: %v", d.XML, err)
		}
		if panel, err = filepath.Abs(panel); err != nil {
			return Command{}, errors.Wrapf(errs.ErrInvalidConfig, "panel %s: %v", d.Panel, err)
		}
	}

	cmd.Args = []string{
		"generate_tiff", xml, panel, strconv.Itoa(d.FOVSize),
		"--fovs", d.FOVs,
		"--remove_slide_background", pyBool(cfg.Generator.RemoveBackground),
		"--mass_recal", pyBool(cfg.Generator.RecalibrateMass),
	}
	return cmd, nil
}

func relativeTo(base, path string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil {
		return "", errors.Wrapf(errs.ErrInvalidConfig, "%s is not reachable from %s", path, base)
	}
	return rel, nil
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// OutputFile is where MIBI/O writes the TIFF of a run:
// <xml dir>/<stem>/<stem>_TIFF/<fov prefix>_RowNumber0_Depth_Profile0.tiff
func OutputFile(cfg *config.Config) string {
	xml := cfg.Data.XML
	stem := strings.TrimSuffix(filepath.Base(xml), filepath.Ext(xml))
	prefix := strings.Split(strings.Split(cfg.Data.FOVs, "_")[0], "-")[0]
	return filepath.Join(filepath.Dir(xml), stem, stem+"_TIFF", prefix+outputSuffix)
}
