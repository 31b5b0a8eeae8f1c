package panel

import (
	"os"
	"strings"

	"github.com/pkg/errors"

	"mibitools/pkg/errs"
)

// FOVNameColumn is the column of a FOV list holding the FOV names
const FOVNameColumn = "FOV Name"

// ReadFOVList returns the FOV names listed in a project's FOV_List.csv
func ReadFOVList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errs.ErrPathNotFound, "FOV list %s", path)
		}
		return nil, err
	}
	defer f.Close()

	header, rows, err := readCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "FOV list %s", path)
	}
	idx, err := columnIndex(header, FOVNameColumn)
	if err != nil {
		return nil, errors.Wrapf(err, "FOV list %s", path)
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if name := strings.TrimSpace(row[idx[FOVNameColumn]]); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}
