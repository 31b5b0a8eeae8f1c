package visualization

import (
	"bufio"
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"mibitools/pkg/errs"
)

// EncodeImage encodes img as "png" or "jpeg"
func EncodeImage(img image.Image, format string) ([]byte, error) {
	var b bytes.Buffer
	writer := bufio.NewWriter(&b)

	var err error
	switch format {
	case "png":
		err = png.Encode(writer, img)
	case "jpeg", "jpg":
		err = jpeg.Encode(writer, img, &jpeg.Options{Quality: 90})
	default:
		err = errors.Wrapf(errs.ErrInvalidConfig, "unexpected image format: %v", format)
	}
	if err != nil {
		return nil, err
	}

	if err := writer.Flush(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// FormatOf returns the image format for a file name
func FormatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// Save renders the figure to path, PNG or JPEG by extension
func (f *Figure) Save(path string) error {
	img, err := f.Render()
	if err != nil {
		return err
	}
	data, err := EncodeImage(img, FormatOf(path))
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// SaveGIF writes an animation
func SaveGIF(path string, anim *gif.GIF) error {
	var b bytes.Buffer
	if err := gif.EncodeAll(&b, anim); err != nil {
		return err
	}
	return writeFile(path, b.Bytes())
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
