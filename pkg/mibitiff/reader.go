// Package mibitiff reads and writes MIBItiff files: multi-page TIFFs with one
// channel per page, each page labelled by a JSON ImageDescription.
package mibitiff

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/mat"

	"mibitools/internal/models"
	"mibitools/pkg/errs"
)

// Description keys
const (
	KeyMass      = "channel.mass"
	KeyTarget    = "channel.target"
	KeyImageType = "image.type"
	runKeyPrefix = "mibi."
)

// maxPagePixels bounds the size of one page
const maxPagePixels = 1 << 28

// Read loads a MIBItiff file into a stack
func Read(path string) (*models.Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errs.ErrPathNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}

	stack, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return stack, nil
}

// Decode parses an in-memory MIBItiff
func Decode(data []byte) (*models.Stack, error) {
	bo, first, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	pages, err := readIFDs(data, bo, first)
	if err != nil {
		return nil, err
	}

	var channels []models.Channel
	var meta map[string]string
	for _, p := range pages {
		// Reduced resolution thumbnails are not channels
		if p.uint(tagNewSubfileType, 0)&1 != 0 {
			continue
		}

		ch, desc, ok, err := p.channelInfo()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		ch.Data, err = decodePage(data, p)
		if err != nil {
			return nil, err
		}

		if meta == nil {
			meta = runMetadata(desc)
		}
		channels = append(channels, ch)
	}

	if len(channels) == 0 {
		return nil, parseError(0, int64(first), "no labelled channel pages")
	}
	return models.NewStack(meta, channels)
}

// channelInfo reads the label and calibration of a page. ok is false for
// pages that carry neither a mass nor a target.
func (d ifd) channelInfo() (models.Channel, map[string]interface{}, bool, error) {
	var ch models.Channel
	desc := map[string]interface{}{}

	if raw := d.ascii(tagImageDescription); strings.HasPrefix(raw, "{") {
		if err := json.Unmarshal([]byte(raw), &desc); err != nil {
			return ch, nil, false, parseError(d.index, int64(d.offset), "bad description JSON: %v", err)
		}
	}

	massFound := false
	if v, ok := desc[KeyMass]; ok {
		m, isNum := number(v)
		if !isNum {
			return ch, nil, false, parseError(d.index, int64(d.offset), "%s is not a number: %v", KeyMass, v)
		}
		ch.Mass = m
		massFound = true
	}

	if v, ok := desc[KeyTarget].(string); ok {
		ch.Target = strings.TrimSpace(v)
	}
	if ch.Target == "" {
		ch.Target = d.ascii(tagPageName)
	}
	if !massFound && ch.Target == "" {
		return ch, desc, false, nil
	}

	ch.Calibration = map[string]float64{}
	for k, v := range desc {
		if k == KeyMass {
			continue
		}
		if n, isNum := v.(float64); isNum {
			ch.Calibration[k] = n
		}
	}
	return ch, desc, true, nil
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func runMetadata(desc map[string]interface{}) map[string]string {
	meta := map[string]string{}
	for k, v := range desc {
		if !strings.HasPrefix(k, runKeyPrefix) {
			continue
		}
		switch val := v.(type) {
		case string:
			meta[k] = val
		case float64:
			meta[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			meta[k] = strconv.FormatBool(val)
		}
	}
	return meta
}

func decodePage(data []byte, d ifd) (*mat.Dense, error) {
	if d.uint(tagSamplesPerPixel, 1) != 1 {
		return nil, parseError(d.index, int64(d.offset), "only single sample pages are supported")
	}

	width := uint64(d.uint(tagImageWidth, 0))
	length := uint64(d.uint(tagImageLength, 0))
	if width*length > maxPagePixels {
		return nil, parseError(d.index, int64(d.offset), "page of %dx%d pixels is too large", width, length)
	}

	bits := d.uint(tagBitsPerSample, 1)
	format := d.uint(tagSampleFormat, sampleFormatUint)
	switch {
	case format == sampleFormatFloat && bits == 32:
		return decodeFloatPage(data, d)
	case format == sampleFormatUint:
		return decodeIntegerPage(data, d)
	}
	return nil, parseError(d.index, int64(d.offset), "unsupported sample format %d with %d bits", format, bits)
}

// decodeIntegerPage hands the page to x/image/tiff, which only decodes the
// first IFD of a file, by presenting the file with the first-IFD pointer
// redirected to this page
func decodeIntegerPage(data []byte, d ifd) (*mat.Dense, error) {
	view := &pageView{data: data}
	d.bo.PutUint32(view.ifd[:], d.offset)

	img, err := tiff.Decode(view)
	if err != nil {
		return nil, parseError(d.index, int64(d.offset), "decode: %v", err)
	}
	return ImageToDense(img), nil
}

func decodeFloatPage(data []byte, d ifd) (*mat.Dense, error) {
	width := uint64(d.uint(tagImageWidth, 0))
	length := uint64(d.uint(tagImageLength, 0))
	if width == 0 || length == 0 {
		return nil, parseError(d.index, int64(d.offset), "page has no dimensions")
	}
	cols, rows := int(width), int(length)
	need := rows * cols * 4
	if p := d.uint(tagPredictor, 1); p != 1 {
		return nil, parseError(d.index, int64(d.offset), "predictor %d is not supported for float pages", p)
	}

	offsets := d.uints(tagStripOffsets)
	counts := d.uints(tagStripByteCounts)
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return nil, parseError(d.index, int64(d.offset), "bad strip layout")
	}

	compression := d.uint(tagCompression, compressionNone)
	if compression == compressionNone && need > len(data) {
		return nil, parseError(d.index, int64(d.offset), "expected %d bytes of pixel data, file has %d", need, len(data))
	}
	var raw bytes.Buffer
	for i, off := range offsets {
		end := int64(off) + int64(counts[i])
		if end > int64(len(data)) {
			return nil, parseError(d.index, int64(off), "strip %d runs past end of file", i)
		}
		strip := data[int64(off):end]

		switch compression {
		case compressionNone:
			raw.Write(strip)
		case compressionDeflate, compressionZlib:
			zr, err := zlib.NewReader(bytes.NewReader(strip))
			if err != nil {
				return nil, parseError(d.index, int64(off), "strip %d: %v", i, err)
			}
			_, err = io.Copy(&raw, io.LimitReader(zr, int64(need-raw.Len())))
			zr.Close()
			if err != nil {
				return nil, parseError(d.index, int64(off), "strip %d: %v", i, err)
			}
		default:
			return nil, parseError(d.index, int64(d.offset), "compression %d is not supported for float pages", compression)
		}
	}

	if raw.Len() < need {
		return nil, parseError(d.index, int64(d.offset), "expected %d bytes of pixel data, got %d", need, raw.Len())
	}

	buf := raw.Bytes()
	values := make([]float64, rows*cols)
	for i := range values {
		values[i] = float64(math.Float32frombits(d.bo.Uint32(buf[4*i:])))
	}
	return mat.NewDense(rows, cols, values), nil
}

// ImageToDense converts a decoded image to counts. Gray images keep their raw
// values, anything else is reduced to 16-bit luminance.
func ImageToDense(img image.Image) *mat.Dense {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	result := mat.NewDense(height, width, nil)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			px, py := bounds.Min.X+x, bounds.Min.Y+y
			var v float64
			switch g := img.(type) {
			case *image.Gray16:
				v = float64(g.Gray16At(px, py).Y)
			case *image.Gray:
				v = float64(g.GrayAt(px, py).Y)
			default:
				v = float64(color.Gray16Model.Convert(img.At(px, py)).(color.Gray16).Y)
			}
			result.Set(y, x, v)
		}
	}
	return result
}

// pageView is an io.ReaderAt over the file bytes with header bytes 4..8 (the
// first IFD offset) replaced
type pageView struct {
	data []byte
	ifd  [4]byte
	pos  int64
}

func (v *pageView) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(v.data)) {
		return 0, io.EOF
	}

	n := copy(p, v.data[off:])
	for i := int64(4); i < 8; i++ {
		if i >= off && i < off+int64(n) {
			p[i-off] = v.ifd[i-4]
		}
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (v *pageView) Read(p []byte) (int, error) {
	n, err := v.ReadAt(p, v.pos)
	v.pos += int64(n)
	return n, err
}
