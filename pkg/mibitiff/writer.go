package mibitiff

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"mibitools/internal/models"
)

// WriteOptions controls the page encoding
type WriteOptions struct {
	// Float writes 32-bit float pages instead of 16-bit unsigned ones
	Float bool

	// ImageType is stored under image.type, SIMS when empty
	ImageType string
}

type tagValue struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// Write encodes the stack as an uncompressed little-endian MIBItiff with one
// page per channel
func Write(w io.Writer, stack *models.Stack, opts WriteOptions) error {
	bo := binary.LittleEndian
	var buf bytes.Buffer

	buf.WriteString("II")
	binary.Write(&buf, bo, uint16(42))
	binary.Write(&buf, bo, uint32(0))
	nextPtr := 4

	rows, cols := stack.Dims()
	for _, ch := range stack.Channels() {
		desc, err := description(stack.Metadata, ch, opts)
		if err != nil {
			return err
		}

		pad(&buf)
		pixelOffset := buf.Len()
		bits, format := uint16(16), uint16(sampleFormatUint)
		if opts.Float {
			bits, format = 32, sampleFormatFloat
		}
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				v := ch.Data.At(r, c)
				if opts.Float {
					binary.Write(&buf, bo, math.Float32bits(float32(v)))
				} else {
					binary.Write(&buf, bo, toUint16(v))
				}
			}
		}
		pixelBytes := buf.Len() - pixelOffset

		tags := []tagValue{
			longTag(tagImageWidth, uint32(cols)),
			longTag(tagImageLength, uint32(rows)),
			shortTag(tagBitsPerSample, bits),
			shortTag(tagCompression, compressionNone),
			shortTag(tagPhotometric, 1),
			asciiTag(tagImageDescription, desc),
			longTag(tagStripOffsets, uint32(pixelOffset)),
			shortTag(tagSamplesPerPixel, 1),
			longTag(tagRowsPerStrip, uint32(rows)),
			longTag(tagStripByteCounts, uint32(pixelBytes)),
			asciiTag(tagPageName, ch.Label()),
			shortTag(tagSampleFormat, format),
		}
		sort.Slice(tags, func(i, j int) bool { return tags[i].tag < tags[j].tag })

		// Values that do not fit in an entry go before the IFD
		valueOffsets := make([]uint32, len(tags))
		for i, t := range tags {
			if len(t.data) > 4 {
				pad(&buf)
				valueOffsets[i] = uint32(buf.Len())
				buf.Write(t.data)
			}
		}

		pad(&buf)
		ifdOffset := buf.Len()
		patch(&buf, nextPtr, uint32(ifdOffset))

		binary.Write(&buf, bo, uint16(len(tags)))
		for i, t := range tags {
			binary.Write(&buf, bo, t.tag)
			binary.Write(&buf, bo, t.typ)
			binary.Write(&buf, bo, t.count)
			var field [4]byte
			if len(t.data) > 4 {
				bo.PutUint32(field[:], valueOffsets[i])
			} else {
				copy(field[:], t.data)
			}
			buf.Write(field[:])
		}
		nextPtr = buf.Len()
		binary.Write(&buf, bo, uint32(0))
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile writes the stack to path, creating parent directories
func WriteFile(path string, stack *models.Stack, opts WriteOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	var buf bytes.Buffer
	if err := Write(&buf, stack, opts); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func description(meta map[string]string, ch models.Channel, opts WriteOptions) (string, error) {
	desc := map[string]interface{}{}
	for k, v := range meta {
		desc[k] = v
	}
	for k, v := range ch.Calibration {
		desc[k] = v
	}

	imageType := opts.ImageType
	if imageType == "" {
		imageType = "SIMS"
	}
	desc[KeyImageType] = imageType
	desc[KeyMass] = ch.Mass
	desc[KeyTarget] = ch.Target

	b, err := json.Marshal(desc)
	if err != nil {
		return "", errors.Wrapf(err, "description for %s", ch.Label())
	}
	return string(b), nil
}

func toUint16(v float64) uint16 {
	v = math.Round(v)
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}

func pad(buf *bytes.Buffer) {
	if buf.Len()%2 != 0 {
		buf.WriteByte(0)
	}
}

func patch(buf *bytes.Buffer, at int, v uint32) {
	binary.LittleEndian.PutUint32(buf.Bytes()[at:at+4], v)
}

func shortTag(tag uint16, v uint16) tagValue {
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, v)
	return tagValue{tag: tag, typ: dtShort, count: 1, data: data}
}

func longTag(tag uint16, v uint32) tagValue {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, v)
	return tagValue{tag: tag, typ: dtLong, count: 1, data: data}
}

func asciiTag(tag uint16, s string) tagValue {
	data := append([]byte(s), 0)
	return tagValue{tag: tag, typ: dtASCII, count: uint32(len(data)), data: data}
}
