package mibitiff

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"

	"mibitools/pkg/errs"
)

// TIFF tags used by MIBItiff pages
const (
	tagNewSubfileType   = 254
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagImageDescription = 270
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagPageName         = 285
	tagPredictor        = 317
	tagSampleFormat     = 339
)

// TIFF field types
const (
	dtByte     = 1
	dtASCII    = 2
	dtShort    = 3
	dtLong     = 4
	dtRational = 5
)

var typeSize = map[uint16]uint32{
	dtByte:     1,
	dtASCII:    1,
	dtShort:    2,
	dtLong:     4,
	dtRational: 8,
}

const (
	compressionNone    = 1
	compressionDeflate = 8
	compressionZlib    = 32946

	sampleFormatUint  = 1
	sampleFormatFloat = 3

	ifdEntrySize = 12
)

// ParseError is returned for structural problems in a file. Page is the
// zero based IFD index, Offset the byte offset the problem was found at.
type ParseError struct {
	Page   int
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("page %d at offset %d: %v", e.Page, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseError(page int, offset int64, format string, a ...interface{}) error {
	return &ParseError{Page: page, Offset: offset, Err: errors.Wrapf(errs.ErrMalformedInput, format, a...)}
}

type ifdEntry struct {
	typ   uint16
	count uint32
	value []byte
}

// ifd is one parsed image file directory
type ifd struct {
	index   int
	offset  uint32
	bo      binary.ByteOrder
	entries map[uint16]ifdEntry
}

func parseHeader(data []byte) (binary.ByteOrder, uint32, error) {
	if len(data) < 8 {
		return nil, 0, parseError(-1, 0, "file too short for a TIFF header")
	}

	var bo binary.ByteOrder
	switch string(data[0:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, 0, parseError(-1, 0, "bad byte order mark %q", data[0:2])
	}

	if bo.Uint16(data[2:4]) != 42 {
		return nil, 0, parseError(-1, 2, "not a classic TIFF (magic %d)", bo.Uint16(data[2:4]))
	}
	return bo, bo.Uint32(data[4:8]), nil
}

// readIFDs walks the IFD chain starting at first
func readIFDs(data []byte, bo binary.ByteOrder, first uint32) ([]ifd, error) {
	var result []ifd
	seen := map[uint32]bool{}

	for off := first; off != 0; {
		index := len(result)
		if seen[off] {
			return nil, parseError(index, int64(off), "IFD loop")
		}
		seen[off] = true

		d, next, err := readIFD(data, bo, off, index)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
		off = next
	}

	if len(result) == 0 {
		return nil, parseError(0, 4, "no pages")
	}
	return result, nil
}

func readIFD(data []byte, bo binary.ByteOrder, off uint32, index int) (ifd, uint32, error) {
	d := ifd{index: index, offset: off, bo: bo, entries: map[uint16]ifdEntry{}}

	if int64(off)+2 > int64(len(data)) {
		return d, 0, parseError(index, int64(off), "IFD offset beyond end of file")
	}
	n := uint32(bo.Uint16(data[off : off+2]))
	end := int64(off) + 2 + int64(n)*ifdEntrySize + 4
	if end > int64(len(data)) {
		return d, 0, parseError(index, int64(off), "IFD with %d entries runs past end of file", n)
	}

	for i := uint32(0); i < n; i++ {
		p := off + 2 + i*ifdEntrySize
		raw := data[p : p+ifdEntrySize]
		tag := bo.Uint16(raw[0:2])
		typ := bo.Uint16(raw[2:4])
		count := bo.Uint32(raw[4:8])

		size, known := typeSize[typ]
		if !known {
			// Unknown field types are allowed by the format and simply skipped
			continue
		}
		total := int64(size) * int64(count)

		var value []byte
		if total <= 4 {
			value = raw[8 : 8+total]
		} else {
			voff := int64(bo.Uint32(raw[8:12]))
			if voff+total > int64(len(data)) {
				return d, 0, parseError(index, int64(p), "tag %d value runs past end of file", tag)
			}
			value = data[voff : voff+total]
		}
		d.entries[tag] = ifdEntry{typ: typ, count: count, value: value}
	}

	next := bo.Uint32(data[end-4 : end])
	return d, next, nil
}

// uints returns the values of a SHORT or LONG tag
func (d ifd) uints(tag uint16) []uint32 {
	e, ok := d.entries[tag]
	if !ok {
		return nil
	}

	out := make([]uint32, 0, e.count)
	for i := uint32(0); i < e.count; i++ {
		switch e.typ {
		case dtByte:
			out = append(out, uint32(e.value[i]))
		case dtShort:
			out = append(out, uint32(d.bo.Uint16(e.value[2*i:])))
		case dtLong:
			out = append(out, d.bo.Uint32(e.value[4*i:]))
		}
	}
	return out
}

// uint returns the first value of a tag, or def when it is absent
func (d ifd) uint(tag uint16, def uint32) uint32 {
	v := d.uints(tag)
	if len(v) == 0 {
		return def
	}
	return v[0]
}

// ascii returns an ASCII tag as a string. Bytes that are not valid UTF-8 are
// taken to be ISO-8859-1.
func (d ifd) ascii(tag uint16) string {
	e, ok := d.entries[tag]
	if !ok || e.typ != dtASCII {
		return ""
	}

	b := e.value
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	if !utf8.Valid(b) {
		if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(b); err == nil {
			b = decoded
		}
	}
	return strings.TrimSpace(string(b))
}
