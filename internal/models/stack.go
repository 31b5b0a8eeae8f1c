package models

import (
	"fmt"
	"image"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"mibitools/pkg/errs"
)

// Channel represents a single labelled image plane of a MIBItiff stack
type Channel struct {
	// Mass is the mass of the detected species (0 when unknown)
	Mass float64

	// Target is the channel label, usually the antibody target or element
	Target string

	// Data holds the counts, one row per image row
	Data *mat.Dense

	// Calibration holds numeric per-page metadata (thresholds, correction factors)
	Calibration map[string]float64

	// Derived names the transform that produced this channel, empty for raw data
	Derived string
}

// Label returns the display name of the channel
func (c Channel) Label() string {
	if c.Target != "" {
		return c.Target
	}
	return FormatMass(c.Mass)
}

// Dims returns rows, cols of the channel data
func (c Channel) Dims() (int, int) {
	if c.Data == nil {
		return 0, 0
	}
	return c.Data.Dims()
}

// Counts returns the sum over all pixels
func (c Channel) Counts() float64 {
	if c.Data == nil {
		return 0
	}
	return mat.Sum(c.Data)
}

// WithData returns a copy of the channel carrying new data, a new label and the
// producing transform
func (c Channel) WithData(data *mat.Dense, target string, derived string) Channel {
	calib := make(map[string]float64, len(c.Calibration))
	for k, v := range c.Calibration {
		calib[k] = v
	}
	return Channel{
		Mass:        c.Mass,
		Target:      target,
		Data:        data,
		Calibration: calib,
		Derived:     derived,
	}
}

// FormatMass prints a mass without trailing zeros: 89, 88.91
func FormatMass(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}

// Stack is an ordered set of co-registered channels read from one file
type Stack struct {
	// Metadata holds run-level string metadata (mibi.* keys)
	Metadata map[string]string

	channels []Channel
	rows     int
	cols     int
}

// NewStack validates that all channels share identical dimensions
func NewStack(meta map[string]string, channels []Channel) (*Stack, error) {
	if len(channels) == 0 {
		return nil, errors.Wrap(errs.ErrMalformedInput, "stack has no channels")
	}

	rows, cols := channels[0].Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.Wrapf(errs.ErrMalformedInput, "channel %q has no data", channels[0].Label())
	}
	for _, ch := range channels[1:] {
		r, c := ch.Dims()
		if r != rows || c != cols {
			return nil, errors.Wrapf(errs.ErrShapeMismatch, "channel %q is %dx%d, stack is %dx%d",
				ch.Label(), c, r, cols, rows)
		}
	}

	if meta == nil {
		meta = map[string]string{}
	}
	return &Stack{
		Metadata: meta,
		channels: slices.Clone(channels),
		rows:     rows,
		cols:     cols,
	}, nil
}

// Dims returns rows, cols shared by every channel
func (s *Stack) Dims() (int, int) {
	return s.rows, s.cols
}

// Len returns the number of channels
func (s *Stack) Len() int {
	return len(s.channels)
}

// Channels returns the channels in file order. The returned slice is a copy.
func (s *Stack) Channels() []Channel {
	return slices.Clone(s.channels)
}

// Labels returns the channel labels in file order
func (s *Stack) Labels() []string {
	labels := make([]string, len(s.channels))
	for i, ch := range s.channels {
		labels[i] = ch.Label()
	}
	return labels
}

// Masses returns the channel masses sorted ascending
func (s *Stack) Masses() []float64 {
	masses := make([]float64, len(s.channels))
	for i, ch := range s.channels {
		masses[i] = ch.Mass
	}
	slices.Sort(masses)
	return masses
}

// Channel resolves a selector: exact label first, then mass ("89", "88.91"),
// then "Target(Mass)"
func (s *Stack) Channel(selector string) (Channel, error) {
	sel := strings.TrimSpace(selector)

	for _, ch := range s.channels {
		if ch.Label() == sel {
			return ch, nil
		}
	}

	if m, err := strconv.ParseFloat(sel, 64); err == nil {
		if ch, ok := s.ChannelByMass(m); ok {
			return ch, nil
		}
	}

	for _, ch := range s.channels {
		if fmt.Sprintf("%s(%s)", ch.Target, FormatMass(ch.Mass)) == sel {
			return ch, nil
		}
	}

	return Channel{}, errors.Wrapf(errs.ErrChannelNotFound, "%q (have %s)", selector, strings.Join(s.Labels(), ", "))
}

// ChannelByMass finds the channel with exactly the given mass
func (s *Stack) ChannelByMass(mass float64) (Channel, bool) {
	for _, ch := range s.channels {
		if ch.Mass == mass {
			return ch, true
		}
	}
	return Channel{}, false
}

// Select returns a new stack made of the selected channels in selector order
func (s *Stack) Select(selectors ...string) (*Stack, error) {
	chs := make([]Channel, 0, len(selectors))
	for _, sel := range selectors {
		ch, err := s.Channel(sel)
		if err != nil {
			return nil, err
		}
		chs = append(chs, ch)
	}
	return NewStack(s.Metadata, chs)
}

// With returns a new stack with extra channels appended, e.g. derived ones.
// An extra channel whose label is already taken is a naming collision.
func (s *Stack) With(extra ...Channel) (*Stack, error) {
	taken := make(map[string]bool, len(s.channels)+len(extra))
	for _, ch := range s.channels {
		taken[ch.Label()] = true
	}
	for _, ch := range extra {
		if taken[ch.Label()] {
			return nil, errors.Wrapf(errs.ErrNamingCollision, "channel %q already exists", ch.Label())
		}
		taken[ch.Label()] = true
	}
	return NewStack(s.Metadata, append(s.Channels(), extra...))
}

// Crop returns a new stack cut to r (x = column, y = row)
func (s *Stack) Crop(r image.Rectangle) (*Stack, error) {
	r = r.Intersect(image.Rect(0, 0, s.cols, s.rows))
	if r.Empty() {
		return nil, errors.Wrapf(errs.ErrMalformedInput, "crop %v is outside the %dx%d image", r, s.cols, s.rows)
	}

	chs := make([]Channel, len(s.channels))
	for i, ch := range s.channels {
		view := ch.Data.Slice(r.Min.Y, r.Max.Y, r.Min.X, r.Max.X)
		data := mat.DenseCopyOf(view)
		chs[i] = ch.WithData(data, ch.Target, ch.Derived)
	}
	return NewStack(s.Metadata, chs)
}
