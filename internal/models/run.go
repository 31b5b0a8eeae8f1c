package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultFOVImagePath is the image location inside a Point<N> directory
const DefaultFOVImagePath = "RowNumber0/Depth_Profile0/Depth0/Image.bmp"

// FieldOfView locates one imaged region within a run
type FieldOfView struct {
	// RunRoot is the run directory
	RunRoot string

	// Dir is the directory name of the FOV, e.g. Point3
	Dir string

	// ID is the numeric point id parsed from Dir
	ID int

	// ImagePath is the image location relative to the FOV directory
	ImagePath string
}

// Source returns the full path of the FOV image
func (f FieldOfView) Source() string {
	return filepath.Join(f.RunRoot, f.Dir, filepath.FromSlash(f.ImagePath))
}

// LinkName returns the flat name used for the image in a common directory:
// Image.bmp in Point1 becomes Image_point1.bmp
func (f FieldOfView) LinkName() string {
	base := filepath.Base(filepath.FromSlash(f.ImagePath))
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s_%s%s", stem, strings.ToLower(f.Dir), ext)
}

// Background removal methods understood by the generator
const (
	MethodEvents     = "events"
	MethodGold       = "Au"
	MethodTantalum   = "Ta"
	MethodAutoEvents = "autoevents"
	MethodAutoGold   = "autoAu"
	MethodAutoTa     = "autoTa"
)

// ValidMethods lists every background removal method
var ValidMethods = []string{MethodEvents, MethodGold, MethodTantalum, MethodAutoEvents, MethodAutoGold, MethodAutoTa}

// Combination is one point of a background removal parameter sweep
type Combination struct {
	// RemoveBackground is false for the single "no removal" run
	RemoveBackground bool

	// UseDefaults marks a run with the generator's default parameters
	UseDefaults bool

	// Methods are the selected removal methods
	Methods []string

	EventThreshold    float64
	GoldThreshold     float64
	TantalumThreshold float64
}

// Has reports whether method is selected
func (c Combination) Has(method string) bool {
	for _, m := range c.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// ValidMethod reports whether m is a known removal method
func ValidMethod(m string) bool {
	for _, v := range ValidMethods {
		if v == m {
			return true
		}
	}
	return false
}
