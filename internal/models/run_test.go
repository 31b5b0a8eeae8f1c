package models

import (
	"path/filepath"
	"testing"
)

func TestFieldOfViewNames(t *testing.T) {
	fov := FieldOfView{RunRoot: "/data/run", Dir: "Point12", ID: 12, ImagePath: DefaultFOVImagePath}

	want := filepath.Join("/data/run", "Point12", "RowNumber0", "Depth_Profile0", "Depth0", "Image.bmp")
	if got := fov.Source(); got != want {
		t.Errorf("Expected source %q, got %q", want, got)
	}
	if got := fov.LinkName(); got != "Image_point12.bmp" {
		t.Errorf("Expected link name Image_point12.bmp, got %q", got)
	}
}

func TestCombinationHas(t *testing.T) {
	c := Combination{Methods: []string{MethodGold, MethodTantalum}}
	if !c.Has(MethodGold) || c.Has(MethodEvents) {
		t.Errorf("Unexpected method membership for %v", c.Methods)
	}
}
