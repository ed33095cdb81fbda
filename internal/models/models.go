package models

import (
	"fmt"
	"strings"
)

// Spacing is the physical distance between neighbouring samples along
// each axis, in mm.
type Spacing struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Array returns the spacing as (x, y, z).
func (s Spacing) Array() [3]float64 {
	return [3]float64{s.X, s.Y, s.Z}
}

// Valid reports whether every component is positive.
func (s Spacing) Valid() bool {
	return s.X > 0 && s.Y > 0 && s.Z > 0
}

// Axis selects one of the three volume axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// ParseAxis accepts "x", "y" or "z", in any case.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("invalid axis %q: must be x, y or z", s)
}
