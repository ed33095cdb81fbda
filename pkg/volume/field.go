// Package volume provides the regular scalar volumes consumed by the contour
// engine: a small Field interface, a generic in-memory Grid, a type-erased Raw
// buffer and loaders for slice stacks and raw files.
package volume

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrShapeMismatch is returned when data length or slice sizes do not
	// agree with the declared shape.
	ErrShapeMismatch = errors.New("volume: shape mismatch")

	// ErrUnsupportedKind is returned for element kinds that cannot be decoded.
	ErrUnsupportedKind = errors.New("volume: unsupported element kind")
)

// Field is a read-only regular scalar volume.
//
// Samples are addressed by linear index x + sx*(y + sy*z) where Shape returns
// the axis sizes with the fastest-varying axis first.
type Field interface {
	// Shape returns the axis sizes (sx, sy, sz for a 3-D volume).
	Shape() []int

	// Kind reports the storage element type.
	Kind() Kind

	// ValueAt returns the sample at linear index i widened to float64.
	ValueAt(i int) float64

	// Range returns the global scalar extrema.
	Range() (lo, hi float64)
}

// Kind identifies the storage type of a volume's elements.
type Kind int

const (
	Invalid Kind = iota
	Uint8
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
	Int64
	Float32
	Float64
	// Block is an opaque element with no numeric interpretation.
	Block
)

var kindNames = [...]string{
	Invalid: "invalid",
	Uint8:   "uint8",
	Int8:    "int8",
	Uint16:  "uint16",
	Int16:   "int16",
	Uint32:  "uint32",
	Int32:   "int32",
	Uint64:  "uint64",
	Int64:   "int64",
	Float32: "float32",
	Float64: "float64",
	Block:   "block",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Size returns the element size in bytes, or 0 when the size is not fixed.
func (k Kind) Size() int {
	switch k {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Uint64, Int64, Float64:
		return 8
	}
	return 0
}

// Numeric reports whether elements of this kind can be read as a number.
func (k Kind) Numeric() bool {
	return k >= Uint8 && k <= Float64
}

// ParseKind converts a name such as "uint16" or "float32" to a Kind.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name && Kind(k) != Invalid {
			return Kind(k), nil
		}
	}
	return Invalid, fmt.Errorf("%w: %q", ErrUnsupportedKind, name)
}

// Dims returns the first three axis sizes of f. Missing axes are reported as 1.
func Dims(f Field) (sx, sy, sz int) {
	s := f.Shape()
	d := [3]int{1, 1, 1}
	copy(d[:], s)
	return d[0], d[1], d[2]
}

// Len returns the number of samples described by shape.
func Len(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
