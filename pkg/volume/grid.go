package volume

import (
	"fmt"
	"math"
	"reflect"
)

// Scalar is the set of element types a Grid can hold.
type Scalar interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64 | ~float32 | ~float64
}

// Grid is an in-memory 3-D volume backed by a flat slice.
//
// Range is computed on first use and cached. Writes made through Set reset the
// cache; callers writing Data directly must call ResetRange.
type Grid[T Scalar] struct {
	Data []T

	shape [3]int
	kind  Kind

	blind    T
	hasBlind bool

	lo, hi float64
	ranged bool
}

// NewGrid creates a sx*sy*sz grid. When data is nil a zeroed buffer is
// allocated, otherwise data must hold exactly sx*sy*sz samples.
func NewGrid[T Scalar](sx, sy, sz int, data []T) (*Grid[T], error) {
	if sx < 1 || sy < 1 || sz < 1 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%dx%d", ErrShapeMismatch, sx, sy, sz)
	}
	n := sx * sy * sz
	if data == nil {
		data = make([]T, n)
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: %d samples for %dx%dx%d", ErrShapeMismatch, len(data), sx, sy, sz)
	}
	return &Grid[T]{
		Data:  data,
		shape: [3]int{sx, sy, sz},
		kind:  kindOf[T](),
	}, nil
}

func kindOf[T Scalar]() Kind {
	var zero T
	switch reflect.TypeOf(zero).Kind() {
	case reflect.Uint8:
		return Uint8
	case reflect.Int8:
		return Int8
	case reflect.Uint16:
		return Uint16
	case reflect.Int16:
		return Int16
	case reflect.Uint32:
		return Uint32
	case reflect.Int32:
		return Int32
	case reflect.Uint64:
		return Uint64
	case reflect.Int64:
		return Int64
	case reflect.Float32:
		return Float32
	case reflect.Float64:
		return Float64
	}
	return Invalid
}

// Shape returns a copy of the axis sizes.
func (g *Grid[T]) Shape() []int { return []int{g.shape[0], g.shape[1], g.shape[2]} }

func (g *Grid[T]) Kind() Kind { return g.kind }

func (g *Grid[T]) ValueAt(i int) float64 { return float64(g.Data[i]) }

// Index returns the linear index of (x, y, z).
func (g *Grid[T]) Index(x, y, z int) int {
	return x + g.shape[0]*(y+g.shape[1]*z)
}

// At returns the sample at (x, y, z).
func (g *Grid[T]) At(x, y, z int) T {
	return g.Data[g.Index(x, y, z)]
}

// Set stores v at (x, y, z).
func (g *Grid[T]) Set(x, y, z int, v T) {
	g.Data[g.Index(x, y, z)] = v
	g.ranged = false
}

// SetBlind marks v as the "no data" sentinel. The sentinel is only honoured
// by Range for 8-bit grids.
func (g *Grid[T]) SetBlind(v T) {
	g.blind = v
	g.hasBlind = true
	g.ranged = false
}

// ResetRange drops the cached extrema.
func (g *Grid[T]) ResetRange() { g.ranged = false }

// Range returns the smallest and largest sample. Grids whose every sample is
// the blind value report (0, 0).
func (g *Grid[T]) Range() (lo, hi float64) {
	if g.ranged {
		return g.lo, g.hi
	}
	skip := g.hasBlind && g.kind.Size() == 1
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.Data {
		if skip && v == g.blind {
			continue
		}
		f := float64(v)
		if f < lo {
			lo = f
		}
		if f > hi {
			hi = f
		}
	}
	if lo > hi {
		lo, hi = 0, 0
	}
	g.lo, g.hi, g.ranged = lo, hi, true
	return lo, hi
}
