package volume

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

// Raw is a type-erased volume over a byte buffer. The element decoder is
// chosen once in NewRaw; Block volumes have no decoder and read as NaN.
type Raw struct {
	shape  []int
	kind   Kind
	data   []byte
	size   int
	decode func(b []byte) float64

	blind    float64
	hasBlind bool

	lo, hi float64
	ranged bool
}

// NewRaw wraps data as a volume of the given shape and element kind.
func NewRaw(shape []int, kind Kind, order binary.ByteOrder, data []byte) (*Raw, error) {
	if kind == Invalid || kind > Block {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedKind, kind)
	}
	if order == nil {
		order = binary.LittleEndian
	}
	r := &Raw{
		shape:  append([]int(nil), shape...),
		kind:   kind,
		data:   data,
		size:   kind.Size(),
		decode: decoderFor(kind, order),
	}
	if r.size > 0 && len(data) != Len(shape)*r.size {
		return nil, fmt.Errorf("%w: %d bytes for shape %v of %v", ErrShapeMismatch, len(data), shape, kind)
	}
	return r, nil
}

func decoderFor(kind Kind, order binary.ByteOrder) func([]byte) float64 {
	switch kind {
	case Uint8:
		return func(b []byte) float64 { return float64(b[0]) }
	case Int8:
		return func(b []byte) float64 { return float64(int8(b[0])) }
	case Uint16:
		return func(b []byte) float64 { return float64(order.Uint16(b)) }
	case Int16:
		return func(b []byte) float64 { return float64(int16(order.Uint16(b))) }
	case Uint32:
		return func(b []byte) float64 { return float64(order.Uint32(b)) }
	case Int32:
		return func(b []byte) float64 { return float64(int32(order.Uint32(b))) }
	case Uint64:
		return func(b []byte) float64 { return float64(order.Uint64(b)) }
	case Int64:
		return func(b []byte) float64 { return float64(int64(order.Uint64(b))) }
	case Float32:
		return func(b []byte) float64 { return float64(math.Float32frombits(order.Uint32(b))) }
	case Float64:
		return func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) }
	}
	return nil
}

// Shape returns a copy of the axis sizes.
func (r *Raw) Shape() []int { return slices.Clone(r.shape) }

func (r *Raw) Kind() Kind { return r.kind }

func (r *Raw) ValueAt(i int) float64 {
	if r.decode == nil {
		return math.NaN()
	}
	off := i * r.size
	return r.decode(r.data[off : off+r.size])
}

// SetBlind marks v as the "no data" sentinel of an 8-bit volume. Other
// kinds keep every sample in their range.
func (r *Raw) SetBlind(v float64) {
	r.blind = v
	r.hasBlind = true
	r.ranged = false
}

// Range scans the buffer once and caches the result. NaN samples are skipped.
func (r *Raw) Range() (lo, hi float64) {
	if r.ranged {
		return r.lo, r.hi
	}
	if r.decode == nil {
		return math.NaN(), math.NaN()
	}
	skip := r.hasBlind && r.size == 1
	lo, hi = math.Inf(1), math.Inf(-1)
	n := Len(r.shape)
	for i := 0; i < n; i++ {
		v := r.ValueAt(i)
		if skip && v == r.blind {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo > hi {
		lo, hi = 0, 0
	}
	r.lo, r.hi, r.ranged = lo, hi, true
	return lo, hi
}
