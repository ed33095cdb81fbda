package contour

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mat4 is a row-major homogeneous transform from voxel index space to
// output space.
type Mat4 [16]float64

// Identity returns the identity transform.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Affine returns the transform that scales voxel indices by spacing and
// then translates by origin.
func Affine(spacing, origin [3]float64) Mat4 {
	return Mat4{
		spacing[0], 0, 0, origin[0],
		0, spacing[1], 0, origin[1],
		0, 0, spacing[2], origin[2],
		0, 0, 0, 1,
	}
}

// Mul returns m*n.
func (m Mat4) Mul(n Mat4) Mat4 {
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var s float64
			for k := 0; k < 4; k++ {
				s += m[4*r+k] * n[4*k+c]
			}
			out[4*r+c] = s
		}
	}
	return out
}

// Apply transforms the point (x, y, z, 1).
func (m Mat4) Apply(x, y, z float64) [4]float64 {
	return [4]float64{
		m[0]*x + m[1]*y + m[2]*z + m[3],
		m[4]*x + m[5]*y + m[6]*z + m[7],
		m[8]*x + m[9]*y + m[10]*z + m[11],
		m[12]*x + m[13]*y + m[14]*z + m[15],
	}
}

// Det returns the determinant of m.
func (m Mat4) Det() float64 {
	return mat.Det(mat.NewDense(4, 4, m[:]))
}

// linear returns the upper-left 3x3 block of m.
func (m Mat4) linear() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		m[0], m[1], m[2],
		m[4], m[5], m[6],
		m[8], m[9], m[10],
	})
}

// Det3 returns the determinant of the upper-left 3x3 block of m.
func (m Mat4) Det3() float64 {
	return mat.Det(m.linear())
}

// normalMatrix maps gradients to output space: the transpose of the inverse
// of the linear block of a transform.
type normalMatrix [9]float64

func newNormalMatrix(m Mat4) (normalMatrix, error) {
	var inv mat.Dense
	if err := inv.Inverse(m.linear()); err != nil {
		// An ill-conditioned but finite inverse is still usable for normals.
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return normalMatrix{}, fmt.Errorf("%w: %v", ErrInvalidTransform, err)
		}
	}
	var n normalMatrix
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			n[3*r+c] = inv.At(c, r)
		}
	}
	return n, nil
}

func (n *normalMatrix) apply(g r3.Vec) r3.Vec {
	return r3.Vec{
		X: n[0]*g.X + n[1]*g.Y + n[2]*g.Z,
		Y: n[3]*g.X + n[4]*g.Y + n[5]*g.Z,
		Z: n[6]*g.X + n[7]*g.Y + n[8]*g.Z,
	}
}

func (n normalMatrix) negated() normalMatrix {
	for i := range n {
		n[i] = -n[i]
	}
	return n
}
