package phantom

import (
	"fmt"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"isocontour/pkg/volume"
)

// Sampled is an SDF solid sampled onto a regular grid. Samples hold the
// negated signed distance, so the solid is where values exceed zero.
// Spacing and Origin map grid indices back to model coordinates.
type Sampled struct {
	Grid    *volume.Grid[float32]
	Spacing [3]float64
	Origin  [3]float64
}

// FromSDF samples s on a grid whose longest side has cells intervals. The
// bounding box is padded by one cell so the surface never touches the grid
// boundary.
func FromSDF(s sdf.SDF3, cells int) (*Sampled, error) {
	if s == nil {
		return nil, fmt.Errorf("phantom: nil SDF")
	}
	if cells < 1 {
		return nil, fmt.Errorf("phantom: need at least one cell, got %d", cells)
	}
	bb := s.BoundingBox()
	size := bb.Max.Sub(bb.Min)
	longest := max(size.X, size.Y, size.Z)
	if !(longest > 0) {
		return nil, fmt.Errorf("phantom: empty bounding box")
	}
	step := longest / float64(cells)

	out := &Sampled{Spacing: [3]float64{step, step, step}}
	dims := [3]float64{size.X, size.Y, size.Z}
	lo := [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	var shape [3]int
	for i := range dims {
		shape[i] = int(dims[i]/step+0.5) + 3
		out.Origin[i] = lo[i] - step
	}

	sx, sy, sz := shape[0], shape[1], shape[2]
	g, err := volume.NewGrid[float32](sx, sy, sz, nil)
	if err != nil {
		return nil, err
	}
	out.Grid = g
	for z := 0; z < sz; z++ {
		for y := 0; y < sy; y++ {
			for x := 0; x < sx; x++ {
				p := v3.Vec{
					X: out.Origin[0] + float64(x)*step,
					Y: out.Origin[1] + float64(y)*step,
					Z: out.Origin[2] + float64(z)*step,
				}
				g.Data[g.Index(x, y, z)] = float32(-s.Evaluate(p))
			}
		}
	}
	return out, nil
}

// Capsule returns a demonstration solid: a box with a sphere on top.
func Capsule(size float64) (sdf.SDF3, error) {
	box, err := sdf.Box3D(v3.Vec{X: size, Y: size, Z: size}, size/10)
	if err != nil {
		return nil, fmt.Errorf("phantom: box: %w", err)
	}
	ball, err := sdf.Sphere3D(size * 0.6)
	if err != nil {
		return nil, fmt.Errorf("phantom: sphere: %w", err)
	}
	ball = sdf.Transform3D(ball, sdf.Translate3d(v3.Vec{Z: size / 2}))
	return sdf.Union3D(box, ball), nil
}
