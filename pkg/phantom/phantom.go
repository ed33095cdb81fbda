// Package phantom builds synthetic volumes with known isosurfaces for tests
// and demonstrations.
package phantom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"isocontour/pkg/volume"
)

// Sphere returns an n*n*n grid holding radius minus the distance to the
// grid centre. Its zero isosurface is a sphere of the given radius.
func Sphere(n int, radius float64) (*volume.Grid[float64], error) {
	c := float64(n-1) / 2
	return Field(n, n, n, func(p r3.Vec) float64 {
		return radius - r3.Norm(r3.Sub(p, r3.Vec{X: c, Y: c, Z: c}))
	})
}

// HotVoxel returns an n*n*n grid of zeros with a single 1 at the centre
// sample.
func HotVoxel(n int) (*volume.Grid[uint8], error) {
	g, err := volume.NewGrid[uint8](n, n, n, nil)
	if err != nil {
		return nil, err
	}
	g.Set(n/2, n/2, n/2, 1)
	return g, nil
}

// Corner returns the 2x2x2 grid whose only non-zero sample is (1, 1, 1).
func Corner() *volume.Grid[float64] {
	g, _ := volume.NewGrid(2, 2, 2, []float64{0, 0, 0, 0, 0, 0, 0, 1})
	return g
}

// Field samples fn at every integer point of a sx*sy*sz grid.
func Field(sx, sy, sz int, fn func(p r3.Vec) float64) (*volume.Grid[float64], error) {
	g, err := volume.NewGrid[float64](sx, sy, sz, nil)
	if err != nil {
		return nil, err
	}
	for z := 0; z < sz; z++ {
		for y := 0; y < sy; y++ {
			for x := 0; x < sx; x++ {
				g.Data[g.Index(x, y, z)] = fn(r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)})
			}
		}
	}
	return g, nil
}

// Ramp returns a grid whose value grows linearly along axis (0, 1 or 2).
func Ramp(sx, sy, sz, axis int) (*volume.Grid[float64], error) {
	if axis < 0 || axis > 2 {
		return nil, fmt.Errorf("phantom: bad axis %d", axis)
	}
	return Field(sx, sy, sz, func(p r3.Vec) float64 {
		return [3]float64{p.X, p.Y, p.Z}[axis]
	})
}

// Noise returns a grid of deterministic pseudo-random values in [0, 1).
func Noise(sx, sy, sz int, seed uint64) (*volume.Grid[float64], error) {
	state := seed*2862933555777941757 + 3037000493
	return Field(sx, sy, sz, func(r3.Vec) float64 {
		state = state*6364136223846793005 + 1442695040888963407
		return float64(state>>11) / math.Exp2(53)
	})
}
