package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the geometry of a part.
type Summary struct {
	Vertices  int
	Triangles int

	// Bounds is the axis-aligned box around all vertices.
	Bounds r3.Box

	// EdgeMean and EdgeStdDev describe triangle edge lengths.
	EdgeMean   float64
	EdgeStdDev float64

	// Area is the total triangle area.
	Area float64
}

// Summarize computes bounds, area and edge-length statistics of p.
func (p *Part) Summarize() Summary {
	s := Summary{
		Vertices:  p.count,
		Triangles: len(p.triangles),
	}
	if p.count == 0 {
		return s
	}

	lo := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, v := range p.Vertices() {
		q := v.Point()
		lo = r3.Vec{X: math.Min(lo.X, q.X), Y: math.Min(lo.Y, q.Y), Z: math.Min(lo.Z, q.Z)}
		hi = r3.Vec{X: math.Max(hi.X, q.X), Y: math.Max(hi.Y, q.Y), Z: math.Max(hi.Z, q.Z)}
	}
	s.Bounds = r3.Box{Min: lo, Max: hi}

	if len(p.triangles) == 0 {
		return s
	}
	lengths := make([]float64, 0, 3*len(p.triangles))
	for _, t := range p.triangles {
		a, b, c := p.Corners(t)
		lengths = append(lengths, r3.Norm(r3.Sub(b, a)), r3.Norm(r3.Sub(c, b)), r3.Norm(r3.Sub(a, c)))
		s.Area += 0.5 * r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a)))
	}
	s.EdgeMean, s.EdgeStdDev = stat.MeanStdDev(lengths, nil)
	return s
}
