package contour

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"isocontour/pkg/mesh"
)

// Empirical marching cubes yield per crossed voxel, used to pre-size parts.
const (
	facesPerVoxel    = 2.15
	verticesPerVoxel = 1.15
)

// Extract appends the isosurface at iso to dst as a new part. An isovalue
// outside the open range of the volume yields an empty part.
func (c *Context) Extract(dst *mesh.Mesh, iso float64) (*mesh.Part, error) {
	if dst == nil {
		return nil, fmt.Errorf("%w: nil mesh", ErrMissingInput)
	}
	if c.field == nil {
		return nil, fmt.Errorf("%w: no volume bound", ErrMissingInput)
	}
	if math.IsNaN(iso) || math.IsInf(iso, 0) {
		return nil, fmt.Errorf("%w: %v", ErrNonFiniteIsovalue, iso)
	}

	start := time.Now()
	c.stats = Stats{}
	name := "iso " + strconv.FormatFloat(iso, 'g', -1, 64)

	if !(iso > c.lo && iso < c.hi) {
		part := dst.BeginPart(name, 0, 0)
		part.HasNormals = c.findNormals
		c.stats.Elapsed = time.Since(start)
		return part, nil
	}

	est := c.hist.EstimateVoxelCount(iso)
	c.stats.Estimated = est
	part := dst.BeginPart(name, int(verticesPerVoxel*float64(est)), int(facesPerVoxel*float64(est)))
	part.HasNormals = c.findNormals

	s := scan{
		ctx:     c,
		part:    part,
		normals: c.normals,
	}
	if !c.lowerInside {
		s.normals = s.normals.negated()
	}

	c.planes.reset(c.field.ValueAt, c.sz, iso)
	c.edges.reset()
	for z := 0; z < c.sz-1; z++ {
		if z > 0 {
			c.planes.advance()
			c.edges.advance()
		}
		s.slab(z)
	}

	c.stats.Elapsed = time.Since(start)
	return part, nil
}

// scan holds the per-call state of one extraction.
type scan struct {
	ctx     *Context
	part    *mesh.Part
	normals normalMatrix

	value [8]float64
	grad  [8]r3.Vec
}

// slab processes every voxel between planes z and z+1.
func (s *scan) slab(z int) {
	c := s.ctx
	planes := c.planes
	for y := 0; y < c.sy-1; y++ {
		for x := 0; x < c.sx-1; x++ {
			code := 0
			for i, k := range corners {
				v := planes.at(k[2], x+k[0], y+k[1])
				s.value[i] = v
				if v > 0 {
					code |= 1 << i
				}
			}
			if code == 0 || code == 0xff {
				continue
			}
			c.stats.Voxels++

			if c.findNormals {
				for i, k := range corners {
					s.grad[i] = s.gradient(x+k[0], y+k[1], z, k[2])
				}
			}

			mask := edgeTable[code]
			for e := 0; e < 12; e++ {
				if mask&(1<<e) == 0 || c.edges.get(e, x, y) != noVertex {
					continue
				}
				c.edges.set(e, x, y, int32(s.vertex(e, x, y, z)))
			}

			tri := &triTable[code]
			for i := 0; tri[i] >= 0; i += 3 {
				a := int(c.edges.get(int(tri[i]), x, y))
				b := int(c.edges.get(int(tri[i+1]), x, y))
				d := int(c.edges.get(int(tri[i+2]), x, y))
				if c.reverse {
					b, d = d, b
				}
				s.part.AddTriangle(a, b, d)
				c.stats.Triangles++
			}
		}
	}
}

// vertex interpolates the crossing on edge e of voxel (x, y, z), appends it
// to the part and returns its index.
func (s *scan) vertex(e, x, y, z int) int {
	c := s.ctx
	ce := &cubeEdges[e]
	va, vb := s.value[ce.a], s.value[ce.b]
	t := va / (va - vb)

	ka := corners[ce.a]
	p := [3]float64{
		float64(x + ka[0]),
		float64(y + ka[1]),
		float64(z + ka[2]),
	}
	p[ce.axis] += t

	v := mesh.Vertex{Pos: c.transform.Apply(p[0], p[1], p[2])}
	if c.findNormals {
		ga, gb := s.grad[ce.a], s.grad[ce.b]
		g := r3.Add(ga, r3.Scale(t, r3.Sub(gb, ga)))
		n := s.normals.apply(g)
		if l := r3.Norm(n); l > 0 {
			v.Normal = r3.Scale(1/l, n)
		}
	}
	c.stats.Vertices++
	return s.part.AddVertex(v)
}

// gradient estimates the field gradient at sample (x, y) on plane z+dz with
// central differences, falling back to one-sided differences on the volume
// boundary.
func (s *scan) gradient(x, y, z, dz int) r3.Vec {
	c := s.ctx
	pl := c.planes
	return r3.Vec{
		X: (pl.at(dz, x+1, y) - pl.at(dz, x-1, y)) / span(x, c.sx),
		Y: (pl.at(dz, x, y+1) - pl.at(dz, x, y-1)) / span(y, c.sy),
		Z: (pl.at(dz+1, x, y) - pl.at(dz-1, x, y)) / span(z+dz, c.sz),
	}
}

// span is the distance between the clamped neighbours of i on an axis of n
// samples.
func span(i, n int) float64 {
	return float64(min(i+1, n-1) - max(i-1, 0))
}
