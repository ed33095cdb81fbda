// Package mesh holds triangle soups produced by surface extraction. A Mesh
// owns one global vertex array and an ordered list of parts; each part
// covers a contiguous range of that array and lists triangles by global index.
package mesh

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vertex is an output vertex. Pos is homogeneous; Normal is the zero vector
// when the owning part carries no normals.
type Vertex struct {
	Pos    [4]float64
	Normal r3.Vec
}

// Point returns the Cartesian position of v.
func (v Vertex) Point() r3.Vec {
	w := v.Pos[3]
	if w == 0 || w == 1 {
		return r3.Vec{X: v.Pos[0], Y: v.Pos[1], Z: v.Pos[2]}
	}
	return r3.Vec{X: v.Pos[0] / w, Y: v.Pos[1] / w, Z: v.Pos[2] / w}
}

// Mesh is a growable set of parts sharing one vertex array.
type Mesh struct {
	vertices []Vertex
	parts    []*Part
}

// New returns an empty mesh.
func New() *Mesh {
	return &Mesh{}
}

// BeginPart seals the current part and starts a new one. The hints pre-size
// storage; appending beyond them is always allowed.
func (m *Mesh) BeginPart(name string, vertexHint, triangleHint int) *Part {
	if n := len(m.parts); n > 0 {
		m.parts[n-1].sealed = true
	}
	if vertexHint > 0 {
		m.vertices = slices.Grow(m.vertices, vertexHint)
	}
	p := &Part{
		Name: name,
		mesh: m,
		base: len(m.vertices),
	}
	if triangleHint > 0 {
		p.triangles = make([][3]int, 0, triangleHint)
	}
	m.parts = append(m.parts, p)
	return p
}

// AppendPart copies src, which may belong to another mesh, into m as a new
// part and returns it.
func (m *Mesh) AppendPart(src *Part) *Part {
	p := m.BeginPart(src.Name, src.count, len(src.triangles))
	p.HasNormals = src.HasNormals
	m.vertices = append(m.vertices, src.Vertices()...)
	p.count = src.count
	shift := p.base - src.base
	for _, t := range src.triangles {
		p.triangles = append(p.triangles, [3]int{t[0] + shift, t[1] + shift, t[2] + shift})
	}
	return p
}

// Parts returns the parts in creation order.
func (m *Mesh) Parts() []*Part { return m.parts }

// Vertices returns the global vertex array.
func (m *Mesh) Vertices() []Vertex { return m.vertices }

// Vertex returns the vertex with global index i.
func (m *Mesh) Vertex(i int) Vertex { return m.vertices[i] }

// NumVertices returns the number of vertices across all parts.
func (m *Mesh) NumVertices() int { return len(m.vertices) }

// NumTriangles returns the number of triangles across all parts.
func (m *Mesh) NumTriangles() int {
	n := 0
	for _, p := range m.parts {
		n += len(p.triangles)
	}
	return n
}

// Part is one extraction result inside a Mesh.
type Part struct {
	Name string

	// HasNormals reports whether vertex normals were computed.
	HasNormals bool

	mesh      *Mesh
	base      int
	count     int
	triangles [][3]int
	sealed    bool
}

// AddVertex appends v and returns its global index.
func (p *Part) AddVertex(v Vertex) int {
	if p.sealed {
		panic("mesh: append to sealed part " + p.Name)
	}
	p.mesh.vertices = append(p.mesh.vertices, v)
	p.count++
	return p.base + p.count - 1
}

// AddTriangle appends a triangle given by global vertex indices.
func (p *Part) AddTriangle(a, b, c int) {
	if p.sealed {
		panic("mesh: append to sealed part " + p.Name)
	}
	p.triangles = append(p.triangles, [3]int{a, b, c})
}

// Base returns the global index of the part's first vertex.
func (p *Part) Base() int { return p.base }

// NumVertices returns the number of vertices in the part.
func (p *Part) NumVertices() int { return p.count }

// NumTriangles returns the number of triangles in the part.
func (p *Part) NumTriangles() int { return len(p.triangles) }

// Vertices returns the part's vertices. Element i has global index Base()+i.
func (p *Part) Vertices() []Vertex {
	return p.mesh.vertices[p.base : p.base+p.count]
}

// Triangles returns the part's triangles as global vertex indices.
func (p *Part) Triangles() [][3]int { return p.triangles }

// Corners returns the Cartesian corner positions of triangle t.
func (p *Part) Corners(t [3]int) (a, b, c r3.Vec) {
	vs := p.mesh.vertices
	return vs[t[0]].Point(), vs[t[1]].Point(), vs[t[2]].Point()
}

// FaceNormal returns the unnormalised right-hand normal of triangle t.
func (p *Part) FaceNormal(t [3]int) r3.Vec {
	a, b, c := p.Corners(t)
	return r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
}
