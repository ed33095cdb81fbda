// Package stl writes meshes as STL files, either in the binary layout or
// as ASCII text.
package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"isocontour/pkg/mesh"
)

// Triangle is one STL facet.
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

const (
	headerSize   = 80
	triangleSize = 50
)

// FromMesh flattens every part of m into facets. Facet normals follow the
// triangle winding; when a part carries vertex normals and the winding
// gives a degenerate facet, the mean vertex normal is used instead.
func FromMesh(m *mesh.Mesh) []Triangle {
	triangles := make([]Triangle, 0, m.NumTriangles())
	for _, p := range m.Parts() {
		triangles = append(triangles, FromPart(p)...)
	}
	return triangles
}

// FromPart converts the triangles of a single part.
func FromPart(p *mesh.Part) []Triangle {
	triangles := make([]Triangle, 0, p.NumTriangles())
	for _, t := range p.Triangles() {
		a, b, c := p.Corners(t)
		n := p.FaceNormal(t)
		if l := r3.Norm(n); l > 0 {
			n = r3.Scale(1/l, n)
		} else if p.HasNormals {
			m := p.Vertices()
			base := p.Base()
			sum := r3.Add(r3.Add(m[t[0]-base].Normal, m[t[1]-base].Normal), m[t[2]-base].Normal)
			if l := r3.Norm(sum); l > 0 {
				n = r3.Scale(1/l, sum)
			}
		}
		triangles = append(triangles, Triangle{
			Normal:  vec32(n),
			Vertex1: vec32(a),
			Vertex2: vec32(b),
			Vertex3: vec32(c),
		})
	}
	return triangles
}

func vec32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

// SaveToSTL writes triangles to filename in binary STL format.
func SaveToSTL(filename string, triangles []Triangle) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create STL file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if err := WriteBinary(w, "isocontour", triangles); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write STL file: %w", err)
	}
	return file.Close()
}

// SaveToASCII writes triangles to filename as an ASCII STL solid.
func SaveToASCII(filename, name string, triangles []Triangle) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create STL file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if err := WriteASCII(w, name, triangles); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write STL file: %w", err)
	}
	return file.Close()
}

// WriteBinary writes the 80 byte header, the facet count and one 50 byte
// record per facet.
func WriteBinary(w io.Writer, header string, triangles []Triangle) error {
	if uint64(len(triangles)) > math.MaxUint32 {
		return fmt.Errorf("too many triangles for STL: %d", len(triangles))
	}
	var head [headerSize]byte
	copy(head[:], header)
	if _, err := w.Write(head[:]); err != nil {
		return fmt.Errorf("failed to write STL header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return fmt.Errorf("failed to write triangle count: %w", err)
	}

	var rec [triangleSize]byte
	for _, t := range triangles {
		off := 0
		for _, v := range [4][3]float32{t.Normal, t.Vertex1, t.Vertex2, t.Vertex3} {
			for _, f := range v {
				binary.LittleEndian.PutUint32(rec[off:], math.Float32bits(f))
				off += 4
			}
		}
		// Attribute byte count stays zero.
		if _, err := w.Write(rec[:]); err != nil {
			return fmt.Errorf("failed to write triangle: %w", err)
		}
	}
	return nil
}

// WriteASCII writes triangles as an ASCII STL solid called name.
func WriteASCII(w io.Writer, name string, triangles []Triangle) error {
	if _, err := fmt.Fprintf(w, "solid %s\n", name); err != nil {
		return err
	}
	for _, t := range triangles {
		_, err := fmt.Fprintf(w,
			"  facet normal %e %e %e\n    outer loop\n"+
				"      vertex %e %e %e\n      vertex %e %e %e\n      vertex %e %e %e\n"+
				"    endloop\n  endfacet\n",
			t.Normal[0], t.Normal[1], t.Normal[2],
			t.Vertex1[0], t.Vertex1[1], t.Vertex1[2],
			t.Vertex2[0], t.Vertex2[1], t.Vertex2[2],
			t.Vertex3[0], t.Vertex3[1], t.Vertex3[2])
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "endsolid %s\n", name)
	return err
}

// SaveMesh writes every part of m to filename, in ASCII when ascii is set.
func SaveMesh(filename string, m *mesh.Mesh, ascii bool) error {
	triangles := FromMesh(m)
	if ascii {
		return SaveToASCII(filename, "isocontour", triangles)
	}
	return SaveToSTL(filename, triangles)
}
