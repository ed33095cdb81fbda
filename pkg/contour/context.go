package contour

import (
	"fmt"
	"time"

	"isocontour/pkg/volume"
)

// Stats summarises the most recent Extract call.
type Stats struct {
	// Voxels is the number of voxels crossed by the surface.
	Voxels int
	// Vertices and Triangles count the geometry appended to the part.
	Vertices  int
	Triangles int
	// Estimated is the histogram's voxel estimate used to pre-size the part.
	Estimated int
	Elapsed   time.Duration
}

// Context holds the configuration, bound volume and scratch buffers of the
// extraction engine.
type Context struct {
	transform   Mat4
	normals     normalMatrix
	lowerInside bool
	reverse     bool
	findNormals bool
	bins        int

	field      volume.Field
	sx, sy, sz int
	lo, hi     float64
	hist       *Histogram

	planes *planeRing
	edges  *edgeCache

	stats Stats
}

// NewContext returns an unbound context with an identity transform.
func NewContext() *Context {
	c := &Context{
		transform: Identity(),
		bins:      DefaultHistogramBins,
	}
	c.normals, _ = newNormalMatrix(c.transform)
	c.updateReverse()
	return c
}

// checkShape validates that f is a 3-D volume with at least two samples
// along every axis.
func checkShape(f volume.Field) (sx, sy, sz int, err error) {
	shape := f.Shape()
	if len(shape) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: rank %d", ErrUnsupportedShape, len(shape))
	}
	for _, n := range shape {
		if n < 2 {
			return 0, 0, 0, fmt.Errorf("%w: %v", ErrUnsupportedShape, shape)
		}
	}
	return shape[0], shape[1], shape[2], nil
}

// SetVolume binds f, rebuilding the span-space histogram. Slab buffers are
// reused when the XY footprint is unchanged. On error the previous binding
// is kept.
func (c *Context) SetVolume(f volume.Field) error {
	if f == nil {
		return fmt.Errorf("%w: nil volume", ErrMissingInput)
	}
	hist, err := BuildHistogram(f, c.bins)
	if err != nil {
		return err
	}
	return c.bind(f, hist)
}

// SetVolumeHistogram binds f with a histogram already built over it, which
// lets several contexts share one scan of the same volume. The histogram's
// resolution replaces the context's bin count. On error the previous
// binding is kept.
func (c *Context) SetVolumeHistogram(f volume.Field, h *Histogram) error {
	if f == nil {
		return fmt.Errorf("%w: nil volume", ErrMissingInput)
	}
	if h == nil {
		return fmt.Errorf("%w: nil histogram", ErrMissingInput)
	}
	if !f.Kind().Numeric() {
		return fmt.Errorf("%w: %v", ErrUnsupportedScalar, f.Kind())
	}
	return c.bind(f, h)
}

func (c *Context) bind(f volume.Field, hist *Histogram) error {
	sx, sy, sz, err := checkShape(f)
	if err != nil {
		return err
	}
	if hist.shape != [3]int{sx, sy, sz} {
		return fmt.Errorf("%w: histogram of %v for volume of %v", ErrHistogramMismatch, hist.shape, [3]int{sx, sy, sz})
	}
	lo, hi := f.Range()
	if hlo, hhi := hist.Range(); hlo != lo || hhi != hi {
		return fmt.Errorf("%w: histogram range [%g, %g], volume range [%g, %g]", ErrHistogramMismatch, hlo, hhi, lo, hi)
	}

	if c.planes == nil || sx != c.sx || sy != c.sy {
		c.planes = newPlaneRing(sx, sy)
		c.edges = newEdgeCache(sx, sy)
	}
	c.field = f
	c.sx, c.sy, c.sz = sx, sy, sz
	c.lo, c.hi = lo, hi
	c.hist = hist
	c.bins = hist.bins
	return nil
}

// SetTransform sets the voxel-to-output transform. A transform whose
// determinant, or whose linear block's determinant, is zero is rejected.
func (c *Context) SetTransform(m Mat4) error {
	if det := m.Det(); det == 0 {
		return fmt.Errorf("%w: determinant is zero", ErrInvalidTransform)
	}
	if det3 := m.Det3(); det3 == 0 {
		return fmt.Errorf("%w: linear part is singular", ErrInvalidTransform)
	}
	n, err := newNormalMatrix(m)
	if err != nil {
		return err
	}
	c.transform = m
	c.normals = n
	c.updateReverse()
	return nil
}

// SetLowerInside selects whether values below the isovalue are inside.
func (c *Context) SetLowerInside(lower bool) {
	c.lowerInside = lower
	c.updateReverse()
}

// SetFindNormals enables per-vertex normals from central-difference
// gradients.
func (c *Context) SetFindNormals(find bool) { c.findNormals = find }

// SetHistogramBins changes the span-space resolution, rebuilding the
// histogram of a bound volume.
func (c *Context) SetHistogramBins(n int) error {
	if n < 1 {
		return fmt.Errorf("contour: histogram needs at least one bin, got %d", n)
	}
	if c.field != nil {
		hist, err := BuildHistogram(c.field, n)
		if err != nil {
			return err
		}
		c.hist = hist
	}
	c.bins = n
	return nil
}

func (c *Context) updateReverse() {
	c.reverse = c.lowerInside != (c.transform.Det3() < 0)
}

// Bound reports whether a volume is bound.
func (c *Context) Bound() bool { return c.field != nil }

// Volume returns the bound volume, or nil.
func (c *Context) Volume() volume.Field { return c.field }

// Transform returns the current transform.
func (c *Context) Transform() Mat4 { return c.transform }

// LowerInside reports the inside convention.
func (c *Context) LowerInside() bool { return c.lowerInside }

// FindNormals reports whether normals are computed.
func (c *Context) FindNormals() bool { return c.findNormals }

// Reverse reports whether triangle winding is flipped.
func (c *Context) Reverse() bool { return c.reverse }

// Range returns the scalar range of the bound volume.
func (c *Context) Range() (lo, hi float64) { return c.lo, c.hi }

// Histogram returns the span-space histogram of the bound volume, or nil.
func (c *Context) Histogram() *Histogram { return c.hist }

// Stats returns the counters of the last Extract call.
func (c *Context) Stats() Stats { return c.stats }
