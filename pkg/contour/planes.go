package contour

// planeRing caches the four padded XY planes z-1, z, z+1 and z+2 around the
// slab being scanned, each holding sample-minus-isovalue.
//
// A plane stores (sx+2)*(sy+2) values. Sample (x, y) lives at slot
// (x+1) + (sx+2)*(y+1); the one-sample border replicates the nearest row or
// column, so x and y may range over [-1, sx] and [-1, sy]. Plane indices
// outside [0, sz-1] are clamped, so plane z-1 at z=0 repeats plane 0 and
// plane z+2 near the top repeats plane sz-1.
type planeRing struct {
	sx, sy, sz int
	stride     int
	size       int
	buf        []float64

	// head is the slot number of plane z-1.
	head int
	z    int

	sample func(int) float64
	iso    float64
}

func newPlaneRing(sx, sy int) *planeRing {
	stride := sx + 2
	size := stride * (sy + 2)
	return &planeRing{
		sx:     sx,
		sy:     sy,
		stride: stride,
		size:   size,
		buf:    make([]float64, 4*size),
	}
}

// reset loads the planes around z=0 from sample, a sz-plane volume reader.
func (r *planeRing) reset(sample func(int) float64, sz int, iso float64) {
	r.sample = sample
	r.sz = sz
	r.iso = iso
	r.head = 0
	r.z = 0
	for dz := -1; dz <= 2; dz++ {
		r.load(dz)
	}
}

// advance moves the window up one plane. Planes z, z+1 and z+2 become
// z-1, z and z+1 without copying; only the new z+2 plane is read.
func (r *planeRing) advance() {
	r.head = (r.head + 1) & 3
	r.z++
	r.load(2)
}

// plane returns the clamped volume Z index held at offset dz.
func (r *planeRing) plane(dz int) int {
	z := r.z + dz
	if z < 0 {
		return 0
	}
	if z > r.sz-1 {
		return r.sz - 1
	}
	return z
}

func (r *planeRing) offset(dz int) int {
	return ((r.head + dz + 1) & 3) * r.size
}

func (r *planeRing) index(x, y int) int {
	return (x + 1) + r.stride*(y+1)
}

// at returns the cached value of sample (x, y) on plane z+dz.
func (r *planeRing) at(dz, x, y int) float64 {
	return r.buf[r.offset(dz)+r.index(x, y)]
}

func (r *planeRing) load(dz int) {
	p := r.buf[r.offset(dz) : r.offset(dz)+r.size]
	base := r.sx * r.sy * r.plane(dz)
	for y := 0; y < r.sy; y++ {
		row := p[r.index(0, y):]
		src := base + r.sx*y
		for x := 0; x < r.sx; x++ {
			row[x] = r.sample(src+x) - r.iso
		}
		p[r.index(-1, y)] = row[0]
		p[r.index(r.sx, y)] = row[r.sx-1]
	}
	copy(r.row(p, -1), r.row(p, 0))
	copy(r.row(p, r.sy), r.row(p, r.sy-1))
}

// row returns padded row y of plane p, border columns included.
func (r *planeRing) row(p []float64, y int) []float64 {
	start := r.index(-1, y)
	return p[start : start+r.stride]
}
