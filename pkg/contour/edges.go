package contour

const noVertex int32 = -1

const (
	axisX = iota
	axisY
	axisZ
)

// corners holds the offset of each voxel corner from the voxel origin.
var corners = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// cubeEdge describes one of the twelve voxel edges. Corner a is the end with
// the lower coordinate, so a crossing is interpolated the same way by every
// voxel sharing the edge. The edge belongs to the sample at (x+dx, y+dy) on
// the lower (layer 0) or upper (layer 1) plane of the slab.
type cubeEdge struct {
	a, b   int
	axis   int
	dx, dy int
	layer  int
}

var cubeEdges = [12]cubeEdge{
	{a: 0, b: 1, axis: axisX},
	{a: 1, b: 2, axis: axisY, dx: 1},
	{a: 3, b: 2, axis: axisX, dy: 1},
	{a: 0, b: 3, axis: axisY},
	{a: 4, b: 5, axis: axisX, layer: 1},
	{a: 5, b: 6, axis: axisY, dx: 1, layer: 1},
	{a: 7, b: 6, axis: axisX, dy: 1, layer: 1},
	{a: 4, b: 7, axis: axisY, layer: 1},
	{a: 0, b: 4, axis: axisZ},
	{a: 1, b: 5, axis: axisZ, dx: 1},
	{a: 2, b: 6, axis: axisZ, dx: 1, dy: 1},
	{a: 3, b: 7, axis: axisZ, dy: 1},
}

// edgeCache remembers the vertex created on each edge of the current slab.
//
// Each sample (x, y) owns five slots: its +X and +Y edges on the lower and
// upper planes and its +Z edge between them, 5*sx*sy slots in all. When the
// scan moves up one slab the upper plane's X/Y slots become the lower ones
// and every other slot is cleared.
type edgeCache struct {
	sx, sy int

	// lower and upper hold X edges at [x+sx*y] and Y edges at [sx*sy+x+sx*y].
	lower, upper []int32
	vertical     []int32
}

func newEdgeCache(sx, sy int) *edgeCache {
	n := sx * sy
	return &edgeCache{
		sx:       sx,
		sy:       sy,
		lower:    make([]int32, 2*n),
		upper:    make([]int32, 2*n),
		vertical: make([]int32, n),
	}
}

// reset clears every slot.
func (c *edgeCache) reset() {
	fill(c.lower, noVertex)
	fill(c.upper, noVertex)
	fill(c.vertical, noVertex)
}

// advance shifts the cache to the next slab.
func (c *edgeCache) advance() {
	c.lower, c.upper = c.upper, c.lower
	fill(c.upper, noVertex)
	fill(c.vertical, noVertex)
}

// slot returns the backing array and index of edge e of voxel (x, y).
func (c *edgeCache) slot(e, x, y int) ([]int32, int) {
	ce := &cubeEdges[e]
	i := (x + ce.dx) + c.sx*(y+ce.dy)
	switch ce.axis {
	case axisZ:
		return c.vertical, i
	case axisY:
		i += c.sx * c.sy
	}
	if ce.layer == 0 {
		return c.lower, i
	}
	return c.upper, i
}

func (c *edgeCache) get(e, x, y int) int32 {
	s, i := c.slot(e, x, y)
	return s[i]
}

func (c *edgeCache) set(e, x, y int, v int32) {
	s, i := c.slot(e, x, y)
	s[i] = v
}

func fill(s []int32, v int32) {
	for i := range s {
		s[i] = v
	}
}
