// Package interpolation fills the gap between acquired slices with ordinary
// kriging, so a stack with a large slice gap can be contoured at a finer Z
// resolution.
package interpolation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/stat"

	"isocontour/internal/models"
	"isocontour/pkg/volume"
)

// Variogram models supported by the implementation
type VariogramModel int

const (
	Spherical VariogramModel = iota
	Exponential
	Gaussian
)

var modelNames = [...]string{
	Spherical:   "spherical",
	Exponential: "exponential",
	Gaussian:    "gaussian",
}

func (m VariogramModel) String() string {
	if m < 0 || int(m) >= len(modelNames) {
		return fmt.Sprintf("VariogramModel(%d)", int(m))
	}
	return modelNames[m]
}

// ParseVariogramModel converts a model name to a VariogramModel.
func ParseVariogramModel(name string) (VariogramModel, error) {
	switch name {
	case "spherical":
		return Spherical, nil
	case "exponential":
		return Exponential, nil
	case "gaussian":
		return Gaussian, nil
	}
	return 0, fmt.Errorf("unknown variogram model %q", name)
}

// MaxNeighbors bounds the size of a kriging system.
const MaxNeighbors = 16

// KrigingParams holds the parameters for kriging interpolation
type KrigingParams struct {
	Model  VariogramModel // Type of variogram model to use
	Range  float64        // Range parameter of the variogram, in mm
	Sill   float64        // Sill parameter; zero means the sample variance
	Nugget float64        // Nugget effect parameter

	// Neighbors is the number of known samples used per estimate.
	Neighbors int
}

// DefaultParams returns a spherical variogram over ten neighbours: the
// sample above and below plus their four in-plane neighbours.
func DefaultParams() KrigingParams {
	return KrigingParams{
		Model:     Spherical,
		Range:     4,
		Neighbors: 10,
	}
}

// Point3D is a known sample position in mm together with its value.
type Point3D struct {
	X, Y, Z float64
	V       float64
}

// Compare implements the kdtree.Comparable interface
func (p Point3D) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(Point3D)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p Point3D) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p Point3D) Distance(c kdtree.Comparable) float64 {
	q := c.(Point3D)
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return dx*dx + dy*dy + dz*dz
}

// Points3D is a collection of Point3D that satisfies kdtree.Interface
type Points3D []Point3D

func (p Points3D) Index(i int) kdtree.Comparable         { return p[i] }
func (p Points3D) Len() int                              { return len(p) }
func (p Points3D) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p Points3D) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{Points3D: p, Dim: d}, kdtree.MedianOfRandoms(pointPlane{Points3D: p, Dim: d}, 100))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for Points3D
type pointPlane struct {
	Points3D
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.Points3D[i].X < p.Points3D[j].X
	case 1:
		return p.Points3D[i].Y < p.Points3D[j].Y
	case 2:
		return p.Points3D[i].Z < p.Points3D[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{Points3D: p.Points3D[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.Points3D[i], p.Points3D[j] = p.Points3D[j], p.Points3D[i]
}

// ProgressCallback is a function that reports progress during interpolation
type ProgressCallback func(completed, total int, message string)

// Kriging resamples a volume along Z.
type Kriging struct {
	field   volume.Field
	spacing models.Spacing
	params  KrigingParams

	width, height, depth int

	progressCallback ProgressCallback

	// weightCache maps a neighbour layout relative to the estimate to its
	// kriging weights. Interior voxels of one inserted plane share a layout.
	weightCache map[layoutKey][]float64
}

// layoutKey holds neighbour offsets quantized to 1/1024 mm.
type layoutKey [3 * MaxNeighbors]int32

// NewKriging prepares a kriging interpolator over a 3-D field whose voxel
// size is spacing.
func NewKriging(f volume.Field, spacing models.Spacing, params KrigingParams) (*Kriging, error) {
	if f == nil {
		return nil, errors.New("nil volume")
	}
	if len(f.Shape()) != 3 || !f.Kind().Numeric() {
		return nil, fmt.Errorf("kriging needs a numeric 3-D volume, got %v of shape %v", f.Kind(), f.Shape())
	}
	if !spacing.Valid() {
		return nil, fmt.Errorf("invalid spacing %+v", spacing)
	}
	if params.Neighbors < 1 || params.Neighbors > MaxNeighbors {
		return nil, fmt.Errorf("neighbors must be in [1, %d], got %d", MaxNeighbors, params.Neighbors)
	}
	if !(params.Range > 0) || params.Nugget < 0 || params.Sill < 0 {
		return nil, fmt.Errorf("invalid variogram parameters %+v", params)
	}

	w, h, d := volume.Dims(f)
	k := &Kriging{
		field:       f,
		spacing:     spacing,
		params:      params,
		width:       w,
		height:      h,
		depth:       d,
		weightCache: make(map[layoutKey][]float64),
	}
	if k.params.Sill == 0 {
		k.params.Sill = k.sampleVariance()
	}
	return k, nil
}

// Params returns the parameters in use, with the sill resolved.
func (k *Kriging) Params() KrigingParams { return k.params }

// SetProgressCallback sets a function called after each inserted plane.
func (k *Kriging) SetProgressCallback(callback ProgressCallback) {
	k.progressCallback = callback
}

// sampleVariance estimates the sill from the volume's samples.
func (k *Kriging) sampleVariance() float64 {
	n := k.width * k.height * k.depth
	step := max(1, n/65536)
	values := make([]float64, 0, n/step+1)
	for i := 0; i < n; i += step {
		values = append(values, k.field.ValueAt(i))
	}
	if v := stat.Variance(values, nil); v > 0 && !math.IsNaN(v) {
		return v
	}
	return 1
}

// variogram returns the semivariance at distance h.
func (k *Kriging) variogram(h float64) float64 {
	if h == 0 {
		return 0
	}
	p := k.params
	gamma := p.Nugget
	switch p.Model {
	case Spherical:
		if h < p.Range {
			r := h / p.Range
			gamma += p.Sill * (1.5*r - 0.5*r*r*r)
		} else {
			gamma += p.Sill
		}
	case Exponential:
		gamma += p.Sill * (1 - math.Exp(-3*h/p.Range))
	case Gaussian:
		gamma += p.Sill * (1 - math.Exp(-3*h*h/(p.Range*p.Range)))
	}
	return gamma
}

// Resample inserts factor-1 planes between each pair of slices. The
// original samples are copied unchanged and the returned spacing has a Z
// step of spacing.Z/factor.
func (k *Kriging) Resample(factor int) (*volume.Grid[float32], models.Spacing, error) {
	if factor < 1 {
		return nil, k.spacing, fmt.Errorf("resample factor must be positive, got %d", factor)
	}
	w, h := k.width, k.height
	outDepth := (k.depth-1)*factor + 1
	out, err := volume.NewGrid[float32](w, h, outDepth, nil)
	if err != nil {
		return nil, k.spacing, err
	}
	plane := w * h
	for z := 0; z < k.depth; z++ {
		for i := 0; i < plane; i++ {
			out.Data[z*factor*plane+i] = float32(k.field.ValueAt(z*plane + i))
		}
	}

	total := (k.depth - 1) * (factor - 1)
	done := 0
	for z := 0; z+1 < k.depth && factor > 1; z++ {
		tree := kdtree.New(k.planePoints(z), false)
		for s := 1; s < factor; s++ {
			zq := (float64(z) + float64(s)/float64(factor)) * k.spacing.Z
			dst := out.Data[(z*factor+s)*plane:]
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					q := Point3D{X: float64(x) * k.spacing.X, Y: float64(y) * k.spacing.Y, Z: zq}
					v, err := k.estimate(tree, q)
					if err != nil {
						return nil, k.spacing, fmt.Errorf("plane %d.%d at (%d,%d): %w", z, s, x, y, err)
					}
					dst[x+w*y] = float32(v)
				}
			}
			done++
			if k.progressCallback != nil {
				k.progressCallback(done, total, fmt.Sprintf("interpolated plane %d of %d", done, total))
			}
		}
	}
	out.ResetRange()

	spacing := k.spacing
	spacing.Z /= float64(factor)
	return out, spacing, nil
}

// planePoints returns the samples of slices z and z+1 in mm.
func (k *Kriging) planePoints(z int) Points3D {
	plane := k.width * k.height
	points := make(Points3D, 0, 2*plane)
	for dz := 0; dz < 2; dz++ {
		for y := 0; y < k.height; y++ {
			for x := 0; x < k.width; x++ {
				points = append(points, Point3D{
					X: float64(x) * k.spacing.X,
					Y: float64(y) * k.spacing.Y,
					Z: float64(z+dz) * k.spacing.Z,
					V: k.field.ValueAt((z+dz)*plane + x + k.width*y),
				})
			}
		}
	}
	return points
}

// estimate returns the ordinary kriging estimate at q from its nearest
// samples in tree.
func (k *Kriging) estimate(tree *kdtree.Tree, q Point3D) (float64, error) {
	keeper := kdtree.NewNKeeper(k.params.Neighbors)
	tree.NearestSet(keeper, q)

	neighbors := make([]Point3D, 0, k.params.Neighbors)
	for _, cd := range keeper.Heap {
		if cd.Comparable == nil {
			continue
		}
		p := cd.Comparable.(Point3D)
		if cd.Dist == 0 {
			return p.V, nil
		}
		neighbors = append(neighbors, p)
	}
	if len(neighbors) == 0 {
		return 0, errors.New("no neighbours")
	}

	var key layoutKey
	for i, p := range neighbors {
		key[3*i] = int32(math.Round((p.X - q.X) * 1024))
		key[3*i+1] = int32(math.Round((p.Y - q.Y) * 1024))
		key[3*i+2] = int32(math.Round((p.Z - q.Z) * 1024))
	}
	weights, ok := k.weightCache[key]
	if !ok || len(weights) != len(neighbors) {
		weights = k.weights(neighbors, q)
		k.weightCache[key] = weights
	}

	var v float64
	for i, p := range neighbors {
		v += weights[i] * p.V
	}
	return v, nil
}

// weights solves the ordinary kriging system for neighbors around q,
// falling back to inverse distance weights when the system is singular.
func (k *Kriging) weights(neighbors []Point3D, q Point3D) []float64 {
	n := len(neighbors)
	a := mat.NewDense(n+1, n+1, nil)
	b := mat.NewVecDense(n+1, nil)
	for i, p := range neighbors {
		for j := i; j < n; j++ {
			g := k.variogram(math.Sqrt(p.Distance(neighbors[j])))
			a.Set(i, j, g)
			a.Set(j, i, g)
		}
		a.Set(i, n, 1)
		a.Set(n, i, 1)
		b.SetVec(i, k.variogram(math.Sqrt(p.Distance(q))))
	}
	b.SetVec(n, 1)

	var x mat.VecDense
	err := x.SolveVec(a, b)
	var cond mat.Condition
	if err == nil || (errors.As(err, &cond) && !math.IsInf(float64(cond), 1)) {
		w := make([]float64, n)
		for i := range w {
			w[i] = x.AtVec(i)
			if math.IsNaN(w[i]) || math.IsInf(w[i], 0) {
				return inverseDistance(neighbors, q)
			}
		}
		return w
	}
	return inverseDistance(neighbors, q)
}

func inverseDistance(neighbors []Point3D, q Point3D) []float64 {
	w := make([]float64, len(neighbors))
	var sum float64
	for i, p := range neighbors {
		w[i] = 1 / p.Distance(q)
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}
