// Package reconstruction runs the complete surface reconstruction pipeline:
// load a volume, optionally denoise it and refine its slice spacing, extract
// one isosurface per requested isovalue and write the result as STL.
package reconstruction

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"isocontour/internal/models"
	"isocontour/pkg/contour"
	"isocontour/pkg/denoise"
	"isocontour/pkg/interpolation"
	"isocontour/pkg/mesh"
	"isocontour/pkg/phantom"
	"isocontour/pkg/stl"
	"isocontour/pkg/volume"
)

// Phantom names accepted in Params.Phantom.
const (
	PhantomSphere = "sphere"
	PhantomHot    = "hot"
	PhantomSDF    = "sdf"
)

// ErrNoInput is returned when Params names no volume source.
var ErrNoInput = errors.New("no input volume: set an input directory, a raw file or a phantom")

// ErrBlindResampled is returned when a blind value is combined with
// smoothing or interpolation. Both resample into float32, which carries no
// blind value, so "no data" samples would be blended into real ones.
var ErrBlindResampled = errors.New("blind value cannot be combined with smoothing or interpolation")

// Params holds the reconstruction parameters.
type Params struct {
	// InputDir is a directory of numbered 2D slice images.
	InputDir string

	// RawFile is a headerless volume file described by RawShape, RawKind
	// and RawOrder. Used when InputDir is empty.
	RawFile  string
	RawShape []int
	RawKind  volume.Kind
	RawOrder binary.ByteOrder

	// Phantom selects a synthetic volume of PhantomSize samples per axis
	// when no file input is given.
	Phantom     string
	PhantomSize int

	// OutputFile is where the STL is written; empty skips writing.
	OutputFile string
	ASCII      bool

	// NumCores bounds the number of isovalues extracted concurrently.
	NumCores int

	// Spacing and Origin place voxel indices in physical space.
	Spacing models.Spacing
	Origin  [3]float64

	// Blind is the "no data" value of 8-bit volumes. It excludes Smooth
	// and Interpolate.
	Blind *int

	// Smooth is the in-plane Gaussian sigma in voxels; zero disables it.
	Smooth float64

	// Interpolate inserts Interpolate-1 kriged planes between slices when
	// greater than one.
	Interpolate int
	Kriging     interpolation.KrigingParams

	Isovalues     []float64
	LowerInside   bool
	FindNormals   bool
	HistogramBins int
}

// PartMetrics describes the extraction of one isovalue.
type PartMetrics struct {
	Isovalue float64
	Stats    contour.Stats
	Summary  mesh.Summary
}

// Metrics collects timings and per-isovalue results of a run.
type Metrics struct {
	// Shape is the size of the volume that was contoured.
	Shape []int

	// Lo and Hi are its scalar range.
	Lo, Hi float64

	Parts []PartMetrics

	LoadTime       time.Duration
	PreprocessTime time.Duration
	ExtractTime    time.Duration
	WriteTime      time.Duration
}

// Reconstructor runs the pipeline for one set of parameters.
type Reconstructor struct {
	params *Params

	field   volume.Field
	spacing models.Spacing
	origin  [3]float64

	mesh    *mesh.Mesh
	metrics Metrics

	logf func(format string, args ...any)
}

// NewReconstructor creates a new reconstructor instance with the provided parameters.
func NewReconstructor(params *Params) *Reconstructor {
	return &Reconstructor{
		params:  params,
		spacing: params.Spacing,
		origin:  params.Origin,
		mesh:    mesh.New(),
		logf:    func(string, ...any) {},
	}
}

// SetLogger sets a printf-style function for progress messages.
func (r *Reconstructor) SetLogger(logf func(format string, args ...any)) {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	r.logf = logf
}

// Process runs the complete reconstruction pipeline
func (r *Reconstructor) Process() error {
	if err := r.params.checkBlind(); err != nil {
		return err
	}
	if err := r.Load(); err != nil {
		return err
	}
	if err := r.Preprocess(); err != nil {
		return err
	}
	if err := r.Extract(); err != nil {
		return err
	}
	return r.Save()
}

// Load reads or synthesizes the input volume.
func (r *Reconstructor) Load() error {
	start := time.Now()
	p := r.params
	var err error
	switch {
	case p.InputDir != "":
		r.logf("Loading slices from %s\n", p.InputDir)
		r.field, err = volume.LoadSliceDir(p.InputDir)
	case p.RawFile != "":
		r.logf("Loading raw %v volume %v from %s\n", p.RawKind, p.RawShape, p.RawFile)
		r.field, err = volume.LoadRaw(p.RawFile, p.RawShape, p.RawKind, p.RawOrder)
	case p.Phantom != "":
		r.logf("Generating %s phantom of size %d\n", p.Phantom, p.PhantomSize)
		err = r.loadPhantom()
	default:
		return ErrNoInput
	}
	if err != nil {
		return fmt.Errorf("failed to load volume: %w", err)
	}
	if p.Blind != nil {
		applyBlind(r.field, *p.Blind)
	}
	r.metrics.LoadTime = time.Since(start)
	return nil
}

func (r *Reconstructor) loadPhantom() error {
	n := r.params.PhantomSize
	var err error
	switch r.params.Phantom {
	case PhantomSphere:
		r.field, err = phantom.Sphere(n, float64(n)/3)
	case PhantomHot:
		r.field, err = phantom.HotVoxel(n)
	case PhantomSDF:
		solid, err := phantom.Capsule(10)
		if err != nil {
			return err
		}
		s, err := phantom.FromSDF(solid, n)
		if err != nil {
			return err
		}
		r.field = s.Grid
		r.spacing = models.Spacing{X: s.Spacing[0], Y: s.Spacing[1], Z: s.Spacing[2]}
		r.origin = s.Origin
	default:
		return fmt.Errorf("unknown phantom %q", r.params.Phantom)
	}
	return err
}

// applyBlind marks the blind value on 8-bit volumes.
func applyBlind(f volume.Field, blind int) {
	switch v := f.(type) {
	case *volume.Raw:
		v.SetBlind(float64(blind))
	case *volume.Grid[uint8]:
		v.SetBlind(uint8(blind))
	case *volume.Grid[int8]:
		v.SetBlind(int8(blind))
	}
}

// checkBlind rejects a blind value that preprocessing would lose.
func (p *Params) checkBlind() error {
	if p.Blind != nil && (p.Smooth > 0 || p.Interpolate > 1) {
		return fmt.Errorf("%w: blind %d, smooth %v, interpolate %d", ErrBlindResampled, *p.Blind, p.Smooth, p.Interpolate)
	}
	return nil
}

// Preprocess applies smoothing and slice interpolation.
func (r *Reconstructor) Preprocess() error {
	if r.field == nil {
		return ErrNoInput
	}
	if err := r.params.checkBlind(); err != nil {
		return err
	}
	start := time.Now()
	p := r.params
	if p.Smooth > 0 {
		r.logf("Smoothing slices (sigma %.2f voxels)\n", p.Smooth)
		g, err := denoise.Gaussian(r.field, p.Smooth)
		if err != nil {
			return fmt.Errorf("smoothing failed: %w", err)
		}
		r.field = g
	}
	if p.Interpolate > 1 {
		r.logf("Interpolating %d planes per slice gap\n", p.Interpolate-1)
		k, err := interpolation.NewKriging(r.field, r.spacing, p.Kriging)
		if err != nil {
			return fmt.Errorf("interpolation setup failed: %w", err)
		}
		k.SetProgressCallback(func(completed, total int, message string) {
			if completed == total || completed%10 == 0 {
				r.logf("  %s\n", message)
			}
		})
		g, spacing, err := k.Resample(p.Interpolate)
		if err != nil {
			return fmt.Errorf("interpolation failed: %w", err)
		}
		r.field, r.spacing = g, spacing
	}
	r.metrics.PreprocessTime = time.Since(start)
	return nil
}

// newContext returns a context configured from the parameters and bound to
// the current volume through the shared histogram.
func (r *Reconstructor) newContext(hist *contour.Histogram) (*contour.Context, error) {
	p := r.params
	c := contour.NewContext()
	if err := c.SetTransform(contour.Affine(r.spacing.Array(), r.origin)); err != nil {
		return nil, err
	}
	c.SetLowerInside(p.LowerInside)
	c.SetFindNormals(p.FindNormals)
	if err := c.SetVolumeHistogram(r.field, hist); err != nil {
		return nil, err
	}
	return c, nil
}

type extraction struct {
	mesh  *mesh.Mesh
	part  *mesh.Part
	stats contour.Stats
	err   error
}

// Extract contours every isovalue. Isovalues are spread over up to
// NumCores workers, each owning its own context and mesh; parts are merged
// in isovalue order.
func (r *Reconstructor) Extract() error {
	if r.field == nil {
		return ErrNoInput
	}
	p := r.params
	if len(p.Isovalues) == 0 {
		return errors.New("no isovalues requested")
	}
	start := time.Now()

	// Range caches lazily; fill the cache before workers share the volume.
	r.metrics.Lo, r.metrics.Hi = r.field.Range()
	r.metrics.Shape = append([]int(nil), r.field.Shape()...)

	// One scan serves every worker; the histogram is read-only once built.
	bins := p.HistogramBins
	if bins == 0 {
		bins = contour.DefaultHistogramBins
	}
	hist, err := contour.BuildHistogram(r.field, bins)
	if err != nil {
		return fmt.Errorf("span-space histogram failed: %w", err)
	}

	workers := p.NumCores
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(p.Isovalues))

	results := make([]extraction, len(p.Isovalues))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := r.newContext(hist)
			for i := range jobs {
				if err != nil {
					results[i].err = err
					continue
				}
				m := mesh.New()
				part, xerr := c.Extract(m, p.Isovalues[i])
				results[i] = extraction{mesh: m, part: part, stats: c.Stats(), err: xerr}
			}
		}()
	}
	for i := range p.Isovalues {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, res := range results {
		iso := p.Isovalues[i]
		if res.err != nil {
			return fmt.Errorf("extraction at isovalue %g failed: %w", iso, res.err)
		}
		part := r.mesh.AppendPart(res.part)
		r.metrics.Parts = append(r.metrics.Parts, PartMetrics{
			Isovalue: iso,
			Stats:    res.stats,
			Summary:  part.Summarize(),
		})
		r.logf("Isovalue %g: %d triangles, %d vertices (%d voxels crossed, %d estimated) in %v\n",
			iso, res.stats.Triangles, res.stats.Vertices, res.stats.Voxels, res.stats.Estimated, res.stats.Elapsed)
	}
	r.metrics.ExtractTime = time.Since(start)
	return nil
}

// Save writes the mesh to Params.OutputFile.
func (r *Reconstructor) Save() error {
	if r.params.OutputFile == "" {
		return nil
	}
	start := time.Now()
	if err := stl.SaveMesh(r.params.OutputFile, r.mesh, r.params.ASCII); err != nil {
		return fmt.Errorf("failed to save STL: %w", err)
	}
	r.metrics.WriteTime = time.Since(start)
	return nil
}

// GetMetrics returns the metrics of the last run.
func (r *Reconstructor) GetMetrics() Metrics { return r.metrics }

// GetVolume returns the volume that was contoured and its voxel spacing.
func (r *Reconstructor) GetVolume() (volume.Field, models.Spacing) { return r.field, r.spacing }

// Mesh returns the extracted surfaces, one part per isovalue.
func (r *Reconstructor) Mesh() *mesh.Mesh { return r.mesh }
