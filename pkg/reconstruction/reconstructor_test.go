package reconstruction

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"

	"isocontour/internal/models"
	"isocontour/pkg/interpolation"
	"isocontour/pkg/volume"
)

var unitSpacing = models.Spacing{X: 1, Y: 1, Z: 1}

// createTestImage creates a grayscale test image with the specified dimensions and pattern
func createTestImage(width, height int, pattern func(x, y int) uint16) image.Image {
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: pattern(x, y)})
		}
	}
	return img
}

// createTestSlices writes n PNG slices of a bright disc centred in a
// size*size frame.
func createTestSlices(t *testing.T, dir string, size, n int, radius float64) {
	t.Helper()
	c := float64(size-1) / 2
	disc := createTestImage(size, size, func(x, y int) uint16 {
		if math.Hypot(float64(x)-c, float64(y)-c) <= radius {
			return 60000
		}
		return 1000
	})
	for i := 0; i < n; i++ {
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("slice_%d.png", i+1)))
		if err != nil {
			t.Fatalf("Failed to create slice: %v", err)
		}
		if err := png.Encode(f, disc); err != nil {
			t.Fatalf("Failed to encode slice: %v", err)
		}
		f.Close()
	}
}

func run(t *testing.T, params *Params) *Reconstructor {
	t.Helper()
	r := NewReconstructor(params)
	r.SetLogger(t.Logf)
	if err := r.Process(); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	return r
}

// TestPhantomPipeline verifies a multi-isovalue run end to end.
func TestPhantomPipeline(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "sphere.stl")
	isovalues := []float64{-2, 0, 2}
	r := run(t, &Params{
		Phantom:     PhantomSphere,
		PhantomSize: 24,
		OutputFile:  outputFile,
		NumCores:    2,
		Spacing:     unitSpacing,
		Isovalues:   isovalues,
		FindNormals: true,
	})

	m := r.GetMetrics()
	if !slices.Equal(m.Shape, []int{24, 24, 24}) {
		t.Errorf("Unexpected shape %v", m.Shape)
	}
	if len(m.Parts) != len(isovalues) {
		t.Fatalf("Expected %d parts, got %d", len(isovalues), len(m.Parts))
	}
	total := 0
	for i, p := range m.Parts {
		if p.Isovalue != isovalues[i] {
			t.Errorf("Part %d holds isovalue %v, want %v", i, p.Isovalue, isovalues[i])
		}
		if p.Summary.Triangles == 0 || p.Summary.Triangles != p.Stats.Triangles {
			t.Errorf("Part %d: summary %d triangles, stats %d", i, p.Summary.Triangles, p.Stats.Triangles)
		}
		total += p.Summary.Triangles
	}
	// Higher isovalues are smaller spheres.
	if !(m.Parts[0].Summary.Area > m.Parts[1].Summary.Area && m.Parts[1].Summary.Area > m.Parts[2].Summary.Area) {
		t.Errorf("Areas not decreasing: %v %v %v",
			m.Parts[0].Summary.Area, m.Parts[1].Summary.Area, m.Parts[2].Summary.Area)
	}
	if got := r.Mesh().NumTriangles(); got != total {
		t.Errorf("Mesh holds %d triangles, parts %d", got, total)
	}

	info, err := os.Stat(outputFile)
	if err != nil {
		t.Fatalf("Output file not written: %v", err)
	}
	if want := int64(84 + 50*total); info.Size() != want {
		t.Errorf("STL size %d, want %d", info.Size(), want)
	}
}

// TestWorkerCountDoesNotChangeResult verifies parallel extraction merges
// parts identically to a single worker.
func TestWorkerCountDoesNotChangeResult(t *testing.T) {
	params := func(cores int) *Params {
		return &Params{
			Phantom:     PhantomSphere,
			PhantomSize: 16,
			NumCores:    cores,
			Spacing:     models.Spacing{X: 1, Y: 2, Z: 3},
			Isovalues:   []float64{-1, 0.25, 1, 2.5},
			FindNormals: true,
		}
	}
	serial := run(t, params(1)).Mesh()
	parallel := run(t, params(4)).Mesh()

	if !slices.Equal(serial.Vertices(), parallel.Vertices()) {
		t.Fatal("Vertex arrays differ between 1 and 4 workers")
	}
	sp, pp := serial.Parts(), parallel.Parts()
	if len(sp) != len(pp) {
		t.Fatalf("Part counts differ: %d vs %d", len(sp), len(pp))
	}
	for i := range sp {
		if sp[i].Name != pp[i].Name || sp[i].Base() != pp[i].Base() {
			t.Errorf("Part %d: %q@%d vs %q@%d", i, sp[i].Name, sp[i].Base(), pp[i].Name, pp[i].Base())
		}
		if !slices.Equal(sp[i].Triangles(), pp[i].Triangles()) {
			t.Errorf("Part %d triangles differ", i)
		}
	}
}

// TestSliceDirPipeline runs loading, smoothing and interpolation on a
// stack of PNG slices.
func TestSliceDirPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	inputDir := t.TempDir()
	createTestSlices(t, inputDir, 16, 6, 5)

	kriging := interpolation.DefaultParams()
	kriging.Neighbors = 6
	r := run(t, &Params{
		InputDir:    inputDir,
		OutputFile:  filepath.Join(t.TempDir(), "disc.stl"),
		ASCII:       true,
		Spacing:     models.Spacing{X: 1, Y: 1, Z: 2},
		Smooth:      1,
		Interpolate: 2,
		Kriging:     kriging,
		Isovalues:   []float64{30000},
	})

	m := r.GetMetrics()
	if !slices.Equal(m.Shape, []int{16, 16, 11}) {
		t.Errorf("Expected 16x16x11 after interpolation, got %v", m.Shape)
	}
	f, spacing := r.GetVolume()
	if f.Kind() != volume.Float32 || spacing.Z != 1 {
		t.Errorf("Unexpected volume %v with spacing %+v", f.Kind(), spacing)
	}
	s := m.Parts[0].Summary
	if s.Triangles == 0 {
		t.Fatal("No surface extracted")
	}
	// The disc is extruded through the stack; its wall stays within the
	// slice range and near the disc radius.
	if s.Bounds.Min.Z < 0 || s.Bounds.Max.Z > 10 {
		t.Errorf("Surface leaves the stack: z in [%v, %v]", s.Bounds.Min.Z, s.Bounds.Max.Z)
	}
	if w := s.Bounds.Max.X - s.Bounds.Min.X; w < 8 || w > 13 {
		t.Errorf("Disc diameter %v, want about 10", w)
	}
	if m.LoadTime <= 0 || m.PreprocessTime <= 0 {
		t.Errorf("Missing timings: %+v", m)
	}
}

// TestSDFPhantomUsesItsGeometry verifies the SDF phantom supplies its own
// spacing and origin.
func TestSDFPhantomUsesItsGeometry(t *testing.T) {
	r := run(t, &Params{
		Phantom:     PhantomSDF,
		PhantomSize: 20,
		Spacing:     models.Spacing{X: 9, Y: 9, Z: 9},
		Isovalues:   []float64{0},
	})
	_, spacing := r.GetVolume()
	if spacing.X == 9 || spacing.X != spacing.Z {
		t.Errorf("Expected isotropic SDF spacing, got %+v", spacing)
	}
	b := r.GetMetrics().Parts[0].Summary.Bounds
	// The sphere of radius 6 on top of the box is the widest feature.
	if math.Abs(b.Min.X+6) > 0.5 || math.Abs(b.Max.X-6) > 0.5 {
		t.Errorf("Unexpected X extent [%v, %v]", b.Min.X, b.Max.X)
	}
}

// TestBlindValue verifies the blind value is excluded from the scalar range.
func TestBlindValue(t *testing.T) {
	const n = 5
	data := make([]byte, n*n*n)
	data[2+n*(2+n*2)] = 1
	data[0] = 255
	rawFile := filepath.Join(t.TempDir(), "hot.raw")
	if err := os.WriteFile(rawFile, data, 0644); err != nil {
		t.Fatal(err)
	}

	blind := 255
	for _, tc := range []struct {
		name  string
		blind *int
		want  []int
	}{
		{"no blind", nil, []int{9, 1}},
		{"blind", &blind, []int{9, 0}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := run(t, &Params{
				RawFile:   rawFile,
				RawShape:  []int{n, n, n},
				RawKind:   volume.Uint8,
				RawOrder:  binary.LittleEndian,
				Spacing:   unitSpacing,
				Blind:     tc.blind,
				Isovalues: []float64{0.5, 128},
			})
			for i, p := range r.GetMetrics().Parts {
				if p.Stats.Triangles != tc.want[i] {
					t.Errorf("Isovalue %v: %d triangles, want %d", p.Isovalue, p.Stats.Triangles, tc.want[i])
				}
			}
		})
	}
}

// TestBlindRejectsResampling verifies a blind value cannot be combined
// with smoothing or interpolation, which would spread the "no data" sample
// into its neighbours and create a surface around it.
func TestBlindRejectsResampling(t *testing.T) {
	const n = 8
	data := make([]byte, n*n*n)
	data[0] = 255
	rawFile := filepath.Join(t.TempDir(), "blind.raw")
	if err := os.WriteFile(rawFile, data, 0644); err != nil {
		t.Fatal(err)
	}

	blind := 255
	params := func(smooth float64, interpolate int) *Params {
		return &Params{
			RawFile:     rawFile,
			RawShape:    []int{n, n, n},
			RawKind:     volume.Uint8,
			RawOrder:    binary.LittleEndian,
			Spacing:     unitSpacing,
			Blind:       &blind,
			Smooth:      smooth,
			Interpolate: interpolate,
			Kriging:     interpolation.DefaultParams(),
			Isovalues:   []float64{20},
		}
	}

	for _, tc := range []struct {
		name        string
		smooth      float64
		interpolate int
	}{
		{"smoothing", 1, 1},
		{"interpolation", 0, 2},
		{"both", 0.5, 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := NewReconstructor(params(tc.smooth, tc.interpolate)).Process()
			if !errors.Is(err, ErrBlindResampled) {
				t.Errorf("Expected ErrBlindResampled, got %v", err)
			}
		})
	}

	// Preprocess guards callers that skip Process.
	r := NewReconstructor(params(1, 1))
	if err := r.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := r.Preprocess(); !errors.Is(err, ErrBlindResampled) {
		t.Errorf("Preprocess: expected ErrBlindResampled, got %v", err)
	}

	got := run(t, params(0, 1)).GetMetrics().Parts[0].Stats.Triangles
	if got != 0 {
		t.Errorf("Blind sample produced %d triangles without resampling", got)
	}
}

// countingField counts samples read from the wrapped volume.
type countingField struct {
	volume.Field
	reads atomic.Int64
}

func (f *countingField) ValueAt(i int) float64 {
	f.reads.Add(1)
	return f.Field.ValueAt(i)
}

// TestWorkersShareHistogram verifies the volume is scanned for the
// span-space histogram once however many workers extract.
func TestWorkersShareHistogram(t *testing.T) {
	g, err := volume.NewGrid[float64](10, 10, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range g.Data {
		x, y, z := i%10, i/10%10, i/100
		g.Data[i] = float64(x + y + z)
	}

	reads := func(cores int) int64 {
		r := NewReconstructor(&Params{
			NumCores:  cores,
			Spacing:   unitSpacing,
			Isovalues: []float64{4.5, 9.5, 14.5, 19.5},
		})
		f := &countingField{Field: g}
		r.field = f
		if err := r.Extract(); err != nil {
			t.Fatalf("Extract with %d workers failed: %v", cores, err)
		}
		if len(r.GetMetrics().Parts) != 4 {
			t.Fatalf("Expected 4 parts, got %d", len(r.GetMetrics().Parts))
		}
		return f.reads.Load()
	}

	serial, parallel := reads(1), reads(4)
	if serial != parallel {
		t.Errorf("Volume reads: %d with 1 worker, %d with 4", serial, parallel)
	}
}

// TestProcessErrors verifies invalid parameters are reported.
func TestProcessErrors(t *testing.T) {
	tests := []struct {
		name   string
		params Params
	}{
		{"no input", Params{Isovalues: []float64{0}}},
		{"unknown phantom", Params{Phantom: "torus", PhantomSize: 8, Isovalues: []float64{0}}},
		{"no isovalues", Params{Phantom: PhantomHot, PhantomSize: 4, Spacing: unitSpacing}},
		{"singular spacing", Params{Phantom: PhantomHot, PhantomSize: 4, Isovalues: []float64{0.5}}},
		{"missing directory", Params{InputDir: filepath.Join(t.TempDir(), "none"), Isovalues: []float64{0}}},
		{"bad histogram", Params{Phantom: PhantomHot, PhantomSize: 4, Spacing: unitSpacing, Isovalues: []float64{0.5}, HistogramBins: -1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := NewReconstructor(&tc.params).Process(); err == nil {
				t.Error("Expected an error")
			}
		})
	}

	if err := NewReconstructor(&Params{}).Process(); !errors.Is(err, ErrNoInput) {
		t.Errorf("Expected ErrNoInput, got %v", err)
	}
	if err := NewReconstructor(&Params{}).Extract(); !errors.Is(err, ErrNoInput) {
		t.Errorf("Extract before Load: expected ErrNoInput, got %v", err)
	}
}
