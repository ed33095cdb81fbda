package interpolation

import (
	"math"
	"testing"

	"isocontour/internal/models"
	"isocontour/pkg/volume"
)

// createTestData creates a width*height*depth grid whose value is fn(x, y, z).
func createTestData(t *testing.T, width, height, depth int, fn func(x, y, z int) float64) *volume.Grid[float64] {
	t.Helper()
	g, err := volume.NewGrid[float64](width, height, depth, nil)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g.Data[g.Index(x, y, z)] = fn(x, y, z)
			}
		}
	}
	return g
}

var unitGap2 = models.Spacing{X: 1, Y: 1, Z: 2}

// TestNewKriging verifies that a kriging interpolator is created with correct parameters
func TestNewKriging(t *testing.T) {
	g := createTestData(t, 4, 4, 3, func(x, y, z int) float64 { return float64(x + y + z) })
	k, err := NewKriging(g, unitGap2, DefaultParams())
	if err != nil {
		t.Fatalf("Failed to create kriging interpolator: %v", err)
	}
	if k.width != 4 || k.height != 4 || k.depth != 3 {
		t.Errorf("Unexpected dimensions %dx%dx%d", k.width, k.height, k.depth)
	}
	if k.Params().Sill <= 0 {
		t.Errorf("Expected sill estimated from the data, got %v", k.Params().Sill)
	}

	bad := []struct {
		name    string
		spacing models.Spacing
		mutate  func(*KrigingParams)
	}{
		{"zero gap", models.Spacing{X: 1, Y: 1}, func(*KrigingParams) {}},
		{"no neighbours", unitGap2, func(p *KrigingParams) { p.Neighbors = 0 }},
		{"too many neighbours", unitGap2, func(p *KrigingParams) { p.Neighbors = MaxNeighbors + 1 }},
		{"zero range", unitGap2, func(p *KrigingParams) { p.Range = 0 }},
		{"negative nugget", unitGap2, func(p *KrigingParams) { p.Nugget = -1 }},
	}
	for _, tc := range bad {
		p := DefaultParams()
		tc.mutate(&p)
		if _, err := NewKriging(g, tc.spacing, p); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
	if _, err := NewKriging(nil, unitGap2, DefaultParams()); err == nil {
		t.Error("Expected error for nil volume")
	}
}

// TestVariogramModels verifies the three variogram models (Spherical, Exponential, Gaussian)
func TestVariogramModels(t *testing.T) {
	g := createTestData(t, 2, 2, 2, func(x, y, z int) float64 { return 0 })
	for _, model := range []VariogramModel{Spherical, Exponential, Gaussian} {
		k, err := NewKriging(g, unitGap2, KrigingParams{Model: model, Range: 10, Sill: 1, Nugget: 0.1, Neighbors: 4})
		if err != nil {
			t.Fatal(err)
		}
		if k.variogram(0) != 0 {
			t.Errorf("model %d: variogram(0) should be 0", model)
		}
		prev := 0.0
		for _, h := range []float64{0.5, 5, 10, 20} {
			v := k.variogram(h)
			if v < prev {
				t.Errorf("model %d: variogram not monotonic at %v", model, h)
			}
			if v < 0.1 || v > 1.1+1e-12 {
				t.Errorf("model %d: variogram(%v) = %v outside [nugget, nugget+sill]", model, h, v)
			}
			prev = v
		}
	}
	if k, _ := NewKriging(g, unitGap2, KrigingParams{Model: Spherical, Range: 10, Sill: 1, Neighbors: 4}); k.variogram(20) != 1 {
		t.Error("spherical variogram should reach the sill beyond its range")
	}

	for name, want := range map[string]VariogramModel{"spherical": Spherical, "exponential": Exponential, "gaussian": Gaussian} {
		if got, err := ParseVariogramModel(name); err != nil || got != want {
			t.Errorf("ParseVariogramModel(%q) = %v, %v", name, got, err)
		}
		if want.String() != name {
			t.Errorf("String() = %q, want %q", want.String(), name)
		}
	}
	if _, err := ParseVariogramModel("linear"); err == nil {
		t.Error("Expected error for unknown model")
	}
}

// TestResampleKeepsOriginalSlices verifies shape, spacing and copied planes.
func TestResampleKeepsOriginalSlices(t *testing.T) {
	g := createTestData(t, 5, 4, 3, func(x, y, z int) float64 { return float64(x*y + 7*z) })
	k, err := NewKriging(g, unitGap2, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	out, spacing, err := k.Resample(4)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if sx, sy, sz := volume.Dims(out); sx != 5 || sy != 4 || sz != 9 {
		t.Fatalf("Expected 5x4x9, got %dx%dx%d", sx, sy, sz)
	}
	if spacing.Z != 0.5 || spacing.X != 1 {
		t.Errorf("Unexpected spacing %+v", spacing)
	}
	for z := 0; z < 3; z++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 5; x++ {
				if got, want := out.At(x, y, 4*z), float32(g.At(x, y, z)); got != want {
					t.Fatalf("original sample (%d,%d,%d) changed: %v != %v", x, y, z, got, want)
				}
			}
		}
	}

	same, s1, err := k.Resample(1)
	if err != nil || len(same.Data) != len(g.Data) || s1 != unitGap2 {
		t.Errorf("factor 1 should copy the volume: %v", err)
	}
	if _, _, err := k.Resample(0); err == nil {
		t.Error("Expected error for factor 0")
	}
}

// TestResampleConstantVolume verifies weights sum to one.
func TestResampleConstantVolume(t *testing.T) {
	g := createTestData(t, 6, 6, 3, func(x, y, z int) float64 { return 42 })
	k, err := NewKriging(g, unitGap2, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	out, _, err := k.Resample(3)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out.Data {
		if math.Abs(float64(v)-42) > 1e-4 {
			t.Fatalf("sample %d = %v, want 42", i, v)
		}
	}
}

// TestResampleMidplaneOfRamp verifies a symmetric neighbourhood reproduces
// a linear ramp halfway between slices.
func TestResampleMidplaneOfRamp(t *testing.T) {
	g := createTestData(t, 7, 7, 3, func(x, y, z int) float64 { return 10 * float64(z) })
	k, err := NewKriging(g, unitGap2, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	progress := 0
	k.SetProgressCallback(func(completed, total int, message string) {
		progress = completed
		if total != 2 {
			t.Errorf("Expected 2 inserted planes, got %d", total)
		}
	})
	out, _, err := k.Resample(2)
	if err != nil {
		t.Fatal(err)
	}
	if progress != 2 {
		t.Errorf("Progress callback reached %d, want 2", progress)
	}
	for _, z := range []int{1, 3} {
		want := 10 * float64(z) / 2
		for y := 1; y < 6; y++ {
			for x := 1; x < 6; x++ {
				if got := float64(out.At(x, y, z)); math.Abs(got-want) > 1e-4 {
					t.Errorf("(%d,%d,%d) = %v, want %v", x, y, z, got, want)
				}
			}
		}
	}
}

// TestInverseDistance verifies the fallback weights.
func TestInverseDistance(t *testing.T) {
	w := inverseDistance([]Point3D{{X: 1}, {X: -2}}, Point3D{})
	if math.Abs(w[0]-0.8) > 1e-12 || math.Abs(w[1]-0.2) > 1e-12 {
		t.Errorf("weights %v, want [0.8 0.2]", w)
	}
}

// BenchmarkResample measures doubling the Z resolution of a 64x64x8 stack.
func BenchmarkResample(b *testing.B) {
	g, _ := volume.NewGrid[uint16](64, 64, 8, nil)
	for i := range g.Data {
		g.Data[i] = uint16(i % 251)
	}
	k, err := NewKriging(g, unitGap2, DefaultParams())
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := k.Resample(2); err != nil {
			b.Fatal(err)
		}
	}
}
