package denoise

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/stat"

	"isocontour/pkg/volume"
)

// TestGaussianPreservesConstant verifies a flat volume is unchanged.
func TestGaussianPreservesConstant(t *testing.T) {
	g, _ := volume.NewGrid[uint16](9, 7, 2, nil)
	for i := range g.Data {
		g.Data[i] = 1000
	}
	out, err := Gaussian(g, 1.5)
	if err != nil {
		t.Fatalf("Gaussian failed: %v", err)
	}
	for i, v := range out.Data {
		if math.Abs(float64(v)-1000) > 1e-2 {
			t.Fatalf("sample %d = %v, want 1000", i, v)
		}
	}
}

// TestGaussianImpulse verifies mass preservation, symmetry and that planes
// are filtered independently.
func TestGaussianImpulse(t *testing.T) {
	g, _ := volume.NewGrid[float64](21, 21, 3, nil)
	g.Set(10, 10, 1, 1)
	out, err := Gaussian(g, 1)
	if err != nil {
		t.Fatal(err)
	}

	var sum float64
	for y := 0; y < 21; y++ {
		for x := 0; x < 21; x++ {
			sum += float64(out.At(x, y, 1))
			if v := out.At(x, y, 0); math.Abs(float64(v)) > 1e-6 {
				t.Fatalf("energy leaked into plane 0 at (%d,%d): %v", x, y, v)
			}
		}
	}
	if math.Abs(sum-1) > 1e-4 {
		t.Errorf("filtered impulse sums to %v, want 1", sum)
	}

	c := out.At(10, 10, 1)
	if c >= 1 || c <= out.At(11, 10, 1) {
		t.Errorf("peak %v should be below 1 and above its neighbour %v", c, out.At(11, 10, 1))
	}
	if d := out.At(11, 10, 1) - out.At(10, 11, 1); math.Abs(float64(d)) > 1e-6 {
		t.Errorf("response is not isotropic: %v", d)
	}
	if d := out.At(9, 10, 1) - out.At(11, 10, 1); math.Abs(float64(d)) > 1e-6 {
		t.Errorf("response is not symmetric: %v", d)
	}
	// One voxel away the sampled Gaussian is exp(-1/2) times the peak.
	if r := out.At(11, 10, 1) / c; math.Abs(float64(r)-math.Exp(-0.5)) > 0.05 {
		t.Errorf("neighbour ratio %v, want about %v", r, math.Exp(-0.5))
	}
}

// TestGaussianReducesNoise verifies smoothing lowers sample variance.
func TestGaussianReducesNoise(t *testing.T) {
	g, _ := volume.NewGrid[float32](32, 32, 1, nil)
	state := uint32(7)
	for i := range g.Data {
		state = state*1664525 + 1013904223
		g.Data[i] = float32(state>>8) / (1 << 24)
	}
	out, err := Gaussian(g, 2)
	if err != nil {
		t.Fatal(err)
	}
	before := make([]float64, len(g.Data))
	after := make([]float64, len(out.Data))
	for i := range before {
		before[i] = float64(g.Data[i])
		after[i] = float64(out.Data[i])
	}
	if vb, va := stat.Variance(before, nil), stat.Variance(after, nil); va > vb/4 {
		t.Errorf("variance %v -> %v, expected a strong reduction", vb, va)
	}
	if mb, ma := stat.Mean(before, nil), stat.Mean(after, nil); math.Abs(mb-ma) > 0.02 {
		t.Errorf("mean drifted from %v to %v", mb, ma)
	}
}

// TestGaussianZeroSigma verifies a zero sigma copies the input.
func TestGaussianZeroSigma(t *testing.T) {
	g, _ := volume.NewGrid(2, 2, 2, []int16{-3, 1, 4, 1, -5, 9, 2, 6})
	out, err := Gaussian(g, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range g.Data {
		if out.Data[i] != float32(v) {
			t.Fatalf("sample %d = %v, want %v", i, out.Data[i], v)
		}
	}
}

// TestGaussianErrors covers invalid inputs and checks every error names
// the package.
func TestGaussianErrors(t *testing.T) {
	g, _ := volume.NewGrid[uint8](4, 4, 4, nil)
	flat, _ := volume.NewRaw([]int{4, 4}, volume.Uint8, nil, make([]byte, 16))
	tests := []struct {
		name  string
		f     volume.Field
		sigma float64
	}{
		{"nil volume", nil, 1},
		{"negative sigma", g, -1},
		{"NaN sigma", g, math.NaN()},
		{"infinite sigma", g, math.Inf(1)},
		{"2-D volume", flat, 1},
	}
	for _, tc := range tests {
		_, err := Gaussian(tc.f, tc.sigma)
		if err == nil {
			t.Errorf("%s: expected an error", tc.name)
			continue
		}
		if !strings.HasPrefix(err.Error(), "denoise: ") {
			t.Errorf("%s: error %q lacks the package prefix", tc.name, err)
		}
	}
}

// TestReflect verifies mirror indexing.
func TestReflect(t *testing.T) {
	tests := []struct{ i, n, want int }{
		{-1, 5, 1}, {-2, 5, 2}, {5, 5, 3}, {6, 5, 2}, {0, 1, 0}, {3, 1, 0}, {-9, 4, 3},
	}
	for _, tc := range tests {
		if got := reflect(tc.i, tc.n); got != tc.want {
			t.Errorf("reflect(%d, %d) = %d, want %d", tc.i, tc.n, got, tc.want)
		}
	}
}
