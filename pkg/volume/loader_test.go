package volume

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// writeSlice saves a 16-bit gray image whose pixels equal base+x+4y.
func writeSlice(t *testing.T, path string, w, h int, base uint16) {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray16(x, y, color.Gray16{Y: base + uint16(x+4*y)})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	switch filepath.Ext(path) {
	case ".tif":
		err = tiff.Encode(f, img, nil)
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		t.Fatal(err)
	}
}

// TestExtractNumber verifies that numbers are correctly extracted from filenames
func TestExtractNumber(t *testing.T) {
	tests := []struct {
		filename string
		want     int
	}{
		{"slice_001.png", 1},
		{"img10.jpg", 10},
		{"/data/scan/2.tif", 2},
		{"a1b2.bmp", 12},
		{"none.png", 0},
	}
	for _, tc := range tests {
		if got := extractNumber(tc.filename); got != tc.want {
			t.Errorf("extractNumber(%q) = %d, want %d", tc.filename, got, tc.want)
		}
	}
}

// TestLoadSliceDir verifies numeric slice ordering and mixed formats.
func TestLoadSliceDir(t *testing.T) {
	dir := t.TempDir()
	// Lexical order would put 10 before 2.
	writeSlice(t, filepath.Join(dir, "slice_10.png"), 4, 3, 3000)
	writeSlice(t, filepath.Join(dir, "slice_2.tif"), 4, 3, 2000)
	writeSlice(t, filepath.Join(dir, "slice_1.png"), 4, 3, 1000)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0755); err != nil {
		t.Fatal(err)
	}

	g, err := LoadSliceDir(dir)
	if err != nil {
		t.Fatalf("LoadSliceDir failed: %v", err)
	}
	if sx, sy, sz := Dims(g); sx != 4 || sy != 3 || sz != 3 {
		t.Fatalf("Unexpected dims %dx%dx%d", sx, sy, sz)
	}
	for z, base := range []uint16{1000, 2000, 3000} {
		if got := g.At(2, 1, z); got != base+2+4 {
			t.Errorf("plane %d: got %d, want %d", z, got, base+6)
		}
	}
	if lo, hi := g.Range(); lo != 1000 || hi != 3000+3+8 {
		t.Errorf("Range = [%v, %v]", lo, hi)
	}
}

// TestLoadSliceDirBMP verifies 8-bit BMP slices are widened to 16 bits.
func TestLoadSliceDirBMP(t *testing.T) {
	dir := t.TempDir()
	for z := 0; z < 2; z++ {
		img := image.NewGray(image.Rect(0, 0, 2, 2))
		img.SetGray(1, 1, color.Gray{Y: uint8(100 + z)})
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("%d.bmp", z)))
		if err != nil {
			t.Fatal(err)
		}
		if err := bmp.Encode(f, img); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
	g, err := LoadSliceDir(dir)
	if err != nil {
		t.Fatalf("LoadSliceDir failed: %v", err)
	}
	if got := g.At(1, 1, 1); got != 101*0x101 {
		t.Errorf("Expected %d, got %d", 101*0x101, got)
	}
}

// TestLoadSliceDirErrors covers empty directories and size mismatches.
func TestLoadSliceDirErrors(t *testing.T) {
	if _, err := LoadSliceDir(t.TempDir()); err == nil {
		t.Error("Expected error for a directory without images")
	}
	if _, err := LoadSliceDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected error for a missing directory")
	}

	dir := t.TempDir()
	writeSlice(t, filepath.Join(dir, "1.png"), 4, 3, 0)
	writeSlice(t, filepath.Join(dir, "2.png"), 3, 3, 0)
	if _, err := LoadSliceDir(dir); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch, got %v", err)
	}

	bad := t.TempDir()
	if err := os.WriteFile(filepath.Join(bad, "1.png"), []byte("not a png"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSliceDir(bad); err == nil {
		t.Error("Expected decode error")
	}
}

// TestLoadRaw verifies a raw file round trip.
func TestLoadRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vol.raw")
	data := make([]byte, 2*2*2*2)
	for i := 0; i < 8; i++ {
		binary.BigEndian.PutUint16(data[2*i:], uint16(i*100))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	r, err := LoadRaw(path, []int{2, 2, 2}, Uint16, binary.BigEndian)
	if err != nil {
		t.Fatalf("LoadRaw failed: %v", err)
	}
	if r.ValueAt(7) != 700 {
		t.Errorf("Expected 700, got %v", r.ValueAt(7))
	}
	if _, err := LoadRaw(path, []int{3, 3, 3}, Uint16, nil); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch, got %v", err)
	}
	if _, err := LoadRaw(path+".missing", []int{2, 2, 2}, Uint16, nil); err == nil {
		t.Error("Expected error for a missing file")
	}
}

// TestParseShape verifies the accepted shape syntaxes.
func TestParseShape(t *testing.T) {
	tests := []struct {
		in   string
		want []int
		ok   bool
	}{
		{"64x64x32", []int{64, 64, 32}, true},
		{"4,5,6", []int{4, 5, 6}, true},
		{"8X8", []int{8, 8}, true},
		{"", nil, false},
		{"4x0x4", nil, false},
		{"4xax4", nil, false},
	}
	for _, tc := range tests {
		got, err := ParseShape(tc.in)
		if (err == nil) != tc.ok {
			t.Errorf("ParseShape(%q) error = %v", tc.in, err)
			continue
		}
		if tc.ok && fmt.Sprint(got) != fmt.Sprint(tc.want) {
			t.Errorf("ParseShape(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
