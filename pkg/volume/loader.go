package volume

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// sliceExtensions lists the image formats accepted by LoadSliceDir.
var sliceExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// LoadSliceDir stacks the images in dir into a 16-bit grid. Images are
// ordered by the number embedded in their file name and become consecutive
// Z planes; every image must have the same size.
func LoadSliceDir(dir string) (*Grid[uint16], error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if sliceExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no slice images found in %s", dir)
	}

	// Slice order follows the numbering in the file names.
	sort.SliceStable(names, func(i, j int) bool {
		return extractNumber(names[i]) < extractNumber(names[j])
	})

	var (
		g      *Grid[uint16]
		sx, sy int
	)
	for z, name := range names {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}
		b := img.Bounds()
		if g == nil {
			sx, sy = b.Dx(), b.Dy()
			g, err = NewGrid[uint16](sx, sy, len(names), nil)
			if err != nil {
				return nil, err
			}
		} else if b.Dx() != sx || b.Dy() != sy {
			return nil, fmt.Errorf("%w: slice %s is %dx%d, expected %dx%d",
				ErrShapeMismatch, name, b.Dx(), b.Dy(), sx, sy)
		}
		copyPlane(g, img, z)
	}
	return g, nil
}

// copyPlane writes the luminance of img into plane z of g.
func copyPlane(g *Grid[uint16], img image.Image, z int) {
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			g.Data[g.Index(x, y, z)] = c.Y
		}
	}
	g.ResetRange()
}

// extractNumber concatenates the digits of a file name into a number.
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// LoadRaw reads a headerless file of samples laid out x fastest.
func LoadRaw(path string, shape []int, kind Kind, order binary.ByteOrder) (*Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading raw volume: %w", err)
	}
	return NewRaw(shape, kind, order, data)
}

// ParseShape parses "64x64x32" or "64,64,32" into axis sizes.
func ParseShape(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == 'x' || r == 'X' || r == ',' })
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty shape", ErrShapeMismatch)
	}
	shape := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: bad axis size %q", ErrShapeMismatch, f)
		}
		shape[i] = n
	}
	return shape, nil
}
