// Package visualization cuts orthogonal slices out of a volume and saves them
// as grayscale images, for checking a volume before or after contouring.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"isocontour/internal/models"
	"isocontour/pkg/volume"
)

// Viewer extracts slices and sub-regions from a 3-D volume. Sample values
// are mapped linearly from the volume's range onto the 16-bit gray scale.
type Viewer struct {
	field volume.Field

	// dimensions of the volume
	width  int
	height int
	depth  int

	lo, hi float64

	// spacing is the physical voxel size in mm
	spacing models.Spacing
}

// NewViewer creates a viewer over a 3-D field.
func NewViewer(f volume.Field, spacing models.Spacing) (*Viewer, error) {
	if f == nil {
		return nil, fmt.Errorf("nil volume")
	}
	if len(f.Shape()) != 3 {
		return nil, fmt.Errorf("viewer needs a 3-D volume, got shape %v", f.Shape())
	}
	if !f.Kind().Numeric() {
		return nil, fmt.Errorf("cannot view %v samples", f.Kind())
	}
	w, h, d := volume.Dims(f)
	lo, hi := f.Range()
	return &Viewer{
		field:   f,
		width:   w,
		height:  h,
		depth:   d,
		lo:      lo,
		hi:      hi,
		spacing: spacing,
	}, nil
}

// Spacing returns the voxel size the viewer was created with.
func (v *Viewer) Spacing() models.Spacing { return v.spacing }

// gray maps a sample onto the 16-bit range.
func (v *Viewer) gray(value float64) color.Gray16 {
	if !(v.hi > v.lo) {
		return color.Gray16{}
	}
	t := (value - v.lo) / (v.hi - v.lo)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, math.Round(t*65535))))}
}

func (v *Viewer) at(x, y, z int) float64 {
	return v.field.ValueAt(x + v.width*(y+v.height*z))
}

// extent returns the number of positions along axis.
func (v *Viewer) extent(axis models.Axis) (int, error) {
	switch axis {
	case models.AxisX:
		return v.width, nil
	case models.AxisY:
		return v.height, nil
	case models.AxisZ:
		return v.depth, nil
	}
	return 0, fmt.Errorf("invalid axis: %v (must be x, y, or z)", axis)
}

// ExtractSlice extracts a 2D slice perpendicular to axis. X slices are
// depth wide and height tall, Y slices width by depth, Z slices width by
// height.
func (v *Viewer) ExtractSlice(axis models.Axis, position int) (*image.Gray16, error) {
	n, err := v.extent(axis)
	if err != nil {
		return nil, err
	}
	if position < 0 || position >= n {
		return nil, fmt.Errorf("position %d outside [0, %d) along %v", position, n, axis)
	}

	var img *image.Gray16
	switch axis {
	case models.AxisX:
		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray16(z, y, v.gray(v.at(position, y, z)))
			}
		}
	case models.AxisY:
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, v.gray(v.at(x, position, z)))
			}
		}
	default:
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, v.gray(v.at(x, y, position)))
			}
		}
	}
	return img, nil
}

// ExtractRegion copies a box of samples into a new grid, for contouring a
// sub-volume on its own.
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) (*volume.Grid[float64], error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	if startX+sizeX > v.width || startY+sizeY > v.height || startZ+sizeZ > v.depth {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	region, err := volume.NewGrid[float64](sizeX, sizeY, sizeZ, nil)
	if err != nil {
		return nil, err
	}
	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				region.Data[region.Index(x, y, z)] = v.at(startX+x, startY+y, startZ+z)
			}
		}
	}
	return region, nil
}

// SaveSlice writes img in the format named by the file extension: PNG and
// TIFF keep all 16 bits, anything else is written as JPEG.
func SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		err = png.Encode(file, img)
	case ".tif", ".tiff":
		err = tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filename, err)
	}
	return file.Close()
}

// SaveSliceSequence extracts and saves every slice along axis as
// slice_<axis>_<nnn>.<ext> in outputDir.
func (v *Viewer) SaveSliceSequence(axis models.Axis, outputDir, ext string) error {
	n, err := v.extent(axis)
	if err != nil {
		return err
	}
	if ext == "" {
		ext = "jpg"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < n; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.%s", axis, pos, strings.TrimPrefix(ext, ".")))
		if err := SaveSlice(img, filename); err != nil {
			return err
		}
	}
	return nil
}
