package contour

import (
	"fmt"
	"math"

	"isocontour/pkg/volume"
)

// DefaultHistogramBins is the span-space resolution used by NewContext.
const DefaultHistogramBins = 300

// Histogram is a span-space histogram: voxels are counted by the quantized
// minimum and maximum of their eight corner samples.
//
// A built histogram is never modified, so contexts bound to the same volume
// may share one.
type Histogram struct {
	bins   int
	shape  [3]int
	lo, hi float64
	scale  float64

	// counts[minBin + bins*maxBin] is the number of voxels in that cell.
	counts []int

	// straddle[i + bins*j] sums counts over minBin <= i and maxBin >= j.
	straddle []int

	total int
}

// BuildHistogram scans every voxel of f once. The quantization covers the
// field's Range.
func BuildHistogram(f volume.Field, bins int) (*Histogram, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil volume", ErrMissingInput)
	}
	if bins < 1 {
		return nil, fmt.Errorf("contour: histogram needs at least one bin, got %d", bins)
	}
	sx, sy, sz, err := checkShape(f)
	if err != nil {
		return nil, err
	}
	if !f.Kind().Numeric() {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedScalar, f.Kind())
	}

	lo, hi := f.Range()
	h := &Histogram{
		bins:   bins,
		shape:  [3]int{sx, sy, sz},
		lo:     lo,
		hi:     hi,
		counts: make([]int, bins*bins),
	}
	if hi > lo {
		h.scale = float64(bins) / (hi - lo)
	}

	plane := sx * sy
	below := make([]float64, plane)
	above := make([]float64, plane)
	readPlane(f, below, 0)
	for z := 0; z < sz-1; z++ {
		readPlane(f, above, (z+1)*plane)
		for y := 0; y < sy-1; y++ {
			for x := 0; x < sx-1; x++ {
				i := x + sx*y
				vmin, vmax := below[i], below[i]
				for _, j := range [...]int{i + 1, i + sx, i + sx + 1} {
					vmin = math.Min(vmin, below[j])
					vmax = math.Max(vmax, below[j])
				}
				for _, j := range [...]int{i, i + 1, i + sx, i + sx + 1} {
					vmin = math.Min(vmin, above[j])
					vmax = math.Max(vmax, above[j])
				}
				h.counts[h.Bin(vmin)+bins*h.Bin(vmax)]++
				h.total++
			}
		}
		below, above = above, below
	}

	h.accumulate()
	return h, nil
}

func readPlane(f volume.Field, dst []float64, base int) {
	for i := range dst {
		dst[i] = f.ValueAt(base + i)
	}
}

// accumulate fills straddle so each estimate is a single lookup.
func (h *Histogram) accumulate() {
	n := h.bins
	h.straddle = make([]int, n*n)
	for i := 0; i < n; i++ {
		for j := n - 1; j >= 0; j-- {
			s := h.counts[i+n*j]
			if i > 0 {
				s += h.straddle[(i-1)+n*j]
			}
			if j < n-1 {
				s += h.straddle[i+n*(j+1)]
			}
			if i > 0 && j < n-1 {
				s -= h.straddle[(i-1)+n*(j+1)]
			}
			h.straddle[i+n*j] = s
		}
	}
}

// Bin quantizes v onto [0, Bins()). The map is monotonic and clamps values
// outside the histogram range to the first or last bin.
func (h *Histogram) Bin(v float64) int {
	t := (v - h.lo) * h.scale
	if !(t > 0) {
		return 0
	}
	if t >= float64(h.bins) {
		return h.bins - 1
	}
	return int(t)
}

// Bins returns the histogram resolution along each axis.
func (h *Histogram) Bins() int { return h.bins }

// Range returns the scalar range the histogram was built over.
func (h *Histogram) Range() (lo, hi float64) { return h.lo, h.hi }

// Shape returns the sample counts of the volume the histogram was built
// over.
func (h *Histogram) Shape() (sx, sy, sz int) { return h.shape[0], h.shape[1], h.shape[2] }

// Count returns the number of voxels in cell (minBin, maxBin).
func (h *Histogram) Count(minBin, maxBin int) int {
	return h.counts[minBin+h.bins*maxBin]
}

// Total returns the number of voxels counted, (sx-1)(sy-1)(sz-1).
func (h *Histogram) Total() int { return h.total }

// EstimateVoxelCount returns the number of voxels whose quantized span
// contains the bin of iso. Every voxel crossed by the isosurface is
// included, so the estimate never falls below the true count.
func (h *Histogram) EstimateVoxelCount(iso float64) int {
	v := h.Bin(iso)
	return h.straddle[v+h.bins*v]
}
