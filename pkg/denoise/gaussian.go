// Package denoise smooths slice stacks before contouring. Filtering runs in
// the frequency domain, one XY plane at a time, so acquisition noise in a
// slice never bleeds into its neighbours.
package denoise

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"isocontour/pkg/volume"
)

// Gaussian returns f low-pass filtered in X and Y with a Gaussian of
// standard deviation sigma voxels. Planes are mirror padded by three sigma
// so the circular convolution of the FFT does not wrap opposite borders
// into each other. A sigma of zero copies the volume.
func Gaussian(f volume.Field, sigma float64) (*volume.Grid[float32], error) {
	if f == nil {
		return nil, errors.New("denoise: nil volume")
	}
	if len(f.Shape()) != 3 || !f.Kind().Numeric() {
		return nil, fmt.Errorf("denoise: smoothing needs a numeric 3-D volume, got %v of shape %v", f.Kind(), f.Shape())
	}
	if sigma < 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return nil, fmt.Errorf("denoise: invalid sigma %v", sigma)
	}
	w, h, d := volume.Dims(f)
	out, err := volume.NewGrid[float32](w, h, d, nil)
	if err != nil {
		return nil, err
	}
	if sigma == 0 {
		for i := range out.Data {
			out.Data[i] = float32(f.ValueAt(i))
		}
		return out, nil
	}

	p := newPlaneFilter(w, h, sigma)
	plane := w * h
	for z := 0; z < d; z++ {
		p.apply(f, z*plane, out.Data[z*plane:(z+1)*plane])
	}
	return out, nil
}

// planeFilter holds the transforms and scratch space for one plane size.
type planeFilter struct {
	w, h   int
	pad    int
	pw, ph int

	rows *fourier.FFT
	cols *fourier.CmplxFFT

	// gain[kx + (pw/2+1)*ky] is the Gaussian transfer function.
	gain []float64

	padded   []float64
	spectrum []complex128 // (pw/2+1) columns of ph coefficients, column major
	row      []complex128
	col      []complex128
}

func newPlaneFilter(w, h int, sigma float64) *planeFilter {
	pad := int(math.Ceil(3 * sigma))
	p := &planeFilter{
		w:   w,
		h:   h,
		pad: pad,
		pw:  w + 2*pad,
		ph:  h + 2*pad,
	}
	p.rows = fourier.NewFFT(p.pw)
	p.cols = fourier.NewCmplxFFT(p.ph)

	nx := p.pw/2 + 1
	p.gain = make([]float64, nx*p.ph)
	for ky := 0; ky < p.ph; ky++ {
		fy := frequency(ky, p.ph)
		for kx := 0; kx < nx; kx++ {
			fx := float64(kx) / float64(p.pw)
			p.gain[kx+nx*ky] = math.Exp(-2 * math.Pi * math.Pi * sigma * sigma * (fx*fx + fy*fy))
		}
	}

	p.padded = make([]float64, p.pw*p.ph)
	p.spectrum = make([]complex128, nx*p.ph)
	p.row = make([]complex128, nx)
	p.col = make([]complex128, p.ph)
	return p
}

// frequency returns the signed frequency of bin k of an n point transform
// in cycles per sample.
func frequency(k, n int) float64 {
	if k > n/2 {
		k -= n
	}
	return float64(k) / float64(n)
}

// reflect mirrors i into [0, n) without repeating the edge sample.
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

// apply filters the plane starting at linear index base into dst.
func (p *planeFilter) apply(f volume.Field, base int, dst []float32) {
	for y := 0; y < p.ph; y++ {
		sy := reflect(y-p.pad, p.h)
		for x := 0; x < p.pw; x++ {
			sx := reflect(x-p.pad, p.w)
			p.padded[x+p.pw*y] = f.ValueAt(base + sx + p.w*sy)
		}
	}

	nx := p.pw/2 + 1
	for y := 0; y < p.ph; y++ {
		p.rows.Coefficients(p.row, p.padded[y*p.pw:(y+1)*p.pw])
		for kx, c := range p.row {
			p.spectrum[y+p.ph*kx] = c
		}
	}
	for kx := 0; kx < nx; kx++ {
		col := p.spectrum[p.ph*kx : p.ph*(kx+1)]
		p.cols.Coefficients(p.col, col)
		for ky := range p.col {
			p.col[ky] *= complex(p.gain[kx+nx*ky], 0)
		}
		p.cols.Sequence(col, p.col)
	}

	// Both transforms are unnormalized.
	scale := 1 / float64(p.pw*p.ph)
	for y := p.pad; y < p.pad+p.h; y++ {
		for kx := 0; kx < nx; kx++ {
			p.row[kx] = p.spectrum[y+p.ph*kx]
		}
		p.rows.Sequence(p.padded[y*p.pw:(y+1)*p.pw], p.row)
		for x := 0; x < p.w; x++ {
			dst[x+p.w*(y-p.pad)] = float32(p.padded[y*p.pw+p.pad+x] * scale)
		}
	}
}
