package contour

import "errors"

var (
	// ErrMissingInput reports an absent volume, mesh or binding.
	ErrMissingInput = errors.New("contour: missing input")

	// ErrUnsupportedShape reports a volume that is not 3-D or has fewer
	// than two samples along an axis.
	ErrUnsupportedShape = errors.New("contour: unsupported volume shape")

	// ErrUnsupportedScalar reports a volume whose elements are not numeric.
	ErrUnsupportedScalar = errors.New("contour: unsupported scalar type")

	// ErrInvalidTransform reports a non-invertible transform.
	ErrInvalidTransform = errors.New("contour: invalid transform")

	// ErrHistogramMismatch reports a histogram built over a different
	// volume shape or scalar range than the one being bound.
	ErrHistogramMismatch = errors.New("contour: histogram does not match volume")

	// ErrNonFiniteIsovalue reports a NaN or infinite isovalue.
	ErrNonFiniteIsovalue = errors.New("contour: non-finite isovalue")
)
