package cull

import "errors"

var (
	// ErrNonFinite is returned when an input matrix or vertex carries a
	// NaN or infinite component where a finite one is required.
	ErrNonFinite = errors.New("non-finite input value")

	// ErrSingularMatrix is returned when a camera matrix cannot be
	// inverted.
	ErrSingularMatrix = errors.New("camera matrix is not invertible")

	// ErrDegenerateQuery is returned by occlusion queries given an
	// empty vertex set.
	ErrDegenerateQuery = errors.New("degenerate query volume")

	// ErrBeamAngle is returned by MipBeamCast when the wedge between
	// the two direction vectors is 45 degrees or wider.
	ErrBeamAngle = errors.New("beam interior angle must be below 45 degrees")
)
