package vector

import "errors"

var (
	// ErrEmptyInput is returned by Build when no items are given.
	ErrEmptyInput = errors.New("vector: build with no items")

	// ErrDimensionMismatch is returned by Build when item vectors disagree on width.
	ErrDimensionMismatch = errors.New("vector: dimension mismatch")

	// ErrCorruptIndex is returned by Decode when a serialized index is damaged
	// or not recognized.
	ErrCorruptIndex = errors.New("vector: corrupt index")
)
