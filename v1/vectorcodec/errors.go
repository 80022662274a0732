package vectorcodec

import "errors"

// Codec errors. They are returned wrapped with the offending position or
// length, so match them with errors.Is or the IsXxxError helpers.
var (
	// ErrInvalidDimension is returned when a dense vector's element count
	// does not match the declared dimension, or when a byte buffer has the
	// wrong length for its subtype.
	ErrInvalidDimension = errors.New("vectorcodec: invalid dimension")

	// ErrValueOutOfRange is returned when an element cannot be represented
	// by the subtype (int8 outside [-128,127], a non 0/1 bit, a non-finite
	// float, a sparse index above the uint32 range).
	ErrValueOutOfRange = errors.New("vectorcodec: value out of range")

	// ErrDuplicateIndex is returned when two sparse entries share an index.
	ErrDuplicateIndex = errors.New("vectorcodec: duplicate sparse index")

	// ErrNegativeIndex is returned when a sparse entry has an index below zero.
	ErrNegativeIndex = errors.New("vectorcodec: negative sparse index")

	// ErrUnsupportedValue is returned when the Go value has a shape the
	// subtype does not accept.
	ErrUnsupportedValue = errors.New("vectorcodec: unsupported value")

	// ErrUnknownSubtype is returned for a Subtype outside the closed set.
	ErrUnknownSubtype = errors.New("vectorcodec: unknown vector subtype")
)

// IsInvalidDimensionError checks if the error is a dimension mismatch.
func IsInvalidDimensionError(err error) bool {
	return errors.Is(err, ErrInvalidDimension)
}

// IsValueOutOfRangeError checks if the error is an out-of-range element.
func IsValueOutOfRangeError(err error) bool {
	return errors.Is(err, ErrValueOutOfRange)
}

// IsDuplicateIndexError checks if the error is a duplicate sparse index.
func IsDuplicateIndexError(err error) bool {
	return errors.Is(err, ErrDuplicateIndex)
}

// IsNegativeIndexError checks if the error is a negative sparse index.
func IsNegativeIndexError(err error) bool {
	return errors.Is(err, ErrNegativeIndex)
}
