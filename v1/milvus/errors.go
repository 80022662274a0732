package milvus

import (
	"errors"
	"fmt"

	"github.com/Aleph-Alpha/milvuskit/v1/rerank"
	"github.com/Aleph-Alpha/milvuskit/v1/vectorcodec"
)

// Marshalling and request errors. They are raised from caller input, never
// from the transport, and are returned wrapped with context.
var (
	// ErrEmptyInput is returned when an insert carries no rows.
	ErrEmptyInput = errors.New("milvus: empty input")

	// ErrMissingRequiredField is returned when a non-nullable field without
	// a default value is absent from a row.
	ErrMissingRequiredField = errors.New("milvus: missing required field")

	// ErrUnknownField is returned for a row key that is not in the schema
	// of a collection without dynamic fields, or that names a generated
	// field.
	ErrUnknownField = errors.New("milvus: unknown field")

	// ErrAmbiguousInputShape is returned when both or neither of rows and
	// columns are supplied.
	ErrAmbiguousInputShape = errors.New("milvus: exactly one of rows or columns must be supplied")

	// ErrSchemaColumnMismatch is returned when a response column's type
	// disagrees with the schema.
	ErrSchemaColumnMismatch = errors.New("milvus: column does not match schema")

	// ErrRowCountMismatch is returned when columns of one payload disagree
	// on their length.
	ErrRowCountMismatch = errors.New("milvus: column lengths differ")

	// ErrCollectionNotFound is returned when no schema is known for a
	// collection and none can be described.
	ErrCollectionNotFound = errors.New("milvus: collection not found")

	// ErrInvalidRequest is returned for requests that are malformed as a
	// whole, e.g. a delete with both ids and a filter.
	ErrInvalidRequest = errors.New("milvus: invalid request")
)

// Errors raised by the codec and the reranker, re-exported so callers of
// this package can match every input error kind from one place.
var (
	ErrInvalidDimension = vectorcodec.ErrInvalidDimension
	ErrValueOutOfRange  = vectorcodec.ErrValueOutOfRange
	ErrDuplicateIndex   = vectorcodec.ErrDuplicateIndex
	ErrNegativeIndex    = vectorcodec.ErrNegativeIndex
	ErrUnsupportedValue = vectorcodec.ErrUnsupportedValue
	ErrInvalidWeights   = rerank.ErrInvalidWeights
)

// FieldError locates an input error at a field and row.
type FieldError struct {
	Field string
	// Row is the zero-based row index, or -1 when the error is not tied to
	// a row.
	Row int
	Err error
}

func (e *FieldError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("row %d, field %q: %v", e.Row, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func fieldErr(field string, row int, err error) error {
	return &FieldError{Field: field, Row: row, Err: err}
}

// IsEmptyInputError checks if the error is an empty insert.
func IsEmptyInputError(err error) bool {
	return errors.Is(err, ErrEmptyInput)
}

// IsMissingRequiredFieldError checks if the error is a missing required field.
func IsMissingRequiredFieldError(err error) bool {
	return errors.Is(err, ErrMissingRequiredField)
}

// IsUnknownFieldError checks if the error is an unknown field.
func IsUnknownFieldError(err error) bool {
	return errors.Is(err, ErrUnknownField)
}

// IsAmbiguousInputShapeError checks if the error is a rows/columns conflict.
func IsAmbiguousInputShapeError(err error) bool {
	return errors.Is(err, ErrAmbiguousInputShape)
}

// IsSchemaColumnMismatchError checks if the error is a response type mismatch.
func IsSchemaColumnMismatchError(err error) bool {
	return errors.Is(err, ErrSchemaColumnMismatch)
}

// IsCollectionNotFoundError checks if the error is an unknown collection.
func IsCollectionNotFoundError(err error) bool {
	return errors.Is(err, ErrCollectionNotFound)
}
