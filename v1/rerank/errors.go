package rerank

import "errors"

var (
	// ErrInvalidWeights is returned when the weighted strategy gets a weight
	// count different from the number of fields, a non-finite weight, or
	// weights that do not sum to a positive value.
	ErrInvalidWeights = errors.New("rerank: invalid weights")

	// ErrUnknownStrategy is returned for a missing or unrecognised strategy.
	ErrUnknownStrategy = errors.New("rerank: unknown strategy")

	// ErrInvalidParams is returned when strategy parameters cannot be parsed.
	ErrInvalidParams = errors.New("rerank: invalid parameters")
)

// IsInvalidWeightsError checks if the error is a weight validation failure.
func IsInvalidWeightsError(err error) bool {
	return errors.Is(err, ErrInvalidWeights)
}
