package observability

import "time"

// OperationContext describes one completed client operation.
type OperationContext struct {
	// Component is the reporting package, e.g. "milvus".
	Component string

	// Operation is the logical operation, e.g. "insert", "search",
	// "iterator_advance".
	Operation string

	// Resource is the collection the operation ran against.
	Resource string

	// SubResource carries extra scope such as a partition or anns field.
	SubResource string

	Duration time.Duration

	// Error is nil on success.
	Error error

	// Size is the number of rows written or returned.
	Size int64

	Metadata map[string]interface{}
}

// Observer receives a callback for every completed operation. Implementations
// must be safe for concurrent use and should return quickly.
type Observer interface {
	ObserveOperation(ctx OperationContext)
}

// Status maps an operation error to the "status" label value used by
// metrics: "success" or "error".
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
