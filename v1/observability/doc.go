// Package observability defines the hook clients use to report completed
// operations to metrics, tracing or audit sinks without depending on them.
//
//	type countingObserver struct{ n atomic.Int64 }
//
//	func (o *countingObserver) ObserveOperation(ctx observability.OperationContext) {
//	    o.n.Add(1)
//	}
//
// metrics.Metrics implements Observer and can be handed straight to a client.
package observability
