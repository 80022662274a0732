// Package tracer wraps the OpenTelemetry SDK for span creation and trace
// context propagation.
//
//	t := tracer.NewClient(tracer.Config{ServiceName: "ingest"}, log)
//	ctx, span := t.StartSpan(ctx, "milvus.insert")
//	defer span.End()
//	if err != nil {
//	    t.RecordErrorOnSpan(span, err)
//	}
//
// A nil *Tracer is valid: StartSpan returns the span already in the context,
// which lets clients trace without checking whether tracing is configured.
//
// GetCarrier and SetCarrierOnContext move W3C trace headers across process
// boundaries.
package tracer
