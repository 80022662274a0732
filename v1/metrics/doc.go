// Package metrics exposes client operation metrics to Prometheus.
//
// *Metrics implements observability.Observer, so it can be attached to any
// client in this module that reports operations:
//
//	m := metrics.NewMetrics(metrics.Config{
//	    Address:                 ":9090",
//	    EnableDefaultCollectors: true,
//	    ServiceName:             "search-store",
//	})
//	go m.Server.ListenAndServe()
//
//	client = client.WithObserver(m)
//
// Every observed operation increments milvus_operations_total with a
// success or error status, records its latency in
// milvus_operation_duration_seconds and adds the row count to
// milvus_rows_total. All metrics carry a constant service label and the
// optional namespace prefix.
//
// # FX Module Integration
//
//	app := fx.New(
//	    fx.Supply(metrics.Config{Address: ":9090", ServiceName: "search-store"}),
//	    metrics.FXModule, // provides *Metrics, MetricsCollector and observability.Observer
//	)
//
// Additional collectors can be registered with CreateCounter,
// CreateHistogram and CreateGauge; they share the registry, namespace and
// service label. All methods are safe for concurrent use.
package metrics
