package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private Prometheus registry, the operation collectors fed
// by ObserveOperation, and the HTTP server exposing /metrics.
type Metrics struct {
	// Server exposes the registry. Nil when Config.DisableServer is set.
	Server *http.Server

	// Registry holds every collector of this instance.
	Registry *prometheus.Registry

	registerer prometheus.Registerer
	namespace  string

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	rowsTotal         *prometheus.CounterVec
}

// NewMetrics creates the registry, wraps it with the service label and
// registers the operation collectors:
//
//	<ns>_milvus_operations_total{component,operation,status}
//	<ns>_milvus_operation_duration_seconds{component,operation}
//	<ns>_milvus_rows_total{component,operation}
//
// Example:
//
//	m := metrics.NewMetrics(metrics.Config{Address: ":9090", ServiceName: "ingest"})
//	client := milvus.NewClient(cfg, transport).WithObserver(m)
func NewMetrics(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()

	var registerer prometheus.Registerer = registry
	if cfg.ServiceName != "" {
		registerer = prometheus.WrapRegistererWith(prometheus.Labels{"service": cfg.ServiceName}, registry)
	}

	m := &Metrics{
		Registry:   registry,
		registerer: registerer,
		namespace:  cfg.Namespace,
	}

	m.operationsTotal = createCounterVec(cfg.Namespace, "milvus_operations_total",
		"Client operations by outcome.", []string{"component", "operation", "status"})
	m.operationDuration = createHistogramVec(cfg.Namespace, "milvus_operation_duration_seconds",
		"Client operation latency including the transport round trip.", []string{"component", "operation"}, prometheus.DefBuckets)
	m.rowsTotal = createCounterVec(cfg.Namespace, "milvus_rows_total",
		"Rows written or returned by client operations.", []string{"component", "operation"})

	registerer.MustRegister(m.operationsTotal, m.operationDuration, m.rowsTotal)

	if cfg.EnableDefaultCollectors {
		registerer.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	if !cfg.DisableServer {
		addr := cfg.Address
		if addr == "" {
			addr = DefaultMetricsAddress
		}
		m.Server = &http.Server{
			Addr:    addr,
			Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}
	}
	return m
}
