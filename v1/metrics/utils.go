package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Aleph-Alpha/milvuskit/v1/observability"
)

// ObserveOperation records one completed operation. It makes *Metrics an
// observability.Observer.
func (m *Metrics) ObserveOperation(ctx observability.OperationContext) {
	m.operationsTotal.WithLabelValues(ctx.Component, ctx.Operation, observability.Status(ctx.Error)).Inc()
	m.operationDuration.WithLabelValues(ctx.Component, ctx.Operation).Observe(ctx.Duration.Seconds())
	if ctx.Size > 0 {
		m.rowsTotal.WithLabelValues(ctx.Component, ctx.Operation).Add(float64(ctx.Size))
	}
}

// CreateCounter registers an additional CounterVec under the same namespace
// and service label.
func (m *Metrics) CreateCounter(name, help string, labels []string) *prometheus.CounterVec {
	c := createCounterVec(m.namespace, name, help, labels)
	m.registerer.MustRegister(c)
	return c
}

// CreateHistogram registers an additional HistogramVec.
func (m *Metrics) CreateHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	h := createHistogramVec(m.namespace, name, help, labels, buckets)
	m.registerer.MustRegister(h)
	return h
}

// CreateGauge registers an additional GaugeVec.
func (m *Metrics) CreateGauge(name, help string, labels []string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: m.namespace, Name: name, Help: help}, labels)
	m.registerer.MustRegister(g)
	return g
}

func createCounterVec(namespace, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
}

func createHistogramVec(namespace, name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}
