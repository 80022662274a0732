package metrics

// DefaultMetricsAddress is used when Config.Address is empty and the server
// is enabled.
const DefaultMetricsAddress = ":9090"

// Config configures the Prometheus registry and the /metrics server.
type Config struct {
	// Address the /metrics HTTP server listens on, e.g. ":9090".
	Address string `yaml:"address" env:"METRICS_ADDRESS"`

	// DisableServer skips starting the HTTP server; collectors still work,
	// which is what tests and embedding applications with their own server
	// want.
	DisableServer bool `yaml:"disable_server" env:"METRICS_DISABLE_SERVER"`

	// EnableDefaultCollectors registers the Go runtime, process and build
	// info collectors.
	EnableDefaultCollectors bool `yaml:"enable_default_collectors" env:"METRICS_ENABLE_DEFAULT_COLLECTORS"`

	// Namespace prefixes every metric name, e.g. "search" gives
	// search_milvus_operations_total.
	Namespace string `yaml:"namespace" env:"METRICS_NAMESPACE"`

	// ServiceName is added as a constant "service" label.
	ServiceName string `yaml:"service_name" env:"METRICS_SERVICE_NAME"`
}
