package logger

// Log levels accepted by Config.Level.
const (
	Debug   = "debug"
	Info    = "info"
	Warning = "warning"
	Error   = "error"
)

// Config configures the zap logger.
type Config struct {
	// Level is one of debug, info, warning, error. Anything else means info.
	Level string `yaml:"level" env:"ZAP_LOGGER_LEVEL"`

	// ServiceName is attached to every entry as the "service" field.
	ServiceName string `yaml:"service_name" env:"ZAP_LOGGER_SERVICE_NAME"`

	// Encoding is "json" (default) or "console".
	Encoding string `yaml:"encoding" env:"ZAP_LOGGER_ENCODING"`
}
