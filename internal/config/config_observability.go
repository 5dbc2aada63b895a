package config

// ObservabilityConfig configures logging, tracing, and metrics.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error". Default: "info".
	Level string `yaml:"level"`

	// Format is "json" or "text". Default: "json".
	Format string `yaml:"format"`

	// Redact enables secret redaction of known secret shapes (API keys,
	// bearer tokens, JWTs) before a log attribute reaches the handler.
	Redact bool `yaml:"redact"`
}

// TracingConfig configures OpenTelemetry tracing. One span is emitted per
// Agent Loop iteration and per tool dispatch.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`

	// OTLPEndpoint, when set, exports spans via OTLP; otherwise spans are
	// recorded through the SDK's no-op exporter.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// DefaultObservabilityConfig returns an ObservabilityConfig with defaults applied.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Logging: LoggingConfig{Level: "info", Format: "json", Redact: true},
		Tracing: TracingConfig{Enabled: false, ServiceName: "agentrtd"},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9090", Path: "/metrics"},
	}
}
