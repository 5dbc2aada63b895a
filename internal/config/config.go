package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the root configuration structure for the runtime.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Session       SessionConfig       `yaml:"session"`
	Credentials   CredentialConfig    `yaml:"credentials"`
	LLM           LLMConfig           `yaml:"llm"`
	Tools         ToolsConfig         `yaml:"tools"`
	Chunker       ChunkerConfig       `yaml:"chunker"`
	Cron          CronConfig          `yaml:"cron"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig configures the runtime process's own listeners (metrics,
// health). There is no HTTP/UI front-end in scope; this is ambient
// operational surface only.
type ServerConfig struct {
	Host string `yaml:"host"`
}

// DatabaseConfig selects and configures the session/message/cron
// persistence backend.
type DatabaseConfig struct {
	// Driver is "memory", "postgres", or "sqlite".
	Driver string `yaml:"driver"`

	// URL is the driver-specific connection string. Ignored for "memory".
	URL string `yaml:"url"`

	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ChunkerConfig configures the streaming text chunker that splits assistant
// output into deliverable message chunks.
type ChunkerConfig struct {
	// MinChars is the minimum chunk size before a break is considered.
	// Default: 200.
	MinChars int `yaml:"min_chars"`

	// MaxChars forces a break regardless of break_preference. Default: 800.
	MaxChars int `yaml:"max_chars"`

	// BreakPreference is the preferred break point: "paragraph", "newline",
	// or "sentence". The chunker falls back through paragraph -> newline ->
	// sentence -> forced-at-max when the preferred break isn't found.
	BreakPreference string `yaml:"break_preference"`
}

// Load reads, expands, decodes, defaults, and validates a configuration
// file, resolving $include directives along the way.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	applyDatabaseDefaults(&cfg.Database)

	defaultSession := DefaultSessionConfig()
	if cfg.Session.HistoryLimit == 0 {
		cfg.Session.HistoryLimit = defaultSession.HistoryLimit
	}
	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = defaultSession.IdleTimeout
	}

	applyLLMDefaults(&cfg.LLM)
	applyToolsDefaults(&cfg.Tools)
	applyChunkerDefaults(&cfg.Chunker)
	applyCronDefaults(&cfg.Cron)

	defaultObs := DefaultObservabilityConfig()
	if cfg.Observability.Logging.Level == "" {
		cfg.Observability.Logging.Level = defaultObs.Logging.Level
	}
	if cfg.Observability.Logging.Format == "" {
		cfg.Observability.Logging.Format = defaultObs.Logging.Format
	}
	if cfg.Observability.Tracing.ServiceName == "" {
		cfg.Observability.Tracing.ServiceName = defaultObs.Tracing.ServiceName
	}
	if cfg.Observability.Metrics.Addr == "" {
		cfg.Observability.Metrics.Addr = defaultObs.Metrics.Addr
	}
	if cfg.Observability.Metrics.Path == "" {
		cfg.Observability.Metrics.Path = defaultObs.Metrics.Path
	}
}

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.Driver == "" {
		cfg.Driver = "memory"
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 25
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.Providers == nil {
		cfg.Providers = map[string]LLMProviderConfig{}
	}
}

func applyToolsDefaults(cfg *ToolsConfig) {
	defaults := DefaultToolsConfig()
	if cfg.Execution.MaxIterations == 0 {
		cfg.Execution.MaxIterations = defaults.Execution.MaxIterations
	}
	if cfg.Execution.Parallelism == 0 {
		cfg.Execution.Parallelism = defaults.Execution.Parallelism
	}
	if cfg.Execution.Timeout == 0 {
		cfg.Execution.Timeout = defaults.Execution.Timeout
	}
	if cfg.Execution.MaxAttempts == 0 {
		cfg.Execution.MaxAttempts = defaults.Execution.MaxAttempts
	}
	if cfg.Execution.RetryBackoff == 0 {
		cfg.Execution.RetryBackoff = defaults.Execution.RetryBackoff
	}
	if cfg.Jobs.Retention == 0 {
		cfg.Jobs.Retention = defaults.Jobs.Retention
	}
	if cfg.Jobs.PruneInterval == 0 {
		cfg.Jobs.PruneInterval = defaults.Jobs.PruneInterval
	}
	if cfg.Browser.PoolSize == 0 {
		cfg.Browser.PoolSize = defaults.Browser.PoolSize
	}
	if cfg.Browser.NavigationTimeout == 0 {
		cfg.Browser.NavigationTimeout = defaults.Browser.NavigationTimeout
	}
	if cfg.MemorySearch.Backend == "" {
		cfg.MemorySearch.Backend = defaults.MemorySearch.Backend
	}
	if cfg.MemorySearch.MaxResults == 0 {
		cfg.MemorySearch.MaxResults = defaults.MemorySearch.MaxResults
	}
}

func applyChunkerDefaults(cfg *ChunkerConfig) {
	if cfg.MinChars == 0 {
		cfg.MinChars = 200
	}
	if cfg.MaxChars == 0 {
		cfg.MaxChars = 800
	}
	if cfg.BreakPreference == "" {
		cfg.BreakPreference = "paragraph"
	}
}

func applyCronDefaults(cfg *CronConfig) {
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Second
	}
}

// applyEnvOverrides lets a small set of environment variables override
// file-provided values, primarily for container deployments.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTRT_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("AGENTRT_LOG_LEVEL"); v != "" {
		cfg.Observability.Logging.Level = v
	}
}

// ConfigValidationError reports one or more configuration validation failures.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Issues, "; "))
}

func validateConfig(cfg *Config) error {
	var issues []string

	if cfg.LLM.DefaultProvider != "" {
		if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
			issues = append(issues, fmt.Sprintf("llm.default_provider %q is not defined in llm.providers", cfg.LLM.DefaultProvider))
		}
	}

	switch strings.ToLower(cfg.Database.Driver) {
	case "memory", "postgres", "sqlite":
	default:
		issues = append(issues, fmt.Sprintf("database.driver %q must be \"memory\", \"postgres\", or \"sqlite\"", cfg.Database.Driver))
	}

	if cfg.Session.HistoryLimit < 0 {
		issues = append(issues, "session.history_limit must be >= 0")
	}

	if cfg.Tools.MemorySearch.Enabled && cfg.Tools.MemorySearch.MaxResults < 0 {
		issues = append(issues, "tools.memory_search.max_results must be >= 0")
	}

	if cfg.Chunker.MinChars < 0 {
		issues = append(issues, "chunker.min_chars must be >= 0")
	}
	if cfg.Chunker.MaxChars <= 0 || cfg.Chunker.MaxChars < cfg.Chunker.MinChars {
		issues = append(issues, "chunker.max_chars must be > 0 and >= chunker.min_chars")
	}
	switch cfg.Chunker.BreakPreference {
	case "paragraph", "newline", "sentence":
	default:
		issues = append(issues, "chunker.break_preference must be \"paragraph\", \"newline\", or \"sentence\"")
	}

	if cfg.Tools.Approval.Enabled {
		for _, name := range cfg.Tools.Approval.RequireApproval {
			if strings.TrimSpace(name) == "" {
				issues = append(issues, "tools.approval.require_approval entries must not be blank")
				break
			}
		}
	}

	for i, job := range cfg.Cron.Jobs {
		switch job.Payload.Kind {
		case "system_event", "agent_turn":
		default:
			issues = append(issues, fmt.Sprintf("cron.jobs[%d].payload.kind must be \"system_event\" or \"agent_turn\"", i))
		}
		if strings.TrimSpace(job.Schedule.Cron) == "" && job.Schedule.Every == 0 && strings.TrimSpace(job.Schedule.At) == "" {
			issues = append(issues, fmt.Sprintf("cron.jobs[%d].schedule must set cron, every, or at", i))
		}
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

