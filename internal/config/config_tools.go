package config

import "time"

// ToolsConfig configures the tool registry/dispatcher and the individual
// tools it registers.
type ToolsConfig struct {
	Execution    ToolExecutionConfig `yaml:"execution"`
	Approval     ApprovalConfig      `yaml:"approval"`
	Aliases      map[string]string   `yaml:"aliases"`
	Jobs         ToolJobsConfig      `yaml:"jobs"`
	Browser      BrowserConfig       `yaml:"browser"`
	WebSearch    WebSearchConfig     `yaml:"websearch"`
	WebFetch     WebFetchConfig      `yaml:"web_fetch"`
	MemorySearch MemorySearchConfig  `yaml:"memory_search"`
}

// ToolExecutionConfig controls registry/dispatcher runtime behavior.
type ToolExecutionConfig struct {
	// MaxIterations bounds the tool-call iteration loop within one turn.
	// Default: 50.
	MaxIterations int `yaml:"max_iterations"`

	// Parallelism bounds how many tool calls from one assistant turn
	// dispatch concurrently. Default: 8.
	Parallelism int `yaml:"parallelism"`

	// Timeout is the default per-tool execution deadline. Default: 60s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxAttempts and RetryBackoff govern retry of classified-retryable
	// tool errors (timeout, network, rate-limit).
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// Overrides sets a per-tool timeout/retry override keyed by tool name.
	Overrides map[string]ToolOverride `yaml:"overrides"`
}

// ToolOverride overrides execution parameters for one named tool.
type ToolOverride struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// ApprovalConfig controls the optional pre-dispatch approval gate.
type ApprovalConfig struct {
	// Enabled turns on approval gating ahead of dispatch. Off by default.
	Enabled bool `yaml:"enabled"`

	// RequireApproval lists tool names that must be approved before
	// execute is ever called.
	RequireApproval []string `yaml:"require_approval"`

	// Elevated lists tool names exempt from approval for elevated callers.
	Elevated []string `yaml:"elevated"`

	// RequestTTL is how long a pending approval request remains valid.
	RequestTTL time.Duration `yaml:"request_ttl"`
}

// ToolJobsConfig controls async tool job persistence and retention.
type ToolJobsConfig struct {
	// Async lists tool names dispatched as background jobs instead of
	// running inline within a turn.
	Async []string `yaml:"async"`

	// Retention is how long to keep completed jobs. Default: 24h.
	Retention time.Duration `yaml:"retention"`

	// PruneInterval is how often to prune expired jobs. Default: 1h.
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// BrowserConfig configures the chromedp-backed Browser Controller.
type BrowserConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Headless bool   `yaml:"headless"`

	// RemoteURL, when set, attaches to an existing DevTools endpoint
	// instead of launching a local Chrome instance.
	RemoteURL string `yaml:"remote_url"`

	// PoolSize bounds how many browser contexts the controller keeps warm.
	PoolSize int `yaml:"pool_size"`

	// NavigationTimeout bounds page navigation RPCs.
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
}

// WebSearchConfig configures the websearch tool.
type WebSearchConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
}

// WebFetchConfig configures the webfetch tool.
type WebFetchConfig struct {
	Enabled  bool `yaml:"enabled"`
	MaxChars int  `yaml:"max_chars"`
}

// MemorySearchConfig configures the memory_search tool's backend selection.
type MemorySearchConfig struct {
	Enabled bool `yaml:"enabled"`

	// Backend selects the memory.Backend implementation. "memory" is the
	// only backend shipped in this module; other values name an external
	// vector store integration left to the deployer.
	Backend string `yaml:"backend"`

	MaxResults int `yaml:"max_results"`
}

// DefaultToolsConfig returns a ToolsConfig with spec defaults applied.
func DefaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		Execution: ToolExecutionConfig{
			MaxIterations: 50,
			Parallelism:   8,
			Timeout:       60 * time.Second,
			MaxAttempts:   3,
			RetryBackoff:  500 * time.Millisecond,
		},
		Jobs: ToolJobsConfig{
			Retention:     24 * time.Hour,
			PruneInterval: time.Hour,
		},
		Browser: BrowserConfig{
			PoolSize:          2,
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
		},
		MemorySearch: MemorySearchConfig{
			Backend:    "memory",
			MaxResults: 10,
		},
	}
}
