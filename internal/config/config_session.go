package config

import "time"

// SessionConfig configures session history retention and idle expiry.
type SessionConfig struct {
	// HistoryLimit bounds how many trailing messages a run loads per
	// preparation. Default: 100 (sessions.MaxHistoryMessages).
	HistoryLimit int `yaml:"history_limit"`

	// IdleTimeout archives a session after this much inactivity. Zero
	// disables idle-based archival.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// BranchingEnabled turns on the optional BranchStore for sub-agent
	// conversation forking. Disabled sessions use a single implicit
	// primary branch.
	BranchingEnabled bool `yaml:"branching_enabled"`
}

// DefaultSessionConfig returns a SessionConfig with defaults applied.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		HistoryLimit: 100,
		IdleTimeout:  30 * time.Minute,
	}
}
