package config

import "time"

// CronConfig configures the Cron Executor.
type CronConfig struct {
	Enabled bool `yaml:"enabled"`

	// TickInterval is how often the scheduler checks for due jobs.
	// Default: 1s.
	TickInterval time.Duration `yaml:"tick_interval"`

	Jobs []CronJobConfig `yaml:"jobs"`
}

// CronJobConfig defines a single scheduled job.
type CronJobConfig struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`

	Schedule CronScheduleConfig `yaml:"schedule"`
	Payload  CronPayloadConfig  `yaml:"payload"`

	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// CronScheduleConfig defines when a job runs. Exactly one of Cron or Every
// should be set.
type CronScheduleConfig struct {
	Cron     string        `yaml:"cron"`
	Every    time.Duration `yaml:"every"`
	At       string        `yaml:"at"`
	Timezone string        `yaml:"timezone"`
}

// CronPayloadConfig selects and configures one of the two cron payload
// strategies.
type CronPayloadConfig struct {
	// Kind is "system_event" or "agent_turn".
	Kind string `yaml:"kind"`

	SystemEvent *CronSystemEventConfig `yaml:"system_event,omitempty"`
	AgentTurn   *CronAgentTurnConfig   `yaml:"agent_turn,omitempty"`
}

// CronSystemEventConfig configures a system_event payload: a synthetic
// message appended to an existing session's log without invoking the
// Agent Loop.
type CronSystemEventConfig struct {
	SessionKey string         `yaml:"session_key"`
	Content    string         `yaml:"content"`
	Metadata   map[string]any `yaml:"metadata"`
}

// CronAgentTurnConfig configures an agent_turn payload: an isolated agent
// run against a fresh "cron:<jobId>:<runId>" session.
type CronAgentTurnConfig struct {
	AgentID string `yaml:"agent_id"`
	Prompt  string `yaml:"prompt"`
}
