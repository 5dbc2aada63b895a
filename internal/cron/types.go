package cron

import (
	"context"
	"time"
)

// PayloadKind selects one of the two job payload strategies.
type PayloadKind string

const (
	// PayloadSystemEvent delivers a synthetic system message into a
	// session's log without invoking the Agent Loop.
	PayloadSystemEvent PayloadKind = "system_event"

	// PayloadAgentTurn starts an isolated agent run against a fresh
	// "cron:<jobId>:<runId>" session, as if a user had sent a message.
	PayloadAgentTurn PayloadKind = "agent_turn"
)

// Schedule represents a parsed job schedule.
type Schedule struct {
	Kind     string
	CronExpr string
	Every    time.Duration
	At       time.Time
	Timezone string
}

// SystemEventPayload is the system_event job payload.
type SystemEventPayload struct {
	SessionKey string
	Content    string
	Metadata   map[string]any
}

// AgentTurnPayload is the agent_turn job payload.
type AgentTurnPayload struct {
	AgentID string
	Prompt  string
}

// Payload holds exactly one of the two payload strategies, selected by Kind.
type Payload struct {
	Kind        PayloadKind
	SystemEvent *SystemEventPayload
	AgentTurn   *AgentTurnPayload
}

// Job represents a scheduled job.
type Job struct {
	ID       string
	Name     string
	Enabled  bool
	Schedule Schedule
	Payload  Payload

	MaxAttempts  int
	RetryBackoff time.Duration

	NextRun    time.Time
	LastRun    time.Time
	LastError  string
	RetryCount int
}

// SystemEventSink delivers a system_event payload into a session's log.
type SystemEventSink interface {
	Deliver(ctx context.Context, payload *SystemEventPayload) error
}

// SystemEventSinkFunc adapts a function to a SystemEventSink.
type SystemEventSinkFunc func(ctx context.Context, payload *SystemEventPayload) error

// Deliver executes the sink function.
func (f SystemEventSinkFunc) Deliver(ctx context.Context, payload *SystemEventPayload) error {
	return f(ctx, payload)
}

// AgentRunner starts an isolated agent_turn run for a cron job.
type AgentRunner interface {
	Run(ctx context.Context, job *Job, payload *AgentTurnPayload) error
}

// AgentRunnerFunc adapts a function to an AgentRunner.
type AgentRunnerFunc func(ctx context.Context, job *Job, payload *AgentTurnPayload) error

// Run executes the agent runner function.
func (f AgentRunnerFunc) Run(ctx context.Context, job *Job, payload *AgentTurnPayload) error {
	return f(ctx, job, payload)
}
