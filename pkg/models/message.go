package models

import (
	"encoding/json"
	"time"
)

// ChannelType labels which front-end produced or should deliver a message.
// Concrete channel protocol implementations live outside this module; the
// core only ever compares these as opaque labels.
type ChannelType string

const (
	ChannelTelegram ChannelType = "telegram"
	ChannelDiscord  ChannelType = "discord"
	ChannelSlack    ChannelType = "slack"
	ChannelHTTP     ChannelType = "http"
	ChannelCron     ChannelType = "cron"
)

// Direction indicates if a message is inbound or outbound.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// SessionState is the lifecycle state of a Session (spec §3).
type SessionState string

const (
	SessionActive   SessionState = "active"
	SessionArchived SessionState = "archived"
)

// Message is the unified, append-only message format for a session's log.
//
// Invariant (spec §3.1): a Role=tool message always carries ToolCallID
// referencing a ToolCall emitted by a prior Role=assistant message in the
// same session.
type Message struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	BranchID    string         `json:"branch_id,omitempty"`
	SequenceNum int64          `json:"sequence_num,omitempty"`
	Channel     ChannelType    `json:"channel"`
	ChannelID   string         `json:"channel_id,omitempty"` // platform-specific message id
	Direction   Direction      `json:"direction"`
	Role        Role           `json:"role"`
	Content     string         `json:"content"`
	ToolCallID  string         `json:"tool_call_id,omitempty"` // set on Role=tool messages
	Attachments []Attachment   `json:"attachments,omitempty"`
	ToolCalls   []ToolCall     `json:"tool_calls,omitempty"` // set on Role=assistant messages that request tools
	ToolResults []ToolResult   `json:"tool_results,omitempty"`
	Model       string         `json:"model,omitempty"`
	InputTokens int            `json:"input_tokens,omitempty"`
	OutputTokens int           `json:"output_tokens,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Attachment represents a file or media attachment.
type Attachment struct {
	ID       string `json:"id"`
	Type     string `json:"type"` // image, audio, video, document
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// ToolCall represents an LLM's request to execute a tool. Input is always
// a normalized JSON object (possibly "{}") — provider clients own
// translating their own wire shape into this one before the dispatcher
// ever sees it (spec §4.2, §9 "ad-hoc maps for tool calls").
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult represents the output of a tool execution.
type ToolResult struct {
	ToolCallID string     `json:"tool_call_id"`
	Content    string     `json:"content"`
	IsError    bool       `json:"is_error,omitempty"`
	Artifacts  []Artifact `json:"artifacts,omitempty"`
}

// Artifact represents a file or media artifact produced by a tool.
type Artifact struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Session is a logical conversation, identified by a stable Key
// ("<channel>:<peer>" or "cron:<jobId>:<runId>"). At most one worker is
// ever live for a given Key (spec §3, property P5).
type Session struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agent_id,omitempty"`
	Channel   ChannelType    `json:"channel"`
	ChannelID string         `json:"channel_id,omitempty"`
	Key       string         `json:"key"`
	State     SessionState   `json:"state"`
	Title     string         `json:"title,omitempty"`
	MessageCount int         `json:"message_count,omitempty"`
	TokenCount   int         `json:"token_count,omitempty"`
	LastActivityAt time.Time `json:"last_activity_at,omitzero"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Agent represents a configured AI agent identity: default model,
// provider, system prompt, and tool policy.
type Agent struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	Model        string         `json:"model"`
	Provider     string         `json:"provider"`
	Tools        []string       `json:"tools,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
