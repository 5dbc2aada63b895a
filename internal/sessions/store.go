package sessions

import (
	"context"

	"github.com/dyzdyz010/agentrt/pkg/models"
)

// MaxHistoryMessages bounds how many trailing messages a run loads per
// preparation; the full log is never held in memory between runs.
const MaxHistoryMessages = 100

// Store is the interface for session persistence.
//
// A session is identified by its SessionKey (spec §3), not by a
// caller-chosen row id: GetOrCreate is the normal entry point and must be
// idempotent for a given key.
type Store interface {
	// Session CRUD
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error
	Archive(ctx context.Context, id string) error

	// Session lookup
	GetByKey(ctx context.Context, key string) (*models.Session, error)
	GetOrCreate(ctx context.Context, key string, agentID string, channel models.ChannelType, channelID string) (*models.Session, error)
	List(ctx context.Context, agentID string, opts ListOptions) ([]*models.Session, error)

	// Message history
	AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error
	GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*CockroachStore)(nil)
)

// ListOptions configures session listing.
type ListOptions struct {
	Channel models.ChannelType
	Limit   int
	Offset  int
}

// Key builds the canonical session_key for a channel conversation:
// "<channel>:<peer>" per spec §3. Cron-originated sessions use
// CronKey instead.
func Key(channel models.ChannelType, peer string) string {
	return string(channel) + ":" + peer
}

// CronKey builds the session_key for an isolated cron agent_turn run:
// "cron:<jobId>:<runId>" per spec §3.
func CronKey(jobID, runID string) string {
	return "cron:" + jobID + ":" + runID
}
