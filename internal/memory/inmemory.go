package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dyzdyz010/agentrt/pkg/models"
)

// InMemoryBackend keeps memory entries in a process-local index, scored by
// token overlap against the query. It satisfies Backend without depending
// on an embedding provider or external vector store.
type InMemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]*models.MemoryEntry
	now     func() time.Time
}

// NewInMemoryBackend creates an empty in-memory backend.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{
		entries: make(map[string]*models.MemoryEntry),
		now:     time.Now,
	}
}

// Search ranks entries within scope by token overlap against the query.
func (b *InMemoryBackend) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	if req == nil {
		return &models.SearchResponse{}, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	queryTokens := tokenize(req.Query)

	b.mu.RLock()
	candidates := make([]*models.SearchResult, 0, len(b.entries))
	for _, entry := range b.entries {
		if !scopeMatches(entry, req.Scope, req.ScopeID) {
			continue
		}
		if !matchesFilters(entry, req.Filters) {
			continue
		}
		score := overlapScore(queryTokens, entry.Content)
		if score < req.Threshold {
			continue
		}
		candidates = append(candidates, &models.SearchResult{
			Entry:      cloneEntry(entry),
			Score:      score,
			Highlights: highlight(entry.Content, queryTokens),
		})
	}
	b.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	return &models.SearchResponse{
		Results:    candidates,
		TotalCount: len(candidates),
		QueryTime:  time.Since(start),
	}, nil
}

// Store indexes entries directly, assigning ids and timestamps where absent.
func (b *InMemoryBackend) Store(ctx context.Context, req *models.StoreRequest) error {
	if req == nil || len(req.Entries) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	for _, entry := range req.Entries {
		if entry == nil {
			continue
		}
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		entry.UpdatedAt = now
		b.entries[entry.ID] = cloneEntry(entry)
	}
	return nil
}

// StoreMessages indexes conversation messages long enough to be useful.
func (b *InMemoryBackend) StoreMessages(ctx context.Context, req *models.StoreMessagesRequest) error {
	if req == nil || len(req.Messages) == 0 {
		return nil
	}
	const minContentLength = 10

	entries := make([]*models.MemoryEntry, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg == nil || len(strings.TrimSpace(msg.Content)) < minContentLength {
			continue
		}
		entries = append(entries, &models.MemoryEntry{
			SessionID: req.SessionID,
			ChannelID: req.ChannelID,
			AgentID:   req.AgentID,
			Content:   msg.Content,
			Metadata: models.MemoryMetadata{
				Source: "message",
				Role:   string(msg.Role),
			},
		})
	}
	return b.Store(ctx, &models.StoreRequest{Entries: entries})
}

// Delete removes entries by id.
func (b *InMemoryBackend) Delete(ctx context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		delete(b.entries, id)
	}
	return nil
}

// DeleteBySource removes every entry attributed to a source within a scope.
func (b *InMemoryBackend) DeleteBySource(ctx context.Context, req *models.DeleteBySourceRequest) error {
	if req == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, entry := range b.entries {
		if entry.Metadata.Source != req.Source {
			continue
		}
		if !scopeMatches(entry, req.Scope, req.ScopeID) {
			continue
		}
		delete(b.entries, id)
	}
	return nil
}

// Health reports the entry count; the in-memory backend is always serving.
func (b *InMemoryBackend) Health(ctx context.Context) (*models.HealthStatus, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return &models.HealthStatus{
		Healthy: true,
		Entries: int64(len(b.entries)),
	}, nil
}

func scopeMatches(entry *models.MemoryEntry, scope models.MemoryScope, scopeID string) bool {
	switch scope {
	case models.ScopeSession:
		return scopeID == "" || entry.SessionID == scopeID
	case models.ScopeChannel:
		return scopeID == "" || entry.ChannelID == scopeID
	case models.ScopeAgent:
		return scopeID == "" || entry.AgentID == scopeID
	case models.ScopeGlobal, "":
		return true
	default:
		return true
	}
}

func matchesFilters(entry *models.MemoryEntry, filters map[string]any) bool {
	if len(filters) == 0 {
		return true
	}
	if source, ok := filters["source"].(string); ok && source != "" && entry.Metadata.Source != source {
		return false
	}
	if role, ok := filters["role"].(string); ok && role != "" && entry.Metadata.Role != role {
		return false
	}
	return true
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	return fields
}

func overlapScore(queryTokens []string, content string) float32 {
	if len(queryTokens) == 0 {
		return 0
	}
	contentTokens := tokenize(content)
	present := make(map[string]bool, len(contentTokens))
	for _, tok := range contentTokens {
		present[tok] = true
	}
	matched := 0
	for _, tok := range queryTokens {
		if present[tok] {
			matched++
		}
	}
	return float32(matched) / float32(len(queryTokens))
}

func highlight(content string, queryTokens []string) []string {
	if len(queryTokens) == 0 {
		return nil
	}
	lower := strings.ToLower(content)
	var hits []string
	for _, tok := range queryTokens {
		if idx := strings.Index(lower, tok); idx >= 0 {
			start := idx
			end := idx + len(tok)
			if end > len(content) {
				end = len(content)
			}
			hits = append(hits, content[start:end])
		}
	}
	return hits
}

func cloneEntry(entry *models.MemoryEntry) *models.MemoryEntry {
	if entry == nil {
		return nil
	}
	clone := *entry
	if entry.Metadata.Tags != nil {
		clone.Metadata.Tags = append([]string(nil), entry.Metadata.Tags...)
	}
	if entry.Metadata.Extra != nil {
		extra := make(map[string]any, len(entry.Metadata.Extra))
		for k, v := range entry.Metadata.Extra {
			extra[k] = v
		}
		clone.Metadata.Extra = extra
	}
	return &clone
}
