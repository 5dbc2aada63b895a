// Package memory implements the memory backend contract: semantic-ish
// search, storage, and lifecycle operations over indexed conversation
// content. Concrete vector-database backends are out of scope; the one
// implementation shipped here (InMemoryBackend) keeps entries in a
// process-local index scored by token overlap, sufficient for tests and
// single-node deployments that don't need persistent recall across
// restarts.
package memory

import (
	"context"

	"github.com/dyzdyz010/agentrt/pkg/models"
)

// Backend is the contract every memory store implementation satisfies.
type Backend interface {
	// Search returns entries relevant to the request's query, ranked and
	// filtered by scope.
	Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error)

	// Store indexes entries directly.
	Store(ctx context.Context, req *models.StoreRequest) error

	// StoreMessages indexes a batch of conversation messages as entries.
	StoreMessages(ctx context.Context, req *models.StoreMessagesRequest) error

	// Delete removes entries by id.
	Delete(ctx context.Context, ids []string) error

	// DeleteBySource removes every entry attributed to a source within a
	// scope, e.g. clearing a session's indexed history on archival.
	DeleteBySource(ctx context.Context, req *models.DeleteBySourceRequest) error

	// Health reports whether the backend is serving and how many entries
	// it currently holds.
	Health(ctx context.Context) (*models.HealthStatus, error)
}
