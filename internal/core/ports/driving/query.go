package driving

import (
	"context"

	"github.com/ragbase/ragbase/internal/core/domain"
)

// QueryResult carries the assembled context plus the ranked candidates
// for transparency and debugging.
type QueryResult struct {
	// Context is the budget-bounded RAG payload.
	Context domain.RagContext

	// Candidates is the post-ranking candidate list the context was
	// assembled from.
	Candidates []domain.RetrievalCandidate

	// Cached is true when the result was served from the RAG cache.
	Cached bool
}

// Querier drives the read path: retrieve, rank, assemble.
type Querier interface {
	// Query executes one retrieval request. Zero-valued options fall
	// back to the persisted settings. An empty index yields an empty
	// result, never an error.
	Query(ctx context.Context, text string, opts domain.QueryOptions) (*QueryResult, error)
}

// SettingsService exposes the validated persisted configuration surface.
type SettingsService interface {
	// Get returns the current settings.
	Get(ctx context.Context) (domain.Settings, error)

	// Update validates and persists a full settings value.
	Update(ctx context.Context, s domain.Settings) error

	// Set validates and persists a single key. The key uses the
	// settings' snake_case field names.
	Set(ctx context.Context, key, value string) error
}
