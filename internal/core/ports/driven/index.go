package driven

import (
	"context"

	"github.com/ragbase/ragbase/internal/core/domain"
)

// QueryMode selects which signal an index query uses.
type QueryMode string

// Query modes.
const (
	// QueryVector runs nearest-neighbour over embeddings.
	QueryVector QueryMode = "vector"

	// QueryKeyword runs term matching over the inverted index.
	QueryKeyword QueryMode = "keyword"
)

// QuerySpec describes one index query.
type QuerySpec struct {
	// Mode selects the signal.
	Mode QueryMode

	// Vector is the query embedding. Required for QueryVector.
	Vector []float32

	// Text is the raw query text. Required for QueryKeyword; the index
	// applies its own analysis.
	Text string

	// Fuzzy enables edit-distance tolerance on keyword terms.
	Fuzzy bool

	// Filters are exact-match metadata constraints. Candidates failing
	// any filter are excluded before scoring. A filter referencing a key
	// the index has never seen yields domain.ErrInvalidFilter.
	Filters map[string]string

	// TopK caps the candidate count.
	TopK int
}

// IndexEntry is the unit of index mutation: one chunk plus its vector.
// Vector may be nil for keyword-only indexing.
type IndexEntry struct {
	Chunk  domain.Chunk
	Vector []float32
}

// BatchResult reports the outcome of an atomic batch commit.
type BatchResult struct {
	// Committed is the number of entries made visible.
	Committed int

	// Deleted is the number of chunk IDs removed.
	Deleted int

	// Version is the corpus version after the commit. Monotonic,
	// bumped once per commit.
	Version uint64
}

// Index is the persistent hybrid index: vector store, inverted keyword
// index and per-chunk metadata filter fields.
//
// CommitBatch is atomic per call: either all entries in the batch become
// visible to subsequent queries or none do. Implementations achieve this
// with a staging-then-swap discipline; reads never block on writes.
type Index interface {
	// Upsert adds or replaces a single entry. Returns
	// domain.ErrDimensionMismatch when the vector's dimension differs
	// from the index's configured dimension.
	Upsert(ctx context.Context, entry IndexEntry) error

	// Delete removes a chunk. Deleting an unknown ID is an idempotent
	// no-op, not an error.
	Delete(ctx context.Context, chunkID string) error

	// CommitBatch applies upserts and deletes atomically.
	CommitBatch(ctx context.Context, entries []IndexEntry, deleteIDs []string) (*BatchResult, error)

	// Query executes one search. An empty index returns an empty
	// candidate slice, never an error. Ties are broken by chunk ID
	// ascending for determinism.
	Query(ctx context.Context, spec QuerySpec) ([]domain.RetrievalCandidate, error)

	// Version returns the current corpus version.
	Version() uint64

	// Close releases resources.
	Close() error
}
