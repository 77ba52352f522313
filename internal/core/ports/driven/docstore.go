package driven

import (
	"context"

	"github.com/ragbase/ragbase/internal/core/domain"
)

// DocumentStore persists documents, chunks and embedding records.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns all documents, newest first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// SetDocumentStatus updates only the status and updated-at fields.
	SetDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus) error

	// DeleteDocument removes a document, cascading to its chunks and
	// their embeddings.
	DeleteDocument(ctx context.Context, id string) error

	// ReplaceChunks atomically replaces a document's chunk set.
	// Re-ingesting an unchanged document therefore never accumulates
	// duplicate chunks.
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// GetChunks retrieves a document's chunks ordered by sequence.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// GetChunkBySequence retrieves a document's chunk at a sequence
	// position. Returns domain.ErrNotFound past either end.
	GetChunkBySequence(ctx context.Context, documentID string, sequence int) (*domain.Chunk, error)

	// SaveEmbedding stores an immutable embedding record and points the
	// chunk's embedding ID at it. The previous record, if any, is
	// retired (deleted) in the same transaction.
	SaveEmbedding(ctx context.Context, emb *domain.Embedding) error

	// GetEmbedding retrieves an embedding record by ID.
	GetEmbedding(ctx context.Context, id string) (*domain.Embedding, error)

	// GetEmbeddingForChunk retrieves a chunk's current embedding.
	GetEmbeddingForChunk(ctx context.Context, chunkID string) (*domain.Embedding, error)
}

// JobStore persists bulk job records. Terminal jobs are retained for
// audit after completion.
type JobStore interface {
	// SaveJob stores or updates a job record.
	SaveJob(ctx context.Context, job *domain.BulkJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, id string) (*domain.BulkJob, error)

	// ListJobs returns all job records, newest first.
	ListJobs(ctx context.Context) ([]domain.BulkJob, error)
}
