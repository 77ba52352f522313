package driving

import (
	"context"

	"github.com/ragbase/ragbase/internal/core/domain"
)

// IngestOptions configures an ingestion submission.
type IngestOptions struct {
	// Kind is the job kind; defaults to ingest.
	Kind domain.JobKind

	// ContinueOnError keeps the job running past item failures.
	ContinueOnError bool

	// Parallelism overrides the configured worker-pool ceiling when
	// positive.
	Parallelism int
}

// ProgressFunc receives processed/total after each item completes,
// successfully or as a recorded failure.
type ProgressFunc func(processed, total int)

// Ingestor drives the write path: normalise, chunk, embed, index.
type Ingestor interface {
	// Register creates a pending document for a source URI and returns
	// it. MIME type "auto" defers engine selection to content sniffing.
	Register(ctx context.Context, sourceURI, mimeType string, metadata map[string]string) (*domain.Document, error)

	// Ingest submits a bulk job covering the given documents and
	// returns its ID. The job runs in the background; progress is
	// observable through JobService and the optional callback.
	Ingest(ctx context.Context, documentIDs []string, opts IngestOptions, onProgress ProgressFunc) (string, error)

	// Delete removes a document, its chunks, embeddings and index
	// entries. Referential cleanup is transactional with the delete.
	Delete(ctx context.Context, documentID string) error
}

// JobService exposes bulk job records.
type JobService interface {
	// Get returns a job's current state.
	Get(ctx context.Context, jobID string) (*domain.BulkJob, error)

	// List returns all job records, newest first.
	List(ctx context.Context) ([]domain.BulkJob, error)

	// Cancel requests cooperative cancellation: in-flight items
	// complete, queued items are skipped. Returns
	// domain.ErrJobNotCancellable for terminal jobs.
	Cancel(ctx context.Context, jobID string) error
}
