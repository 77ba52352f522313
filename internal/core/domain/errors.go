package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors. Nothing here is fatal
// to the process; every failure is scoped to a document, chunk or job.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates a configuration value outside its
	// documented range. Rejected before any work starts.
	ErrInvalidConfig = errors.New("invalid configuration")

	// Normalisation errors.

	// ErrUnsupportedFormat indicates no extraction engine matches the
	// document's MIME type.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExtractionFailed indicates an engine ran but produced no usable
	// text, e.g. OCR confidence below threshold.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrExtractionTimeout indicates an engine exceeded the configured
	// processing timeout.
	ErrExtractionTimeout = errors.New("extraction timed out")

	// Embedding errors.

	// ErrThrottled indicates a provider rate or size limit that is safe
	// to retry with backoff.
	ErrThrottled = errors.New("embedding provider throttled")

	// ErrRejected indicates a non-retryable provider rejection, e.g.
	// input beyond the model's token limit.
	ErrRejected = errors.New("embedding request rejected")

	// Index errors.

	// ErrDimensionMismatch indicates a vector whose dimension differs
	// from the index's configured dimension. Fatal for the upsert; the
	// affected document is flagged failed.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIndexUnavailable indicates transient index storage
	// unavailability. Retryable.
	ErrIndexUnavailable = errors.New("index unavailable")

	// Query errors.

	// ErrInvalidFilter indicates a metadata filter referencing a key the
	// index has never seen.
	ErrInvalidFilter = errors.New("invalid metadata filter")

	// Job errors.

	// ErrJobNotCancellable indicates a cancel request against a job
	// already in a terminal state.
	ErrJobNotCancellable = errors.New("job not cancellable")

	// ErrJobCancelled indicates remaining items were skipped because the
	// job was cancelled.
	ErrJobCancelled = errors.New("job cancelled")

	// ErrEmbeddingUnavailable indicates no embedding provider is
	// configured; semantic retrieval is disabled.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
)

// Retryable reports whether an error is worth retrying with backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrThrottled) || errors.Is(err, ErrIndexUnavailable)
}
