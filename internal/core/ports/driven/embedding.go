package driven

import "context"

// EmbedResult is the per-item outcome of a batched embedding call.
// A provider error for one item fails only that item; callers decide
// whether to retry or mark the chunk failed.
type EmbedResult struct {
	// Vector is the embedding, nil when Err is set.
	Vector []float32

	// Err is the item-level failure. domain.ErrThrottled is retryable
	// with backoff; domain.ErrRejected is not.
	Err error
}

// EmbeddingProvider generates vector embeddings from text.
// This is an optional service - when nil, semantic retrieval is disabled.
//
// Vectors are not normalised by the provider; normalisation, where a
// model needs it, is the index's concern.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
type EmbeddingProvider interface {
	// Embed generates a vector embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. The returned
	// slice always has one result per input, in input order. The error
	// return is reserved for whole-batch failures (network, auth);
	// per-item failures are reported inside the results.
	EmbedBatch(ctx context.Context, texts []string) ([]EmbedResult, error)

	// Dimensions returns the embedding vector size. Fixed per model and
	// checked against the index configuration at upsert time.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
