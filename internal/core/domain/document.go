package domain

import "time"

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

// Document lifecycle states.
const (
	// StatusPending means the document is uploaded but not yet processed.
	StatusPending DocumentStatus = "pending"

	// StatusProcessing means the ingestion pipeline is running.
	StatusProcessing DocumentStatus = "processing"

	// StatusReady means all chunks are committed and visible in the index.
	StatusReady DocumentStatus = "ready"

	// StatusFailed means ingestion failed; see the document's error metadata.
	StatusFailed DocumentStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusReady, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true once the pipeline will no longer mutate the document.
func (s DocumentStatus) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// String returns the string representation.
func (s DocumentStatus) String() string {
	return string(s)
}

// Document represents one knowledge base document.
// It is created on upload and mutated by the ingestion pipeline.
// Deleting a document cascades to its chunks and embeddings.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// SourceURI is the original location (file path, URL, blob key).
	SourceURI string

	// MIMEType is the declared or sniffed content type of the raw bytes.
	MIMEType string

	// Language is the detected language code (e.g. "en"), if known.
	Language string

	// Content is the full normalised text before chunking.
	Content string

	// Status is the current pipeline state.
	Status DocumentStatus

	// Metadata contains document-level key-value pairs. Well-known keys
	// include "authority" (trust weight for ranking) and "category".
	Metadata map[string]string

	// CreatedAt is when the document was first registered.
	CreatedAt time.Time

	// UpdatedAt is when the document was last mutated.
	UpdatedAt time.Time
}

// Chunk is a bounded substring of a document's normalised text.
// It is the atomic unit of embedding and retrieval.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Sequence is the ordinal position within the document. Chunks of a
	// document are contiguous in Sequence starting at 0.
	Sequence int

	// Text is the chunk's slice of the normalised text.
	Text string

	// CharStart and CharEnd are byte offsets into the normalised text.
	// CharEnd is exclusive; CharEnd > CharStart always holds.
	CharStart int
	CharEnd   int

	// OverlapWithPrev is how many characters at the start of this chunk
	// are shared with the end of the previous chunk.
	OverlapWithPrev int

	// EmbeddingID links to the chunk's current Embedding record.
	// Empty until the chunk has been embedded.
	EmbeddingID string

	// Metadata contains chunk-specific key-value pairs (page number,
	// auto-extracted tags, language).
	Metadata map[string]string
}

// Embedding is an immutable vector record for one chunk.
// Re-embedding creates a new record and retires the old one; the swap
// is the index's responsibility.
type Embedding struct {
	// ID is the unique identifier for the embedding record.
	ID string

	// ChunkID links to the chunk this vector represents (1:1).
	ChunkID string

	// Model is the embedding model that produced the vector.
	Model string

	// Dimension is the vector length. Fixed per model.
	Dimension int

	// Vector is the embedding itself. Not normalised by the producer.
	Vector []float32

	// CreatedAt is when the vector was generated.
	CreatedAt time.Time
}

// NormalisedText is the output of document normalisation.
type NormalisedText struct {
	// Text is the extracted plain text.
	Text string

	// Language is the detected language code, empty if undetected.
	Language string

	// Engine names the extraction engine that produced the text.
	Engine string
}
