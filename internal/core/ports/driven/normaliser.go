package driven

import (
	"context"

	"github.com/ragbase/ragbase/internal/core/domain"
)

// ExtractionEngine converts raw document bytes into plain text.
// Each engine handles specific MIME types (e.g. text parsing, OCR for
// images, transcription for audio).
type ExtractionEngine interface {
	// Name identifies the engine in logs and provenance records.
	Name() string

	// SupportedMIMETypes returns the MIME types this engine handles.
	// A trailing "/*" matches a whole top-level type (e.g. "image/*").
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred) when
	// several engines match the same MIME type.
	Priority() int

	// Retryable reports whether a transient failure of this engine is
	// worth one retry. OCR and transcription backends are; local
	// parsers are not.
	Retryable() bool

	// Extract produces plain text from raw bytes.
	// Returns domain.ErrExtractionFailed when the engine ran but
	// produced no usable text.
	Extract(ctx context.Context, raw []byte, mimeType string, hints map[string]string) (*domain.NormalisedText, error)
}

// NormaliserRegistry dispatches raw documents to extraction engines.
// MIME type "auto" triggers engine selection by content sniffing.
type NormaliserRegistry interface {
	// Normalise selects an engine for the MIME type and extracts text.
	// Returns domain.ErrUnsupportedFormat when no engine matches, and
	// domain.ErrExtractionTimeout when the engine exceeds the configured
	// processing timeout.
	Normalise(ctx context.Context, raw []byte, mimeType string, hints map[string]string) (*domain.NormalisedText, error)
}

// PostProcessor processes normalised document content to produce chunks.
// PostProcessors are chained in a pipeline (e.g. chunking, language
// tagging, metadata extraction).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes a document and returns chunks. A chunk-creating
	// processor (the chunker) receives nil and returns new chunks;
	// chunk-modifying processors receive and return the slice.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the document through all processors in order and
	// returns the final chunks.
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}
