// Package chunker provides a sliding-window text chunking processor.
package chunker

import (
	"context"
	"fmt"
	"unicode"

	"github.com/google/uuid"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// snapTolerance is how far back from the nominal chunk end the chunker
// looks for a sentence or word boundary before giving up and cutting
// mid-word.
const snapTolerance = 30

// Processor splits document content into overlapping chunks.
// Chunk boundaries are snapped to the nearest sentence or whitespace
// boundary within a small tolerance. Offsets are rune positions into
// the normalised document content.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// New creates a chunker with the given options. The configuration is
// validated against the documented ranges before any work starts.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: domain.DefaultSettings().ChunkSize,
		overlap:   domain.DefaultSettings().ChunkOverlap,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.chunkSize < domain.MinChunkSize || p.chunkSize > domain.MaxChunkSize {
		return nil, fmt.Errorf("%w: chunk size %d outside [%d, %d]",
			domain.ErrInvalidConfig, p.chunkSize, domain.MinChunkSize, domain.MaxChunkSize)
	}
	if p.overlap < domain.MinChunkOverlap || p.overlap > domain.MaxChunkOverlap {
		return nil, fmt.Errorf("%w: overlap %d outside [%d, %d]",
			domain.ErrInvalidConfig, p.overlap, domain.MinChunkOverlap, domain.MaxChunkOverlap)
	}
	if p.overlap >= p.chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be less than chunk size %d",
			domain.ErrInvalidConfig, p.overlap, p.chunkSize)
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks. Input chunks are
// ignored; this processor creates new chunks from document content.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc.Content == "" {
		// Empty content produces no chunks
		return nil, nil
	}

	runes := []rune(doc.Content)
	total := len(runes)

	estimated := total/(p.chunkSize-p.overlap) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	start := 0
	prevEnd := 0
	sequence := 0

	for start < total {
		end := start + p.chunkSize
		if end >= total {
			end = total
		} else {
			end = snapBoundary(runes, start, end)
		}

		overlap := 0
		if sequence > 0 {
			overlap = prevEnd - start
		}

		chunks = append(chunks, domain.Chunk{
			ID:              uuid.New().String(),
			DocumentID:      doc.ID,
			Sequence:        sequence,
			Text:            string(runes[start:end]),
			CharStart:       start,
			CharEnd:         end,
			OverlapWithPrev: overlap,
			Metadata:        make(map[string]string),
		})
		sequence++

		if end == total {
			break
		}

		next := end - p.overlap
		if next <= start {
			// Snapping cannot regress the window
			next = start + 1
		}
		prevEnd = end
		start = next
	}

	return chunks, nil
}

// snapBoundary moves a nominal chunk end backwards to the nearest
// sentence end, or failing that the nearest whitespace, within the
// tolerance. Returns the nominal end unchanged when no boundary is
// close enough.
func snapBoundary(runes []rune, start, end int) int {
	limit := end - snapTolerance
	if limit <= start {
		return end
	}

	// Sentence boundaries first: cut just after terminal punctuation.
	for i := end - 1; i >= limit; i-- {
		switch runes[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}

	// Fall back to any whitespace.
	for i := end - 1; i >= limit; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}

	return end
}
