// Package langtag tags chunks with the document language.
package langtag

import (
	"context"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Processor copies the detected document language into each chunk's
// metadata so faceted queries can filter on it.
type Processor struct{}

// New creates a new language tagging processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "langtag"
}

// Process tags every chunk with the document's language. Documents
// without a detected language pass through untouched.
func (p *Processor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if doc.Language == "" {
		return chunks, nil
	}
	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]string)
		}
		chunks[i].Metadata["language"] = doc.Language
	}
	return chunks, nil
}
