package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
	"github.com/ragbase/ragbase/internal/logger"
)

// AssemblyInput is one ranked, hydrated chunk offered to the assembler.
type AssemblyInput struct {
	Chunk domain.Chunk
	Score float64
}

// Assembler turns ranked chunks into a budget-bounded RAG context.
// Chunks are included whole or not at all; the assembler never
// truncates chunk text. The assembled context is ordered by document
// position, not by score, for coherent reading order.
type Assembler struct {
	docStore driven.DocumentStore
}

// NewAssembler creates a new context assembler.
func NewAssembler(docStore driven.DocumentStore) *Assembler {
	return &Assembler{docStore: docStore}
}

// Assemble builds a context from ranked inputs under the character
// budget. The contextual strategy expands each selected chunk with its
// immediate neighbours from the same document when they fit. Adaptive
// escalation is the caller's concern; this method assembles one step.
func (a *Assembler) Assemble(
	ctx context.Context, strategy domain.RAGStrategy, items []AssemblyInput, contextWindow int, corpusVersion uint64,
) (*domain.RagContext, error) {
	selected := a.selectGreedy(items, contextWindow)

	if strategy == domain.RAGContextual {
		expanded, err := a.expandNeighbours(ctx, selected, contextWindow)
		if err != nil {
			return nil, err
		}
		selected = expanded
	}

	// Document order within the final payload.
	sort.Slice(selected, func(i, j int) bool {
		if selected[i].Chunk.DocumentID != selected[j].Chunk.DocumentID {
			return selected[i].Chunk.DocumentID < selected[j].Chunk.DocumentID
		}
		return selected[i].Chunk.Sequence < selected[j].Chunk.Sequence
	})

	result := &domain.RagContext{
		Strategy:      strategy,
		Chunks:        make([]domain.ContextChunk, 0, len(selected)),
		CorpusVersion: corpusVersion,
	}
	for _, item := range selected {
		result.Chunks = append(result.Chunks, domain.ContextChunk{
			ChunkID:    item.Chunk.ID,
			DocumentID: item.Chunk.DocumentID,
			Sequence:   item.Chunk.Sequence,
			Text:       item.Chunk.Text,
			Score:      item.Score,
		})
		result.TotalChars += len(item.Chunk.Text)
	}

	logger.Debug("Assembled %d chunks, %d/%d chars (%s)",
		len(result.Chunks), result.TotalChars, contextWindow, strategy)
	return result, nil
}

// selectGreedy walks items in ranked order and keeps every chunk that
// still fits the budget whole. A chunk that does not fit is skipped,
// not truncated; later smaller chunks may still be taken.
func (a *Assembler) selectGreedy(items []AssemblyInput, contextWindow int) []AssemblyInput {
	selected := make([]AssemblyInput, 0, len(items))
	used := 0
	seen := make(map[string]bool, len(items))

	for _, item := range items {
		if seen[item.Chunk.ID] {
			continue
		}
		size := len(item.Chunk.Text)
		if used+size > contextWindow {
			continue
		}
		selected = append(selected, item)
		seen[item.Chunk.ID] = true
		used += size
	}
	return selected
}

// expandNeighbours adds each selected chunk's sequence neighbours
// (previous and next within the same document) while they fit the
// remaining budget. Neighbours inherit the score of the chunk that
// pulled them in.
func (a *Assembler) expandNeighbours(ctx context.Context, selected []AssemblyInput, contextWindow int) ([]AssemblyInput, error) {
	used := 0
	seen := make(map[string]bool, len(selected))
	for _, item := range selected {
		used += len(item.Chunk.Text)
		seen[item.Chunk.ID] = true
	}

	expanded := selected
	for _, item := range selected {
		for _, sequence := range []int{item.Chunk.Sequence - 1, item.Chunk.Sequence + 1} {
			if sequence < 0 {
				continue
			}
			neighbour, err := a.docStore.GetChunkBySequence(ctx, item.Chunk.DocumentID, sequence)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("expand chunk %s: %w", item.Chunk.ID, err)
			}
			if seen[neighbour.ID] {
				continue
			}
			size := len(neighbour.Text)
			if used+size > contextWindow {
				continue
			}
			expanded = append(expanded, AssemblyInput{Chunk: *neighbour, Score: item.Score})
			seen[neighbour.ID] = true
			used += size
		}
	}
	return expanded, nil
}
