package postprocessors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragbase/ragbase/internal/core/domain"
)

// stubProcessor records invocations and applies a transform.
type stubProcessor struct {
	name  string
	fn    func(doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
	calls int
}

func (s *stubProcessor) Name() string { return s.name }

func (s *stubProcessor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	s.calls++
	return s.fn(doc, chunks)
}

func TestPipeline_RunsInOrder(t *testing.T) {
	creator := &stubProcessor{
		name: "creator",
		fn: func(doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
			require.Nil(t, chunks)
			return []domain.Chunk{{ID: "c1", DocumentID: doc.ID}}, nil
		},
	}
	tagger := &stubProcessor{
		name: "tagger",
		fn: func(_ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
			for i := range chunks {
				chunks[i].Metadata = map[string]string{"tagged": "yes"}
			}
			return chunks, nil
		},
	}

	p := NewPipeline(creator, tagger)
	chunks, err := p.Process(context.Background(), &domain.Document{ID: "doc-1"})
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, "yes", chunks[0].Metadata["tagged"])
	assert.Equal(t, 1, creator.calls)
	assert.Equal(t, 1, tagger.calls)
}

func TestPipeline_NilDocument(t *testing.T) {
	p := NewPipeline()
	_, err := p.Process(context.Background(), nil)
	assert.Error(t, err)
}

func TestPipeline_ProcessorErrorStopsChain(t *testing.T) {
	boom := errors.New("boom")
	failing := &stubProcessor{
		name: "failing",
		fn: func(*domain.Document, []domain.Chunk) ([]domain.Chunk, error) {
			return nil, boom
		},
	}
	never := &stubProcessor{
		name: "never",
		fn: func(_ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
			return chunks, nil
		},
	}

	p := NewPipeline(failing, never)
	_, err := p.Process(context.Background(), &domain.Document{ID: "doc-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
	assert.Equal(t, 0, never.calls)
}

func TestPipeline_Add(t *testing.T) {
	p := NewPipeline()
	assert.Equal(t, 0, p.Len())

	p.Add(&stubProcessor{name: "one", fn: func(_ *domain.Document, c []domain.Chunk) ([]domain.Chunk, error) {
		return c, nil
	}})
	assert.Equal(t, 1, p.Len())
}
