package langtag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragbase/ragbase/internal/core/domain"
)

func TestProcess_TagsChunks(t *testing.T) {
	p := New()
	doc := &domain.Document{ID: "doc-1", Language: "en"}
	chunks := []domain.Chunk{
		{ID: "c1", Metadata: map[string]string{"page": "1"}},
		{ID: "c2"},
	}

	out, err := p.Process(context.Background(), doc, chunks)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "en", out[0].Metadata["language"])
	assert.Equal(t, "1", out[0].Metadata["page"])
	assert.Equal(t, "en", out[1].Metadata["language"])
}

func TestProcess_NoLanguagePassthrough(t *testing.T) {
	p := New()
	doc := &domain.Document{ID: "doc-1"}
	chunks := []domain.Chunk{{ID: "c1"}}

	out, err := p.Process(context.Background(), doc, chunks)
	require.NoError(t, err)
	assert.Nil(t, out[0].Metadata)
}
