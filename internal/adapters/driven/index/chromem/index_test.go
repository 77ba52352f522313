package chromem

import (
	"context"
	"testing"

	chromemgo "github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
)

// noEmbed satisfies the collection API; every committed entry carries
// a precomputed vector, so it must never be called.
func noEmbed(t *testing.T) chromemgo.EmbeddingFunc {
	return func(context.Context, string) ([]float32, error) {
		t.Fatal("embedding func should not be called")
		return nil, nil
	}
}

func entry(id, text string, vector []float32, meta map[string]string) driven.IndexEntry {
	return driven.IndexEntry{
		Chunk:  domain.Chunk{ID: id, Text: text, Metadata: meta},
		Vector: vector,
	}
}

func TestVectorQuery(t *testing.T) {
	idx, err := New(3, noEmbed(t))
	require.NoError(t, err)
	defer idx.Close()
	ctx := context.Background()

	_, err = idx.CommitBatch(ctx, []driven.IndexEntry{
		entry("c1", "alpha", []float32{1, 0, 0}, nil),
		entry("c2", "beta", []float32{0, 1, 0}, nil),
		entry("c3", "gamma", []float32{0.9, 0.1, 0}, nil),
	}, nil)
	require.NoError(t, err)

	out, err := idx.Query(ctx, driven.QuerySpec{
		Mode:   driven.QueryVector,
		Vector: []float32{1, 0, 0},
		TopK:   2,
	})
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "c1", out[0].ChunkID)
	assert.Equal(t, "c3", out[1].ChunkID)
	assert.Equal(t, domain.ScoreVector, out[0].Source)
}

func TestKeywordDelegation(t *testing.T) {
	idx, err := New(0, noEmbed(t))
	require.NoError(t, err)
	defer idx.Close()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, entry("c1", "postgres replication guide", nil, nil)))

	out, err := idx.Query(ctx, driven.QuerySpec{Mode: driven.QueryKeyword, Text: "replication"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "c1", out[0].ChunkID)
	assert.Equal(t, domain.ScoreKeyword, out[0].Source)
}

func TestCommitBatch_ReplacesAndDeletes(t *testing.T) {
	idx, err := New(2, noEmbed(t))
	require.NoError(t, err)
	defer idx.Close()
	ctx := context.Background()

	_, err = idx.CommitBatch(ctx, []driven.IndexEntry{
		entry("keep", "keep me", []float32{1, 0}, nil),
		entry("drop", "drop me", []float32{0, 1}, nil),
	}, nil)
	require.NoError(t, err)
	v1 := idx.Version()

	res, err := idx.CommitBatch(ctx, nil, []string{"drop", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.Greater(t, res.Version, v1)

	out, err := idx.Query(ctx, driven.QuerySpec{Mode: driven.QueryVector, Vector: []float32{0, 1}, TopK: 10})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "keep", out[0].ChunkID)
}

func TestDimensionMismatch(t *testing.T) {
	idx, err := New(2, noEmbed(t))
	require.NoError(t, err)
	defer idx.Close()

	err = idx.Upsert(context.Background(), entry("c1", "x", []float32{1, 2, 3}, nil))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestFilters_UnknownKey(t *testing.T) {
	idx, err := New(2, noEmbed(t))
	require.NoError(t, err)
	defer idx.Close()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, entry("c1", "x", []float32{1, 0}, map[string]string{"category": "faq"})))

	_, err = idx.Query(ctx, driven.QuerySpec{
		Mode:    driven.QueryVector,
		Vector:  []float32{1, 0},
		Filters: map[string]string{"bogus": "y"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}

func TestEmptyIndexQuery(t *testing.T) {
	idx, err := New(0, noEmbed(t))
	require.NoError(t, err)
	defer idx.Close()

	out, err := idx.Query(context.Background(), driven.QuerySpec{Mode: driven.QueryVector, Vector: []float32{1}})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPersistence_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := New(2, noEmbed(t), WithPersistence(dir))
	require.NoError(t, err)
	_, err = idx.CommitBatch(ctx, []driven.IndexEntry{
		entry("c1", "postgres replication guide", []float32{1, 0}, map[string]string{"category": "db"}),
		entry("c2", "kafka partitioning notes", []float32{0, 1}, nil),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	reopened, err := New(0, noEmbed(t), WithPersistence(dir))
	require.NoError(t, err)
	defer reopened.Close()

	out, err := reopened.Query(ctx, driven.QuerySpec{
		Mode:   driven.QueryVector,
		Vector: []float32{1, 0},
		TopK:   1,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "c1", out[0].ChunkID)

	out, err = reopened.Query(ctx, driven.QuerySpec{Mode: driven.QueryKeyword, Text: "replication"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "c1", out[0].ChunkID)

	// Metadata keys survive too.
	out, err = reopened.Query(ctx, driven.QuerySpec{
		Mode:    driven.QueryVector,
		Vector:  []float32{1, 0},
		Filters: map[string]string{"category": "db"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "c1", out[0].ChunkID)
}

func TestPersistence_CommitAfterReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := New(2, noEmbed(t), WithPersistence(dir))
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, entry("c1", "first", []float32{1, 0}, nil)))
	require.NoError(t, idx.Close())

	reopened, err := New(2, noEmbed(t), WithPersistence(dir))
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.Upsert(ctx, entry("c2", "second", []float32{0, 1}, nil)))

	out, err := reopened.Query(ctx, driven.QuerySpec{
		Mode:   driven.QueryVector,
		Vector: []float32{0, 1},
		TopK:   2,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "c2", out[0].ChunkID)
}
