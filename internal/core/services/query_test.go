package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	indexmem "github.com/ragbase/ragbase/internal/adapters/driven/index/memory"
	storagemem "github.com/ragbase/ragbase/internal/adapters/driven/storage/memory"
	"github.com/ragbase/ragbase/internal/cache"
	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
)

type queryFixture struct {
	svc      *QueryService
	index    *indexmem.Index
	store    *storagemem.DocStore
	embedder *stubEmbedder
}

func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()
	store := storagemem.NewDocStore()
	index := indexmem.New(3)
	embedder := newStubEmbedder()
	settings := NewSettingsService(newFakeConfigStore())

	retrieval := NewRetrievalService(index, embedder, cache.New(time.Minute))
	svc := NewQueryService(
		retrieval, NewRanker(), NewAssembler(store),
		store, index, settings, cache.New(time.Minute),
	)

	f := &queryFixture{svc: svc, index: index, store: store, embedder: embedder}
	f.seed(t)
	return f
}

// seed stores and indexes two documents with three chunks.
func (f *queryFixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	docs := []domain.Document{
		{ID: "d1", SourceURI: "a.txt", Status: domain.StatusReady, Metadata: map[string]string{"authority": "2.0"}},
		{ID: "d2", SourceURI: "b.txt", Status: domain.StatusReady},
	}
	for i := range docs {
		require.NoError(t, f.store.SaveDocument(ctx, &docs[i]))
	}

	chunks := map[string][]domain.Chunk{
		"d1": {
			{ID: "c1", DocumentID: "d1", Sequence: 0, Text: "postgres replication basics", Metadata: map[string]string{"category": "db"}},
			{ID: "c2", DocumentID: "d1", Sequence: 1, Text: "failover configuration steps", Metadata: map[string]string{"category": "db"}},
		},
		"d2": {
			{ID: "c3", DocumentID: "d2", Sequence: 0, Text: "kafka partitioning guide", Metadata: map[string]string{"category": "queue"}},
		},
	}
	vectors := map[string][]float32{
		"c1": {1, 0, 0},
		"c2": {0.9, 0.1, 0},
		"c3": {0, 0, 1},
	}
	var entries []driven.IndexEntry
	for docID, docChunks := range chunks {
		require.NoError(t, f.store.ReplaceChunks(ctx, docID, docChunks))
		for _, chunk := range docChunks {
			entries = append(entries, driven.IndexEntry{Chunk: chunk, Vector: vectors[chunk.ID]})
		}
	}
	_, err := f.index.CommitBatch(ctx, entries, nil)
	require.NoError(t, err)
}

func TestQuery_EmptyText(t *testing.T) {
	f := newQueryFixture(t)
	result, err := f.svc.Query(context.Background(), "   ", domain.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Context.Chunks)
	assert.False(t, result.Cached)
}

func TestQuery_HybridEndToEnd(t *testing.T) {
	f := newQueryFixture(t)

	result, err := f.svc.Query(context.Background(), "postgres replication", domain.QueryOptions{})
	require.NoError(t, err)

	require.NotEmpty(t, result.Context.Chunks)
	assert.Equal(t, "c1", result.Context.Chunks[0].ChunkID)
	assert.Equal(t, domain.RAGHybrid, result.Context.Strategy)
	assert.NotEmpty(t, result.Candidates)
	assert.False(t, result.Cached)
	assert.Positive(t, result.Context.TotalChars)
}

func TestQuery_ResultsAreCached(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	first, err := f.svc.Query(ctx, "postgres", domain.QueryOptions{})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := f.svc.Query(ctx, "postgres", domain.QueryOptions{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Context, second.Context)
}

func TestQuery_IndexCommitInvalidatesCache(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	_, err := f.svc.Query(ctx, "postgres", domain.QueryOptions{})
	require.NoError(t, err)

	// Any commit bumps the corpus version, changing the cache key.
	_, err = f.index.CommitBatch(ctx, nil, []string{"c3"})
	require.NoError(t, err)

	result, err := f.svc.Query(ctx, "postgres", domain.QueryOptions{})
	require.NoError(t, err)
	assert.False(t, result.Cached)
}

func TestQuery_DifferentOptionsMissCache(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	_, err := f.svc.Query(ctx, "postgres", domain.QueryOptions{Strategy: domain.RAGHybrid})
	require.NoError(t, err)

	result, err := f.svc.Query(ctx, "postgres", domain.QueryOptions{Strategy: domain.RAGContextual})
	require.NoError(t, err)
	assert.False(t, result.Cached)
}

func TestQuery_ContextualExpandsNeighbours(t *testing.T) {
	f := newQueryFixture(t)

	result, err := f.svc.Query(context.Background(), "postgres replication", domain.QueryOptions{
		Strategy: domain.RAGContextual,
		TopK:     1,
	})
	require.NoError(t, err)

	// c1 pulls in its sequence neighbour c2.
	ids := make([]string, len(result.Context.Chunks))
	for i, c := range result.Context.Chunks {
		ids[i] = c.ChunkID
	}
	assert.Contains(t, ids, "c1")
	assert.Contains(t, ids, "c2")
}

func TestQuery_FacetedFilter(t *testing.T) {
	f := newQueryFixture(t)

	result, err := f.svc.Query(context.Background(), "guide", domain.QueryOptions{
		Algorithm: domain.SearchFaceted,
		Filters:   map[string]string{"category": "queue"},
	})
	require.NoError(t, err)

	for _, c := range result.Context.Chunks {
		assert.Equal(t, "d2", c.DocumentID)
	}
}

func TestQuery_UnknownFilterKey(t *testing.T) {
	f := newQueryFixture(t)

	_, err := f.svc.Query(context.Background(), "guide", domain.QueryOptions{
		Algorithm: domain.SearchFaceted,
		Filters:   map[string]string{"bogus": "x"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}

func TestQuery_EmptyIndexYieldsEmptyResult(t *testing.T) {
	store := storagemem.NewDocStore()
	index := indexmem.New(3)
	settings := NewSettingsService(newFakeConfigStore())
	retrieval := NewRetrievalService(index, newStubEmbedder(), nil)
	svc := NewQueryService(retrieval, NewRanker(), NewAssembler(store), store, index, settings, nil)

	result, err := svc.Query(context.Background(), "anything", domain.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Context.Chunks)
}

func TestQuery_AdaptiveEscalates(t *testing.T) {
	f := newQueryFixture(t)

	// A query matching nothing by keyword and nothing above the default
	// similarity threshold forces adaptive past hybrid. The stub
	// embedder's default query vector [1,0,0] still matches c1 once the
	// threshold relaxes, so escalation terminates with content.
	f.embedder.vectors["zxqv"] = []float32{0, 1, 0}

	result, err := f.svc.Query(context.Background(), "zxqv", domain.QueryOptions{
		Strategy: domain.RAGAdaptive,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Context.Chunks)
	assert.Equal(t, domain.RAGAdaptive, result.Context.Strategy)
}

func TestQuery_AdaptiveEscalatesOnLowQuality(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	settings := NewSettingsService(newFakeConfigStore())
	require.NoError(t, settings.Set(ctx, "quality_threshold", "0.9"))
	retrieval := NewRetrievalService(f.index, f.embedder, nil)
	svc := NewQueryService(retrieval, NewRanker(), NewAssembler(f.store), f.store, f.index, settings, nil)

	// Hybrid finds chunks for this query, but every hit comes from a
	// single signal so no combined score clears 0.9.
	hybrid, err := svc.Query(ctx, "kafka partitioning", domain.QueryOptions{Strategy: domain.RAGHybrid})
	require.NoError(t, err)
	require.NotEmpty(t, hybrid.Context.Chunks)

	result, err := svc.Query(ctx, "kafka partitioning", domain.QueryOptions{Strategy: domain.RAGAdaptive})
	require.NoError(t, err)

	// Despite hybrid yielding chunks, low quality pushed adaptive
	// past it; with hybrid accepted the strategy would read hybrid.
	require.NotEmpty(t, result.Context.Chunks)
	assert.Equal(t, domain.RAGAdaptive, result.Context.Strategy)
}

func TestQuery_ExpiredDeadlineReturnsGracefully(t *testing.T) {
	f := newQueryFixture(t)

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	result, err := f.svc.Query(expired, "postgres replication", domain.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Context.Chunks)

	// The degraded result must not have been cached.
	fresh, err := f.svc.Query(context.Background(), "postgres replication", domain.QueryOptions{})
	require.NoError(t, err)
	assert.False(t, fresh.Cached)
	assert.NotEmpty(t, fresh.Context.Chunks)
}

func TestQuery_DeterministicForSameCorpus(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()
	opts := domain.QueryOptions{Strategy: domain.RAGHybrid}

	first, err := f.svc.Query(ctx, "postgres failover", opts)
	require.NoError(t, err)

	// Bypass the cache by querying a fresh service over the same state.
	settings := NewSettingsService(newFakeConfigStore())
	retrieval := NewRetrievalService(f.index, f.embedder, nil)
	fresh := NewQueryService(retrieval, NewRanker(), NewAssembler(f.store), f.store, f.index, settings, nil)

	second, err := fresh.Query(ctx, "postgres failover", opts)
	require.NoError(t, err)
	assert.Equal(t, first.Context, second.Context)
}

func TestQuery_StaleCandidatesSkipped(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	// Remove c3's stored chunk but leave it indexed.
	require.NoError(t, f.store.ReplaceChunks(ctx, "d2", nil))

	result, err := f.svc.Query(ctx, "kafka partitioning", domain.QueryOptions{Algorithm: domain.SearchKeyword})
	require.NoError(t, err)
	for _, c := range result.Context.Chunks {
		assert.NotEqual(t, "c3", c.ChunkID)
	}
}

func TestQuery_CandidatesCarryHighlights(t *testing.T) {
	f := newQueryFixture(t)

	result, err := f.svc.Query(context.Background(), "kafka partitioning", domain.QueryOptions{Algorithm: domain.SearchKeyword})
	require.NoError(t, err)
	require.NotEmpty(t, result.Candidates)

	assert.Equal(t, "c3", result.Candidates[0].ChunkID)
	require.NotEmpty(t, result.Candidates[0].Highlights)
	assert.Contains(t, result.Candidates[0].Highlights[0], "kafka")
}

func TestGenerateHighlights(t *testing.T) {
	content := "Kafka partitions scale consumers. Replication is separate. A third sentence here."

	got := generateHighlights(content, "replication")

	require.Len(t, got, 1)
	assert.Equal(t, "Replication is separate.", got[0])
}

func TestGenerateHighlights_LimitsToThree(t *testing.T) {
	content := "alpha one. alpha two. alpha three. alpha four."

	got := generateHighlights(content, "alpha")

	assert.Len(t, got, 3)
}

func TestGenerateHighlights_NoMatch(t *testing.T) {
	assert.Nil(t, generateHighlights("nothing relevant here.", "quasar"))
	assert.Nil(t, generateHighlights("some text", "   "))
}
