package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragbase/ragbase/internal/core/domain"
)

func rankIDs(items []RankItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ChunkID
	}
	return ids
}

func TestRanker_Relevance(t *testing.T) {
	ranker := NewRanker()

	items := []RankItem{
		{ChunkID: "b", Score: 0.5},
		{ChunkID: "a", Score: 0.9},
		{ChunkID: "c", Score: 0.5},
	}
	ranked := ranker.Rank(domain.RankRelevance, items, 0.85)

	assert.Equal(t, []string{"a", "b", "c"}, rankIDs(ranked))

	// Input order untouched.
	assert.Equal(t, "b", items[0].ChunkID)
}

func TestRanker_TiesBreakByChunkID(t *testing.T) {
	ranker := NewRanker()

	items := []RankItem{
		{ChunkID: "z", Score: 0.5},
		{ChunkID: "a", Score: 0.5},
		{ChunkID: "m", Score: 0.5},
	}
	ranked := ranker.Rank(domain.RankRelevance, items, 0.85)
	assert.Equal(t, []string{"a", "m", "z"}, rankIDs(ranked))
}

func TestRanker_NeverAddsOrRemoves(t *testing.T) {
	ranker := NewRanker()
	items := []RankItem{
		{ChunkID: "a", Score: 0.9, Text: "the same text exactly"},
		{ChunkID: "b", Score: 0.8, Text: "the same text exactly"},
		{ChunkID: "c", Score: 0.7, Text: "something else entirely"},
	}

	for _, method := range []domain.RankingMethod{
		domain.RankRelevance, domain.RankDiversity, domain.RankAuthority, domain.RankFreshness,
	} {
		ranked := ranker.Rank(method, items, 0.85)
		assert.Len(t, ranked, len(items), "method %s", method)
		assert.ElementsMatch(t, rankIDs(items), rankIDs(ranked), "method %s", method)
	}
}

func TestRanker_DiversityDemotesNearDuplicates(t *testing.T) {
	ranker := NewRanker()

	items := []RankItem{
		{ChunkID: "a", Score: 0.9, Text: "The quick brown fox jumps over the lazy dog"},
		{ChunkID: "b", Score: 0.8, Text: "The quick brown fox jumps over the lazy dog!"},
		{ChunkID: "c", Score: 0.7, Text: "Completely unrelated discussion of database indexes"},
	}
	ranked := ranker.Rank(domain.RankDiversity, items, 0.85)

	// b is a near-duplicate of a: demoted behind the distinct c.
	assert.Equal(t, []string{"a", "c", "b"}, rankIDs(ranked))
}

func TestRanker_DiversityKeepsDistinctOrder(t *testing.T) {
	ranker := NewRanker()

	items := []RankItem{
		{ChunkID: "a", Score: 0.9, Text: "alpha topic about chunking"},
		{ChunkID: "b", Score: 0.8, Text: "beta topic about embeddings"},
	}
	ranked := ranker.Rank(domain.RankDiversity, items, 0.85)
	assert.Equal(t, []string{"a", "b"}, rankIDs(ranked))
}

func TestRanker_Authority(t *testing.T) {
	ranker := NewRanker()

	items := []RankItem{
		{ChunkID: "a", Score: 0.6, Authority: 1.0},
		{ChunkID: "b", Score: 0.5, Authority: 2.0},
	}
	ranked := ranker.Rank(domain.RankAuthority, items, 0.85)

	// b: 0.5*2.0 = 1.0 beats a: 0.6*1.0.
	assert.Equal(t, []string{"b", "a"}, rankIDs(ranked))
	assert.InDelta(t, 1.0, ranked[0].Score, 1e-9)
}

func TestRanker_AuthorityUnsetIsNeutral(t *testing.T) {
	ranker := NewRanker()

	items := []RankItem{
		{ChunkID: "a", Score: 0.6},
		{ChunkID: "b", Score: 0.5},
	}
	ranked := ranker.Rank(domain.RankAuthority, items, 0.85)
	assert.Equal(t, []string{"a", "b"}, rankIDs(ranked))
}

func TestRanker_Freshness(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	ranker := NewRanker()
	ranker.now = func() time.Time { return now }

	items := []RankItem{
		{ChunkID: "old", Score: 0.6, UpdatedAt: now.Add(-90 * 24 * time.Hour)},
		{ChunkID: "new", Score: 0.5, UpdatedAt: now.Add(-1 * time.Hour)},
	}
	ranked := ranker.Rank(domain.RankFreshness, items, 0.85)

	// 90 days is three half-lives: 0.6*0.125 loses to ~0.5.
	assert.Equal(t, []string{"new", "old"}, rankIDs(ranked))
}

func TestRanker_FreshnessZeroTimeNeutral(t *testing.T) {
	ranker := NewRanker()
	items := []RankItem{{ChunkID: "a", Score: 0.4}}
	ranked := ranker.Rank(domain.RankFreshness, items, 0.85)
	require.Len(t, ranked, 1)
	assert.InDelta(t, 0.4, ranked[0].Score, 1e-9)
}

func TestParseAuthority(t *testing.T) {
	assert.Equal(t, 1.0, ParseAuthority(nil))
	assert.Equal(t, 1.0, ParseAuthority(map[string]string{"category": "docs"}))
	assert.Equal(t, 2.5, ParseAuthority(map[string]string{"authority": "2.5"}))
	assert.Equal(t, 1.0, ParseAuthority(map[string]string{"authority": "high"}))
	assert.Equal(t, 1.0, ParseAuthority(map[string]string{"authority": "-3"}))
}

func TestTrigramCosine(t *testing.T) {
	a := trigramProfile("the quick brown fox")
	assert.InDelta(t, 1.0, trigramCosine(a, a), 1e-9)
	assert.Equal(t, 0.0, trigramCosine(a, trigramProfile("zzzzyyyxxx")))
	assert.Equal(t, 0.0, trigramCosine(a, trigramProfile("")))
}
