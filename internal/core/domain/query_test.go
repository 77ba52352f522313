package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSearchAlgorithm_IsValid tests all valid and invalid algorithms.
func TestSearchAlgorithm_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		algorithm SearchAlgorithm
		expected  bool
	}{
		{name: "semantic is valid", algorithm: SearchSemantic, expected: true},
		{name: "keyword is valid", algorithm: SearchKeyword, expected: true},
		{name: "hybrid is valid", algorithm: SearchHybrid, expected: true},
		{name: "fuzzy is valid", algorithm: SearchFuzzy, expected: true},
		{name: "faceted is valid", algorithm: SearchFaceted, expected: true},
		{name: "empty string is invalid", algorithm: SearchAlgorithm(""), expected: false},
		{name: "unknown algorithm is invalid", algorithm: SearchAlgorithm("regex"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.algorithm.IsValid())
		})
	}
}

// TestSearchAlgorithm_RequiresEmbedding tests embedding requirements.
func TestSearchAlgorithm_RequiresEmbedding(t *testing.T) {
	assert.True(t, SearchSemantic.RequiresEmbedding())
	assert.True(t, SearchHybrid.RequiresEmbedding())
	assert.True(t, SearchFaceted.RequiresEmbedding())
	assert.False(t, SearchKeyword.RequiresEmbedding())
	assert.False(t, SearchFuzzy.RequiresEmbedding())
}

// TestRAGStrategy_Algorithm maps each strategy to its retrieval algorithm.
func TestRAGStrategy_Algorithm(t *testing.T) {
	tests := []struct {
		strategy RAGStrategy
		expected SearchAlgorithm
	}{
		{RAGSemantic, SearchSemantic},
		{RAGKeyword, SearchKeyword},
		{RAGHybrid, SearchHybrid},
		{RAGContextual, SearchHybrid},
		{RAGAdaptive, SearchHybrid},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.strategy.Algorithm())
		})
	}
}

func TestRAGStrategy_IsValid(t *testing.T) {
	for _, s := range []RAGStrategy{RAGSemantic, RAGKeyword, RAGHybrid, RAGContextual, RAGAdaptive} {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, RAGStrategy("greedy").IsValid())
	assert.False(t, RAGStrategy("").IsValid())
}

func TestRankingMethod_IsValid(t *testing.T) {
	for _, m := range []RankingMethod{RankRelevance, RankDiversity, RankAuthority, RankFreshness} {
		assert.True(t, m.IsValid(), m)
	}
	assert.False(t, RankingMethod("random").IsValid())
}

func TestIndexType_IsValid(t *testing.T) {
	for _, it := range []IndexType{IndexVector, IndexHybrid, IndexFullText} {
		assert.True(t, it.IsValid(), it)
	}
	assert.False(t, IndexType("btree").IsValid())
}

// TestDocumentStatus_Terminal verifies terminal state detection.
func TestDocumentStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusReady.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
