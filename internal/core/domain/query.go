package domain

const unknownDescription = "Unknown"

// SearchAlgorithm selects how the retrieval engine matches chunks.
type SearchAlgorithm string

// Available search algorithms.
const (
	// SearchSemantic embeds the query and runs vector nearest-neighbour.
	SearchSemantic SearchAlgorithm = "semantic"

	// SearchKeyword runs BM25 term matching over the inverted index.
	SearchKeyword SearchAlgorithm = "keyword"

	// SearchHybrid runs both and merges by weighted score combination.
	SearchHybrid SearchAlgorithm = "hybrid"

	// SearchFuzzy is keyword search tolerant of term edit distance.
	SearchFuzzy SearchAlgorithm = "fuzzy"

	// SearchFaceted constrains keyword+semantic search by exact-match
	// metadata filters before scoring.
	SearchFaceted SearchAlgorithm = "faceted"
)

// IsValid returns true if the algorithm is recognised.
func (a SearchAlgorithm) IsValid() bool {
	switch a {
	case SearchSemantic, SearchKeyword, SearchHybrid, SearchFuzzy, SearchFaceted:
		return true
	default:
		return false
	}
}

// RequiresEmbedding returns true if the algorithm needs a query vector.
func (a SearchAlgorithm) RequiresEmbedding() bool {
	return a == SearchSemantic || a == SearchHybrid || a == SearchFaceted
}

// String returns the string representation.
func (a SearchAlgorithm) String() string {
	return string(a)
}

// Description returns a human-readable description of the algorithm.
func (a SearchAlgorithm) Description() string {
	switch a {
	case SearchSemantic:
		return "Semantic (vector similarity)"
	case SearchKeyword:
		return "Keyword (BM25 term matching)"
	case SearchHybrid:
		return "Hybrid (weighted vector + keyword)"
	case SearchFuzzy:
		return "Fuzzy (typo-tolerant keyword)"
	case SearchFaceted:
		return "Faceted (metadata-filtered hybrid)"
	default:
		return unknownDescription
	}
}

// RAGStrategy selects how retrieved chunks become prompt context.
type RAGStrategy string

// Available RAG strategies.
const (
	// RAGSemantic assembles the top semantic candidates.
	RAGSemantic RAGStrategy = "semantic"

	// RAGKeyword assembles the top keyword candidates.
	RAGKeyword RAGStrategy = "keyword"

	// RAGHybrid assembles the top hybrid candidates.
	RAGHybrid RAGStrategy = "hybrid"

	// RAGContextual expands each selected chunk with its immediate
	// neighbours from the same document.
	RAGContextual RAGStrategy = "contextual"

	// RAGAdaptive escalates hybrid -> contextual -> relaxed threshold
	// until at least one chunk fills the context.
	RAGAdaptive RAGStrategy = "adaptive"
)

// IsValid returns true if the strategy is recognised.
func (s RAGStrategy) IsValid() bool {
	switch s {
	case RAGSemantic, RAGKeyword, RAGHybrid, RAGContextual, RAGAdaptive:
		return true
	default:
		return false
	}
}

// Algorithm returns the search algorithm a strategy retrieves with.
func (s RAGStrategy) Algorithm() SearchAlgorithm {
	switch s {
	case RAGSemantic:
		return SearchSemantic
	case RAGKeyword:
		return SearchKeyword
	default:
		// contextual and adaptive both start from hybrid retrieval.
		return SearchHybrid
	}
}

// String returns the string representation.
func (s RAGStrategy) String() string {
	return string(s)
}

// RankingMethod selects how the ranker reorders candidates.
type RankingMethod string

// Available ranking methods.
const (
	// RankRelevance sorts by raw score descending.
	RankRelevance RankingMethod = "relevance"

	// RankDiversity applies a greedy maximal-marginal-relevance pass to
	// suppress near-duplicate chunks.
	RankDiversity RankingMethod = "diversity"

	// RankAuthority boosts by a document-level trust weight.
	RankAuthority RankingMethod = "authority"

	// RankFreshness boosts inversely by document age.
	RankFreshness RankingMethod = "freshness"
)

// IsValid returns true if the method is recognised.
func (m RankingMethod) IsValid() bool {
	switch m {
	case RankRelevance, RankDiversity, RankAuthority, RankFreshness:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m RankingMethod) String() string {
	return string(m)
}

// IndexType selects the index backend configuration.
type IndexType string

// Available index types.
const (
	// IndexVector is nearest-neighbour over embeddings only.
	IndexVector IndexType = "vector"

	// IndexHybrid combines vector and inverted keyword indexes.
	IndexHybrid IndexType = "hybrid"

	// IndexFullText is the inverted keyword index only.
	IndexFullText IndexType = "fullText"
)

// IsValid returns true if the index type is recognised.
func (t IndexType) IsValid() bool {
	switch t {
	case IndexVector, IndexHybrid, IndexFullText:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t IndexType) String() string {
	return string(t)
}

// ScoreSource identifies which signal produced a candidate's raw score.
type ScoreSource string

// Score sources.
const (
	ScoreVector  ScoreSource = "vector"
	ScoreKeyword ScoreSource = "keyword"
	ScoreHybrid  ScoreSource = "hybrid"
)

// RetrievalCandidate is a transient scored hit produced per query.
type RetrievalCandidate struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// RawScore is the backend's relevance score. Cosine similarity for
	// vector hits, BM25 weight for keyword hits, combined for hybrid.
	RawScore float64

	// Source identifies the signal that scored this candidate.
	Source ScoreSource

	// Highlights are matched-term snippets from the chunk text, up to
	// three. Empty for candidates surfaced without a term match.
	Highlights []string
}

// ContextChunk is one entry of an assembled RAG context.
type ContextChunk struct {
	// ChunkID is the included chunk.
	ChunkID string

	// DocumentID is the chunk's parent document.
	DocumentID string

	// Sequence is the chunk's position within its document.
	Sequence int

	// Text is the chunk text included in the context.
	Text string

	// Score is the post-ranking score the chunk was selected with.
	Score float64
}

// RagContext is the final prompt-context payload. It is transient and
// never persisted. Chunks are ordered by document position within each
// source document, not by score, for coherent reading order.
type RagContext struct {
	// Strategy is the RAG strategy that produced this context.
	// For adaptive queries it records the escalation step that filled it.
	Strategy RAGStrategy

	// Chunks is the ordered context payload.
	Chunks []ContextChunk

	// TotalChars is the summed length of all chunk texts.
	TotalChars int

	// CorpusVersion is the index version the context was assembled against.
	CorpusVersion uint64
}

// QueryOptions configures one retrieval request. Zero values fall back
// to the persisted settings.
type QueryOptions struct {
	// Algorithm selects the retrieval algorithm.
	Algorithm SearchAlgorithm

	// Strategy selects the RAG assembly strategy.
	Strategy RAGStrategy

	// Ranking selects the candidate re-ranking method.
	Ranking RankingMethod

	// TopK is the maximum candidate count, capped by max results.
	TopK int

	// SimilarityThreshold filters semantic candidates below it.
	SimilarityThreshold float64

	// ContextWindow is the assembled context budget in characters.
	ContextWindow int

	// Filters are exact-match metadata constraints (faceted search).
	Filters map[string]string
}
