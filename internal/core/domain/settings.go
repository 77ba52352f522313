package domain

import (
	"fmt"
	"time"
)

// Validation ranges for the persisted configuration surface.
const (
	MinChunkSize = 100
	MaxChunkSize = 2000

	MinChunkOverlap = 0
	MaxChunkOverlap = 500

	MinBatchSize = 1
	MaxBatchSize = 100

	MinContextWindow = 1000
	MaxContextWindow = 8000

	MinSimilarityThreshold = 0.1
	MaxSimilarityThreshold = 1.0

	MinMaxResults = 1
	MaxMaxResults = 20
)

// Settings is the persisted configuration surface of the engine.
// Every field is validated against the documented ranges before any
// work starts.
type Settings struct {
	// ChunkSize is the sliding-window chunk size in characters.
	ChunkSize int `koanf:"chunk_size" toml:"chunk_size" yaml:"chunk_size"`

	// ChunkOverlap is the overlap between consecutive chunks. Must be
	// strictly less than ChunkSize.
	ChunkOverlap int `koanf:"chunk_overlap" toml:"chunk_overlap" yaml:"chunk_overlap"`

	// EmbeddingModel names the embedding model binding.
	EmbeddingModel string `koanf:"embedding_model" toml:"embedding_model" yaml:"embedding_model"`

	// IndexType selects the index backend configuration.
	IndexType IndexType `koanf:"index_type" toml:"index_type" yaml:"index_type"`

	// SearchAlgorithm is the default retrieval algorithm.
	SearchAlgorithm SearchAlgorithm `koanf:"search_algorithm" toml:"search_algorithm" yaml:"search_algorithm"`

	// RAGStrategy is the default context assembly strategy.
	RAGStrategy RAGStrategy `koanf:"rag_strategy" toml:"rag_strategy" yaml:"rag_strategy"`

	// RankingMethod is the default candidate re-ranking method.
	RankingMethod RankingMethod `koanf:"ranking_method" toml:"ranking_method" yaml:"ranking_method"`

	// ContextWindow is the assembled context budget in characters.
	ContextWindow int `koanf:"context_window" toml:"context_window" yaml:"context_window"`

	// SimilarityThreshold filters semantic candidates below it.
	SimilarityThreshold float64 `koanf:"similarity_threshold" toml:"similarity_threshold" yaml:"similarity_threshold"`

	// MaxResults caps per-query result counts.
	MaxResults int `koanf:"max_results" toml:"max_results" yaml:"max_results"`

	// BatchSize is the embedding request batch size.
	BatchSize int `koanf:"batch_size" toml:"batch_size" yaml:"batch_size"`

	// BulkParallelism is the worker-pool ceiling for bulk jobs.
	BulkParallelism int `koanf:"bulk_parallelism" toml:"bulk_parallelism" yaml:"bulk_parallelism"`

	// CacheTTL bounds how long cached embeddings and RAG results live.
	CacheTTL time.Duration `koanf:"cache_ttl" toml:"cache_ttl" yaml:"cache_ttl"`

	// VectorWeight and KeywordWeight combine hybrid scores. They need
	// not sum to one; the merge normalises per-source scores first.
	VectorWeight  float64 `koanf:"vector_weight" toml:"vector_weight" yaml:"vector_weight"`
	KeywordWeight float64 `koanf:"keyword_weight" toml:"keyword_weight" yaml:"keyword_weight"`

	// DiversityThreshold is the MMR similarity cut-off above which a
	// candidate counts as a near-duplicate of an already-selected one.
	DiversityThreshold float64 `koanf:"diversity_threshold" toml:"diversity_threshold" yaml:"diversity_threshold"`

	// QualityThreshold drives adaptive escalation: a step's context is
	// accepted only when its mean chunk score reaches this value. Zero
	// escalates only on an empty context.
	QualityThreshold float64 `koanf:"quality_threshold" toml:"quality_threshold" yaml:"quality_threshold"`

	// QueryTimeout bounds one query execution. When it expires the
	// query returns the candidates already scored instead of blocking.
	QueryTimeout time.Duration `koanf:"query_timeout" toml:"query_timeout" yaml:"query_timeout"`
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		ChunkSize:           1000,
		ChunkOverlap:        200,
		EmbeddingModel:      "text-embedding-3-small",
		IndexType:           IndexHybrid,
		SearchAlgorithm:     SearchHybrid,
		RAGStrategy:         RAGHybrid,
		RankingMethod:       RankRelevance,
		ContextWindow:       4000,
		SimilarityThreshold: 0.3,
		MaxResults:          10,
		BatchSize:           32,
		BulkParallelism:     4,
		CacheTTL:            15 * time.Minute,
		VectorWeight:        0.5,
		KeywordWeight:       0.5,
		DiversityThreshold:  0.85,
		QualityThreshold:    0.25,
		QueryTimeout:        10 * time.Second,
	}
}

// Validate checks every field against its documented range.
// Violations are reported as ErrInvalidConfig.
func (s Settings) Validate() error {
	if s.ChunkSize < MinChunkSize || s.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: chunk_size %d outside [%d,%d]",
			ErrInvalidConfig, s.ChunkSize, MinChunkSize, MaxChunkSize)
	}
	if s.ChunkOverlap < MinChunkOverlap || s.ChunkOverlap > MaxChunkOverlap {
		return fmt.Errorf("%w: chunk_overlap %d outside [%d,%d]",
			ErrInvalidConfig, s.ChunkOverlap, MinChunkOverlap, MaxChunkOverlap)
	}
	if s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be less than chunk_size %d",
			ErrInvalidConfig, s.ChunkOverlap, s.ChunkSize)
	}
	if s.EmbeddingModel == "" {
		return fmt.Errorf("%w: embedding_model is required", ErrInvalidConfig)
	}
	if !s.IndexType.IsValid() {
		return fmt.Errorf("%w: unknown index_type %q", ErrInvalidConfig, s.IndexType)
	}
	if !s.SearchAlgorithm.IsValid() {
		return fmt.Errorf("%w: unknown search_algorithm %q", ErrInvalidConfig, s.SearchAlgorithm)
	}
	if !s.RAGStrategy.IsValid() {
		return fmt.Errorf("%w: unknown rag_strategy %q", ErrInvalidConfig, s.RAGStrategy)
	}
	if !s.RankingMethod.IsValid() {
		return fmt.Errorf("%w: unknown ranking_method %q", ErrInvalidConfig, s.RankingMethod)
	}
	if s.ContextWindow < MinContextWindow || s.ContextWindow > MaxContextWindow {
		return fmt.Errorf("%w: context_window %d outside [%d,%d]",
			ErrInvalidConfig, s.ContextWindow, MinContextWindow, MaxContextWindow)
	}
	if s.SimilarityThreshold < MinSimilarityThreshold || s.SimilarityThreshold > MaxSimilarityThreshold {
		return fmt.Errorf("%w: similarity_threshold %.2f outside [%.1f,%.1f]",
			ErrInvalidConfig, s.SimilarityThreshold, MinSimilarityThreshold, MaxSimilarityThreshold)
	}
	if s.MaxResults < MinMaxResults || s.MaxResults > MaxMaxResults {
		return fmt.Errorf("%w: max_results %d outside [%d,%d]",
			ErrInvalidConfig, s.MaxResults, MinMaxResults, MaxMaxResults)
	}
	if s.BatchSize < MinBatchSize || s.BatchSize > MaxBatchSize {
		return fmt.Errorf("%w: batch_size %d outside [%d,%d]",
			ErrInvalidConfig, s.BatchSize, MinBatchSize, MaxBatchSize)
	}
	if s.BulkParallelism < 1 {
		return fmt.Errorf("%w: bulk_parallelism %d must be at least 1",
			ErrInvalidConfig, s.BulkParallelism)
	}
	if s.CacheTTL <= 0 {
		return fmt.Errorf("%w: cache_ttl must be positive", ErrInvalidConfig)
	}
	if s.VectorWeight < 0 || s.KeywordWeight < 0 || s.VectorWeight+s.KeywordWeight == 0 {
		return fmt.Errorf("%w: hybrid weights must be non-negative and not both zero",
			ErrInvalidConfig)
	}
	if s.DiversityThreshold <= 0 || s.DiversityThreshold > 1 {
		return fmt.Errorf("%w: diversity_threshold %.2f outside (0,1]",
			ErrInvalidConfig, s.DiversityThreshold)
	}
	if s.QualityThreshold < 0 || s.QualityThreshold > 1 {
		return fmt.Errorf("%w: quality_threshold %.2f outside [0,1]",
			ErrInvalidConfig, s.QualityThreshold)
	}
	if s.QueryTimeout <= 0 {
		return fmt.Errorf("%w: query_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
