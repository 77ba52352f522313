package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
	"github.com/ragbase/ragbase/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage. Keys mirror the snake_case field
// names of domain.Settings under the "engine" table.
const (
	keyChunkSize           = "engine.chunk_size"
	keyChunkOverlap        = "engine.chunk_overlap"
	keyEmbeddingModel      = "engine.embedding_model"
	keyIndexType           = "engine.index_type"
	keySearchAlgorithm     = "engine.search_algorithm"
	keyRAGStrategy         = "engine.rag_strategy"
	keyRankingMethod       = "engine.ranking_method"
	keyContextWindow       = "engine.context_window"
	keySimilarityThreshold = "engine.similarity_threshold"
	keyMaxResults          = "engine.max_results"
	keyBatchSize           = "engine.batch_size"
	keyBulkParallelism     = "engine.bulk_parallelism"
	keyCacheTTL            = "engine.cache_ttl"
	keyVectorWeight        = "engine.vector_weight"
	keyKeywordWeight       = "engine.keyword_weight"
	keyDiversityThreshold  = "engine.diversity_threshold"
	keyQualityThreshold    = "engine.quality_threshold"
	keyQueryTimeout        = "engine.query_timeout"
)

// SettingsService manages the persisted configuration surface.
// Every value is validated before it reaches the config store; a bad
// value never takes effect and never partially persists.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get returns the current settings, overlaying persisted values on the
// documented defaults.
func (s *SettingsService) Get(_ context.Context) (domain.Settings, error) {
	settings := domain.DefaultSettings()

	settings.ChunkSize = s.getInt(keyChunkSize, settings.ChunkSize)
	settings.ChunkOverlap = s.getInt(keyChunkOverlap, settings.ChunkOverlap)
	settings.EmbeddingModel = s.getString(keyEmbeddingModel, settings.EmbeddingModel)
	settings.IndexType = domain.IndexType(s.getString(keyIndexType, settings.IndexType.String()))
	settings.SearchAlgorithm = domain.SearchAlgorithm(s.getString(keySearchAlgorithm, settings.SearchAlgorithm.String()))
	settings.RAGStrategy = domain.RAGStrategy(s.getString(keyRAGStrategy, settings.RAGStrategy.String()))
	settings.RankingMethod = domain.RankingMethod(s.getString(keyRankingMethod, settings.RankingMethod.String()))
	settings.ContextWindow = s.getInt(keyContextWindow, settings.ContextWindow)
	settings.SimilarityThreshold = s.getFloat(keySimilarityThreshold, settings.SimilarityThreshold)
	settings.MaxResults = s.getInt(keyMaxResults, settings.MaxResults)
	settings.BatchSize = s.getInt(keyBatchSize, settings.BatchSize)
	settings.BulkParallelism = s.getInt(keyBulkParallelism, settings.BulkParallelism)
	settings.VectorWeight = s.getFloat(keyVectorWeight, settings.VectorWeight)
	settings.KeywordWeight = s.getFloat(keyKeywordWeight, settings.KeywordWeight)
	settings.DiversityThreshold = s.getFloat(keyDiversityThreshold, settings.DiversityThreshold)
	settings.QualityThreshold = s.getFloat(keyQualityThreshold, settings.QualityThreshold)

	if ttl := s.configStore.GetString(keyCacheTTL); ttl != "" {
		parsed, err := time.ParseDuration(ttl)
		if err == nil {
			settings.CacheTTL = parsed
		}
	}
	if timeout := s.configStore.GetString(keyQueryTimeout); timeout != "" {
		parsed, err := time.ParseDuration(timeout)
		if err == nil {
			settings.QueryTimeout = parsed
		}
	}

	if err := settings.Validate(); err != nil {
		return domain.Settings{}, fmt.Errorf("stored settings: %w", err)
	}
	return settings, nil
}

// Update validates and persists a full settings value.
func (s *SettingsService) Update(_ context.Context, settings domain.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	pairs := []struct {
		key   string
		value any
	}{
		{keyChunkSize, settings.ChunkSize},
		{keyChunkOverlap, settings.ChunkOverlap},
		{keyEmbeddingModel, settings.EmbeddingModel},
		{keyIndexType, settings.IndexType.String()},
		{keySearchAlgorithm, settings.SearchAlgorithm.String()},
		{keyRAGStrategy, settings.RAGStrategy.String()},
		{keyRankingMethod, settings.RankingMethod.String()},
		{keyContextWindow, settings.ContextWindow},
		{keySimilarityThreshold, settings.SimilarityThreshold},
		{keyMaxResults, settings.MaxResults},
		{keyBatchSize, settings.BatchSize},
		{keyBulkParallelism, settings.BulkParallelism},
		{keyCacheTTL, settings.CacheTTL.String()},
		{keyVectorWeight, settings.VectorWeight},
		{keyKeywordWeight, settings.KeywordWeight},
		{keyDiversityThreshold, settings.DiversityThreshold},
		{keyQualityThreshold, settings.QualityThreshold},
		{keyQueryTimeout, settings.QueryTimeout.String()},
	}
	for _, p := range pairs {
		if err := s.configStore.Set(p.key, p.value); err != nil {
			return fmt.Errorf("persist %s: %w", p.key, err)
		}
	}
	return nil
}

// Set validates and persists a single key. The whole settings value is
// re-validated with the new field applied, so cross-field rules (e.g.
// overlap < size) hold.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	settings, err := s.Get(ctx)
	if err != nil {
		return err
	}

	if err := applyField(&settings, key, value); err != nil {
		return err
	}
	return s.Update(ctx, settings)
}

// applyField parses value into the named settings field.
func applyField(settings *domain.Settings, key, value string) error {
	switch key {
	case "chunk_size":
		return parseInt(value, key, &settings.ChunkSize)
	case "chunk_overlap":
		return parseInt(value, key, &settings.ChunkOverlap)
	case "embedding_model":
		settings.EmbeddingModel = value
	case "index_type":
		settings.IndexType = domain.IndexType(value)
	case "search_algorithm":
		settings.SearchAlgorithm = domain.SearchAlgorithm(value)
	case "rag_strategy":
		settings.RAGStrategy = domain.RAGStrategy(value)
	case "ranking_method":
		settings.RankingMethod = domain.RankingMethod(value)
	case "context_window":
		return parseInt(value, key, &settings.ContextWindow)
	case "similarity_threshold":
		return parseFloat(value, key, &settings.SimilarityThreshold)
	case "max_results":
		return parseInt(value, key, &settings.MaxResults)
	case "batch_size":
		return parseInt(value, key, &settings.BatchSize)
	case "bulk_parallelism":
		return parseInt(value, key, &settings.BulkParallelism)
	case "cache_ttl":
		ttl, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: cache_ttl %q is not a duration", domain.ErrInvalidConfig, value)
		}
		settings.CacheTTL = ttl
	case "vector_weight":
		return parseFloat(value, key, &settings.VectorWeight)
	case "keyword_weight":
		return parseFloat(value, key, &settings.KeywordWeight)
	case "diversity_threshold":
		return parseFloat(value, key, &settings.DiversityThreshold)
	case "quality_threshold":
		return parseFloat(value, key, &settings.QualityThreshold)
	case "query_timeout":
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: query_timeout %q is not a duration", domain.ErrInvalidConfig, value)
		}
		settings.QueryTimeout = timeout
	default:
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidConfig, key)
	}
	return nil
}

func parseInt(value, key string, dst *int) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%w: %s %q is not an integer", domain.ErrInvalidConfig, key, value)
	}
	*dst = n
	return nil
}

func parseFloat(value, key string, dst *float64) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%w: %s %q is not a number", domain.ErrInvalidConfig, key, value)
	}
	*dst = f
	return nil
}

func (s *SettingsService) getString(key, fallback string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return fallback
}

func (s *SettingsService) getInt(key string, fallback int) int {
	if v, ok := s.configStore.Get(key); ok {
		switch n := v.(type) {
		case int64:
			return int(n)
		case int:
			return n
		}
	}
	return fallback
}

func (s *SettingsService) getFloat(key string, fallback float64) float64 {
	if _, ok := s.configStore.Get(key); ok {
		return s.configStore.GetFloat(key)
	}
	return fallback
}
