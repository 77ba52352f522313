package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ragbase/ragbase/internal/cache"
	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
	"github.com/ragbase/ragbase/internal/logger"
)

// RetrievalService executes one retrieval algorithm against the index.
// It owns query embedding (with caching) and hybrid score merging;
// candidate re-ranking and context assembly live elsewhere.
type RetrievalService struct {
	index      driven.Index
	embedder   driven.EmbeddingProvider
	embedCache *cache.Cache
}

// NewRetrievalService creates a new retrieval service.
// The embedder is optional; when nil, algorithms that need a query
// vector degrade to keyword search where possible.
func NewRetrievalService(index driven.Index, embedder driven.EmbeddingProvider, embedCache *cache.Cache) *RetrievalService {
	return &RetrievalService{
		index:      index,
		embedder:   embedder,
		embedCache: embedCache,
	}
}

// Retrieve runs one algorithm and returns scored candidates, capped at
// opts.TopK and sorted by score descending (ties broken by chunk ID).
func (s *RetrievalService) Retrieve(
	ctx context.Context, query string, algorithm domain.SearchAlgorithm, opts domain.QueryOptions, settings domain.Settings,
) ([]domain.RetrievalCandidate, error) {
	algorithm = s.effectiveAlgorithm(algorithm)
	logger.Debug("Retrieval: algorithm=%s topK=%d filters=%d", algorithm, opts.TopK, len(opts.Filters))

	var hits []domain.RetrievalCandidate
	var err error
	switch algorithm {
	case domain.SearchSemantic:
		hits, err = s.vectorSearch(ctx, query, opts.TopK, opts.SimilarityThreshold, opts.Filters)
	case domain.SearchKeyword:
		hits, err = s.keywordSearch(ctx, query, opts.TopK, false, opts.Filters)
	case domain.SearchFuzzy:
		hits, err = s.keywordSearch(ctx, query, opts.TopK, true, opts.Filters)
	case domain.SearchHybrid, domain.SearchFaceted:
		// Faceted is hybrid with filters; filters are already in opts.
		hits, err = s.hybridSearch(ctx, query, opts, settings)
	default:
		return nil, fmt.Errorf("%w: unknown search_algorithm %q", domain.ErrInvalidConfig, algorithm)
	}
	if deadlineExpired(err) {
		// Out of time; whatever was scored so far is the result.
		logger.Warn("Retrieval deadline expired, returning partial results")
		return []domain.RetrievalCandidate{}, nil
	}
	return hits, err
}

// deadlineExpired reports whether err is the query deadline firing, as
// opposed to a real failure or a caller cancel.
func deadlineExpired(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// effectiveAlgorithm degrades vector-dependent algorithms when no
// embedding provider is configured.
func (s *RetrievalService) effectiveAlgorithm(algorithm domain.SearchAlgorithm) domain.SearchAlgorithm {
	if s.embedder != nil || !algorithm.RequiresEmbedding() {
		return algorithm
	}
	logger.Warn("No embedding provider, degrading %s to keyword search", algorithm)
	return domain.SearchKeyword
}

// embedQuery returns the query vector, served from the embedding cache
// when possible. The cache key covers the model so a model change never
// reuses stale vectors.
func (s *RetrievalService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.embedCache == nil {
		return s.embedder.Embed(ctx, query)
	}

	key := cache.Key("embed", s.embedder.ModelName(), query)
	v, err := s.embedCache.GetOrCompute(key, func() (any, error) {
		return s.embedder.Embed(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func (s *RetrievalService) vectorSearch(
	ctx context.Context, query string, topK int, threshold float64, filters map[string]string,
) ([]domain.RetrievalCandidate, error) {
	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.index.Query(ctx, driven.QuerySpec{
		Mode:    driven.QueryVector,
		Vector:  vector,
		Filters: filters,
		TopK:    topK,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return filterByThreshold(hits, threshold), nil
}

func (s *RetrievalService) keywordSearch(
	ctx context.Context, query string, topK int, fuzzy bool, filters map[string]string,
) ([]domain.RetrievalCandidate, error) {
	hits, err := s.index.Query(ctx, driven.QuerySpec{
		Mode:    driven.QueryKeyword,
		Text:    query,
		Fuzzy:   fuzzy,
		Filters: filters,
		TopK:    topK,
	})
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return hits, nil
}

// hybridSearch runs the vector and keyword signals concurrently and
// merges them by weighted combination of min-max normalised scores.
// Duplicate hits keep their best combined position; the merge never
// invents candidates.
func (s *RetrievalService) hybridSearch(
	ctx context.Context, query string, opts domain.QueryOptions, settings domain.Settings,
) ([]domain.RetrievalCandidate, error) {
	if s.embedder == nil {
		logger.Warn("Hybrid search without embedding provider, keyword only")
		return s.keywordSearch(ctx, query, opts.TopK, false, opts.Filters)
	}

	var vectorHits, keywordHits []domain.RetrievalCandidate

	// A signal cut off by the query deadline contributes nothing
	// instead of failing the whole search; the other signal's hits
	// still make it out.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := s.vectorSearch(gctx, query, opts.TopK, opts.SimilarityThreshold, opts.Filters)
		if err != nil {
			if deadlineExpired(err) {
				logger.Warn("Vector signal missed the query deadline")
				return nil
			}
			return err
		}
		vectorHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := s.keywordSearch(gctx, query, opts.TopK, false, opts.Filters)
		if err != nil {
			if deadlineExpired(err) {
				logger.Warn("Keyword signal missed the query deadline")
				return nil
			}
			return err
		}
		keywordHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}

	logger.Debug("Hybrid search: %d vector + %d keyword hits", len(vectorHits), len(keywordHits))
	merged := mergeWeighted(vectorHits, keywordHits, settings.VectorWeight, settings.KeywordWeight)
	if opts.TopK > 0 && len(merged) > opts.TopK {
		merged = merged[:opts.TopK]
	}
	return merged, nil
}

// mergeWeighted combines two candidate lists into hybrid candidates.
// Each list's scores are min-max normalised to [0,1] first so BM25
// weights and cosine similarities are comparable; a chunk missing from
// one signal contributes zero for it.
func mergeWeighted(vectorHits, keywordHits []domain.RetrievalCandidate, vectorWeight, keywordWeight float64) []domain.RetrievalCandidate {
	vectorScores := normaliseScores(vectorHits)
	keywordScores := normaliseScores(keywordHits)

	combined := make(map[string]float64, len(vectorScores)+len(keywordScores))
	for id, score := range vectorScores {
		combined[id] += vectorWeight * score
	}
	for id, score := range keywordScores {
		combined[id] += keywordWeight * score
	}

	merged := make([]domain.RetrievalCandidate, 0, len(combined))
	for id, score := range combined {
		merged = append(merged, domain.RetrievalCandidate{
			ChunkID:  id,
			RawScore: score,
			Source:   domain.ScoreHybrid,
		})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].RawScore != merged[j].RawScore {
			return merged[i].RawScore > merged[j].RawScore
		}
		return merged[i].ChunkID < merged[j].ChunkID
	})
	return merged
}

// normaliseScores min-max normalises a list into a chunkID -> [0,1]
// map. A single-hit list maps to 1. Duplicate chunk IDs keep the
// maximum score.
func normaliseScores(hits []domain.RetrievalCandidate) map[string]float64 {
	if len(hits) == 0 {
		return map[string]float64{}
	}

	minScore, maxScore := hits[0].RawScore, hits[0].RawScore
	for _, h := range hits[1:] {
		if h.RawScore < minScore {
			minScore = h.RawScore
		}
		if h.RawScore > maxScore {
			maxScore = h.RawScore
		}
	}

	scores := make(map[string]float64, len(hits))
	span := maxScore - minScore
	for _, h := range hits {
		normalised := 1.0
		if span > 0 {
			normalised = (h.RawScore - minScore) / span
		}
		if existing, ok := scores[h.ChunkID]; !ok || normalised > existing {
			scores[h.ChunkID] = normalised
		}
	}
	return scores
}

// filterByThreshold drops semantic candidates scoring below the
// similarity threshold.
func filterByThreshold(hits []domain.RetrievalCandidate, threshold float64) []domain.RetrievalCandidate {
	if threshold <= 0 {
		return hits
	}
	kept := hits[:0]
	for _, h := range hits {
		if h.RawScore >= threshold {
			kept = append(kept, h)
		}
	}
	return kept
}
