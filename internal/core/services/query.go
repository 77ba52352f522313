package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ragbase/ragbase/internal/cache"
	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
	"github.com/ragbase/ragbase/internal/core/ports/driving"
	"github.com/ragbase/ragbase/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.Querier = (*QueryService)(nil)

// QueryService drives the read path: retrieve, rank, assemble. Results
// are cached keyed on the query, strategy, filters and corpus version,
// so any index commit naturally invalidates every cached result.
type QueryService struct {
	retrieval *RetrievalService
	ranker    *Ranker
	assembler *Assembler
	docStore  driven.DocumentStore
	index     driven.Index
	settings  driving.SettingsService
	ragCache  *cache.Cache
}

// NewQueryService creates a new query service. ragCache is optional.
func NewQueryService(
	retrieval *RetrievalService,
	ranker *Ranker,
	assembler *Assembler,
	docStore driven.DocumentStore,
	index driven.Index,
	settings driving.SettingsService,
	ragCache *cache.Cache,
) *QueryService {
	return &QueryService{
		retrieval: retrieval,
		ranker:    ranker,
		assembler: assembler,
		docStore:  docStore,
		index:     index,
		settings:  settings,
		ragCache:  ragCache,
	}
}

// Query executes one retrieval request. Zero-valued options fall back
// to the persisted settings. An empty index yields an empty result,
// never an error.
func (s *QueryService) Query(ctx context.Context, text string, opts domain.QueryOptions) (*driving.QueryResult, error) {
	logger.Section("Query Execution")

	text = strings.TrimSpace(text)
	if text == "" {
		return &driving.QueryResult{Context: domain.RagContext{}}, nil
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	opts = resolveOptions(opts, settings)
	logger.Debug("Query: %q strategy=%s algorithm=%s ranking=%s", text, opts.Strategy, opts.Algorithm, opts.Ranking)

	if settings.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.QueryTimeout)
		defer cancel()
	}

	corpusVersion := s.index.Version()
	cacheKey := ragCacheKey(text, opts, corpusVersion)
	if s.ragCache != nil {
		if cached, ok := s.ragCache.Get(cacheKey); ok {
			logger.Debug("RAG cache hit")
			result := cached.(driving.QueryResult)
			result.Cached = true
			return &result, nil
		}
	}

	result, err := s.execute(ctx, text, opts, settings, corpusVersion)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("Query deadline expired, returning empty result")
			return &driving.QueryResult{Context: domain.RagContext{Strategy: opts.Strategy}}, nil
		}
		return nil, err
	}

	// A result produced under an expired deadline may be partial;
	// don't let it outlive the query.
	if s.ragCache != nil && ctx.Err() == nil {
		s.ragCache.Set(cacheKey, *result)
	}
	return result, nil
}

// execute runs retrieve -> rank -> assemble, including the adaptive
// escalation ladder.
func (s *QueryService) execute(
	ctx context.Context, text string, opts domain.QueryOptions, settings domain.Settings, corpusVersion uint64,
) (*driving.QueryResult, error) {
	if opts.Strategy != domain.RAGAdaptive {
		return s.executeStep(ctx, text, opts.Strategy, opts, settings, corpusVersion)
	}

	// Adaptive: hybrid, then contextual expansion, then a relaxed
	// similarity threshold. A step wins when it yields chunks whose
	// mean score clears the quality threshold, and is recorded as the
	// context's strategy. When no step clears it, the best non-empty
	// context found along the way is returned as adaptive.
	result, err := s.executeStep(ctx, text, domain.RAGHybrid, opts, settings, corpusVersion)
	if err != nil {
		return nil, err
	}
	if acceptable(result, settings.QualityThreshold) {
		return result, nil
	}
	best := result

	logger.Debug("Adaptive: hybrid quality %.2f below %.2f, expanding context",
		contextQuality(result), settings.QualityThreshold)
	result, err = s.executeStep(ctx, text, domain.RAGContextual, opts, settings, corpusVersion)
	if err != nil {
		return nil, err
	}
	if acceptable(result, settings.QualityThreshold) {
		return result, nil
	}
	if contextQuality(result) > contextQuality(best) {
		best = result
	}

	logger.Debug("Adaptive: still below quality threshold, relaxing similarity threshold")
	relaxed := opts
	relaxed.SimilarityThreshold = domain.MinSimilarityThreshold
	result, err = s.executeStep(ctx, text, domain.RAGContextual, relaxed, settings, corpusVersion)
	if err != nil {
		return nil, err
	}
	if len(result.Context.Chunks) == 0 || contextQuality(best) > contextQuality(result) {
		if len(best.Context.Chunks) > 0 {
			result = best
		}
	}
	result.Context.Strategy = domain.RAGAdaptive
	return result, nil
}

// acceptable reports whether a step's context terminates the adaptive
// ladder: non-empty and at or above the quality threshold.
func acceptable(result *driving.QueryResult, qualityThreshold float64) bool {
	return len(result.Context.Chunks) > 0 && contextQuality(result) >= qualityThreshold
}

// contextQuality is the mean selected-chunk score of the assembled
// context. An empty context scores zero.
func contextQuality(result *driving.QueryResult) float64 {
	chunks := result.Context.Chunks
	if len(chunks) == 0 {
		return 0
	}
	var sum float64
	for _, c := range chunks {
		sum += c.Score
	}
	return sum / float64(len(chunks))
}

// executeStep runs one retrieve/rank/assemble pass with a concrete
// strategy.
func (s *QueryService) executeStep(
	ctx context.Context, text string, strategy domain.RAGStrategy, opts domain.QueryOptions, settings domain.Settings, corpusVersion uint64,
) (*driving.QueryResult, error) {
	algorithm := opts.Algorithm
	if algorithm == "" {
		algorithm = strategy.Algorithm()
	}

	candidates, err := s.retrieval.Retrieve(ctx, text, algorithm, opts, settings)
	if err != nil {
		return nil, err
	}

	items, inputs, err := s.hydrate(ctx, candidates)
	if err != nil {
		return nil, err
	}

	ranked := s.ranker.Rank(opts.Ranking, items, settings.DiversityThreshold)

	// Reorder the hydrated chunks to the ranked order.
	byID := make(map[string]AssemblyInput, len(inputs))
	for _, input := range inputs {
		byID[input.Chunk.ID] = input
	}
	assemblyInputs := make([]AssemblyInput, 0, len(ranked))
	rankedCandidates := make([]domain.RetrievalCandidate, 0, len(ranked))
	for _, item := range ranked {
		input := byID[item.ChunkID]
		input.Score = item.Score
		assemblyInputs = append(assemblyInputs, input)
		rankedCandidates = append(rankedCandidates, domain.RetrievalCandidate{
			ChunkID:    item.ChunkID,
			RawScore:   item.Score,
			Source:     candidateSource(candidates, item.ChunkID),
			Highlights: generateHighlights(input.Chunk.Text, text),
		})
	}

	ragContext, err := s.assembler.Assemble(ctx, strategy, assemblyInputs, opts.ContextWindow, corpusVersion)
	if err != nil {
		return nil, err
	}

	return &driving.QueryResult{
		Context:    *ragContext,
		Candidates: rankedCandidates,
	}, nil
}

// hydrate loads chunk and document records for candidates. Candidates
// whose chunk or document vanished since indexing are skipped.
func (s *QueryService) hydrate(ctx context.Context, candidates []domain.RetrievalCandidate) ([]RankItem, []AssemblyInput, error) {
	items := make([]RankItem, 0, len(candidates))
	inputs := make([]AssemblyInput, 0, len(candidates))
	docs := make(map[string]*domain.Document)

	for _, candidate := range candidates {
		chunk, err := s.docStore.GetChunk(ctx, candidate.ChunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, nil, fmt.Errorf("get chunk %s: %w", candidate.ChunkID, err)
		}

		doc, ok := docs[chunk.DocumentID]
		if !ok {
			doc, err = s.docStore.GetDocument(ctx, chunk.DocumentID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, nil, fmt.Errorf("get document %s: %w", chunk.DocumentID, err)
			}
			docs[chunk.DocumentID] = doc
		}

		items = append(items, RankItem{
			ChunkID:   chunk.ID,
			Score:     candidate.RawScore,
			Text:      chunk.Text,
			Authority: ParseAuthority(doc.Metadata),
			UpdatedAt: doc.UpdatedAt,
		})
		inputs = append(inputs, AssemblyInput{Chunk: *chunk, Score: candidate.RawScore})
	}
	return items, inputs, nil
}

// candidateSource finds the original score source for a chunk.
func candidateSource(candidates []domain.RetrievalCandidate, chunkID string) domain.ScoreSource {
	for _, c := range candidates {
		if c.ChunkID == chunkID {
			return c.Source
		}
	}
	return domain.ScoreHybrid
}

// resolveOptions overlays zero-valued options with the persisted
// settings.
func resolveOptions(opts domain.QueryOptions, settings domain.Settings) domain.QueryOptions {
	if opts.Strategy == "" {
		opts.Strategy = settings.RAGStrategy
	}
	if opts.Ranking == "" {
		opts.Ranking = settings.RankingMethod
	}
	if opts.TopK <= 0 || opts.TopK > settings.MaxResults {
		opts.TopK = settings.MaxResults
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = settings.SimilarityThreshold
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = settings.ContextWindow
	}
	return opts
}

// ragCacheKey derives the cache key for a query result. The corpus
// version is part of the key, so every index commit invalidates all
// cached results without explicit flushing.
func ragCacheKey(text string, opts domain.QueryOptions, corpusVersion uint64) string {
	filterKeys := make([]string, 0, len(opts.Filters))
	for k := range opts.Filters {
		filterKeys = append(filterKeys, k)
	}
	sort.Strings(filterKeys)

	parts := []string{
		"rag", text,
		opts.Strategy.String(), opts.Algorithm.String(), opts.Ranking.String(),
		strconv.Itoa(opts.TopK),
		strconv.FormatFloat(opts.SimilarityThreshold, 'f', -1, 64),
		strconv.Itoa(opts.ContextWindow),
		strconv.FormatUint(corpusVersion, 10),
	}
	for _, k := range filterKeys {
		parts = append(parts, k+"="+opts.Filters[k])
	}
	return cache.Key(parts...)
}

// maxHighlights bounds snippets per candidate; maxHighlightLen bounds
// snippet length in bytes.
const (
	maxHighlights   = 3
	maxHighlightLen = 200
)

// generateHighlights returns sentences from the chunk text containing
// at least one query term.
func generateHighlights(content, query string) []string {
	queryTerms := strings.Fields(strings.ToLower(query))
	if len(queryTerms) == 0 {
		return nil
	}

	var highlights []string
	for _, sentence := range splitSentences(content) {
		sentenceLower := strings.ToLower(sentence)
		for _, term := range queryTerms {
			if strings.Contains(sentenceLower, term) {
				if len(sentence) > maxHighlightLen {
					sentence = sentence[:maxHighlightLen] + "..."
				}
				highlights = append(highlights, sentence)
				break
			}
		}
		if len(highlights) >= maxHighlights {
			break
		}
	}
	return highlights
}

// splitSentences splits on common sentence terminators and newlines.
func splitSentences(content string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range content {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
