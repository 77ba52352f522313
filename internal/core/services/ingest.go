package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ragbase/ragbase/internal/cache"
	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
	"github.com/ragbase/ragbase/internal/core/ports/driving"
	"github.com/ragbase/ragbase/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.Ingestor = (*IngestService)(nil)

// IngestService drives the write path: fetch, normalise, chunk, embed,
// index. Per-document work is serialised by a per-ID lock so two jobs
// never interleave on the same document; the final index commit is
// atomic per document.
type IngestService struct {
	docStore   driven.DocumentStore
	blobStore  driven.BlobStore
	registry   driven.NormaliserRegistry
	pipeline   driven.PostProcessorPipeline
	embedder   driven.EmbeddingProvider
	index      driven.Index
	settings   driving.SettingsService
	bulk       *BulkCoordinator
	embedCache *cache.Cache

	locks sync.Map // documentID -> *sync.Mutex
}

// NewIngestService creates a new ingest service. The embedder and
// embedCache are optional; without an embedder, documents are indexed
// keyword-only.
func NewIngestService(
	docStore driven.DocumentStore,
	blobStore driven.BlobStore,
	registry driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	embedder driven.EmbeddingProvider,
	index driven.Index,
	settings driving.SettingsService,
	bulk *BulkCoordinator,
	embedCache *cache.Cache,
) *IngestService {
	return &IngestService{
		docStore:   docStore,
		blobStore:  blobStore,
		registry:   registry,
		pipeline:   pipeline,
		embedder:   embedder,
		index:      index,
		settings:   settings,
		bulk:       bulk,
		embedCache: embedCache,
	}
}

// Register creates a pending document for a source URI.
func (s *IngestService) Register(ctx context.Context, sourceURI, mimeType string, metadata map[string]string) (*domain.Document, error) {
	if sourceURI == "" {
		return nil, fmt.Errorf("%w: source URI is required", domain.ErrInvalidConfig)
	}
	if mimeType == "" {
		mimeType = "auto"
	}

	now := time.Now()
	doc := &domain.Document{
		ID:        uuid.New().String(),
		SourceURI: sourceURI,
		MIMEType:  mimeType,
		Status:    domain.StatusPending,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	logger.Info("Registered document %s (%s)", doc.ID, sourceURI)
	return doc, nil
}

// Ingest submits a bulk job over the given documents and returns its
// ID. The job runs in the background.
func (s *IngestService) Ingest(
	ctx context.Context, documentIDs []string, opts driving.IngestOptions, onProgress driving.ProgressFunc,
) (string, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}

	kind := opts.Kind
	if kind == "" {
		kind = domain.JobIngest
	}
	if !kind.IsValid() {
		return "", fmt.Errorf("%w: unknown job kind %q", domain.ErrInvalidConfig, kind)
	}

	parallelism := settings.BulkParallelism
	if opts.Parallelism > 0 {
		parallelism = opts.Parallelism
	}

	var run ItemFunc
	switch kind {
	case domain.JobIngest:
		run = func(ctx context.Context, id string) error { return s.ingestOne(ctx, id, settings) }
	case domain.JobReindex:
		run = func(ctx context.Context, id string) error { return s.reindexOne(ctx, id) }
	case domain.JobReembed:
		run = func(ctx context.Context, id string) error { return s.reembedOne(ctx, id, settings) }
	}

	job := &domain.BulkJob{
		ID:              uuid.New().String(),
		Kind:            kind,
		ItemIDs:         documentIDs,
		ContinueOnError: opts.ContinueOnError,
	}
	if err := s.bulk.Submit(ctx, job, parallelism, run, onProgress); err != nil {
		return "", err
	}
	return job.ID, nil
}

// Delete removes a document, its chunks, embeddings and index entries.
func (s *IngestService) Delete(ctx context.Context, documentID string) error {
	unlock := s.lockDocument(documentID)
	defer unlock()

	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get chunks: %w", err)
	}

	chunkIDs := make([]string, len(chunks))
	for i, chunk := range chunks {
		chunkIDs[i] = chunk.ID
	}
	if len(chunkIDs) > 0 {
		if _, err := s.index.CommitBatch(ctx, nil, chunkIDs); err != nil {
			return fmt.Errorf("remove index entries: %w", err)
		}
	}

	// Chunk and embedding rows cascade with the document row.
	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	logger.Info("Deleted document %s (%d chunks)", documentID, len(chunkIDs))
	return nil
}

// ingestOne runs the full pipeline for a single document. Any failure
// flags the document failed and is reported to the bulk job.
func (s *IngestService) ingestOne(ctx context.Context, documentID string, settings domain.Settings) error {
	unlock := s.lockDocument(documentID)
	defer unlock()

	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	if err := s.docStore.SetDocumentStatus(ctx, documentID, domain.StatusProcessing); err != nil {
		return fmt.Errorf("set status: %w", err)
	}

	if err := s.runPipeline(ctx, doc, settings); err != nil {
		if statusErr := s.docStore.SetDocumentStatus(ctx, documentID, domain.StatusFailed); statusErr != nil {
			logger.Error("Document %s: failed to flag failure: %v", documentID, statusErr)
		}
		return err
	}

	if err := s.docStore.SetDocumentStatus(ctx, documentID, domain.StatusReady); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	logger.Info("Document %s ingested", documentID)
	return nil
}

// runPipeline is the fallible middle of ingestOne: fetch, normalise,
// chunk, embed, commit.
func (s *IngestService) runPipeline(ctx context.Context, doc *domain.Document, settings domain.Settings) error {
	raw, err := s.blobStore.FetchRaw(ctx, doc.SourceURI)
	if err != nil {
		return fmt.Errorf("fetch raw: %w", err)
	}
	logger.Debug("Document %s: fetched %d bytes", doc.ID, len(raw))

	normalised, err := s.registry.Normalise(ctx, raw, doc.MIMEType, doc.Metadata)
	if err != nil {
		return fmt.Errorf("normalise: %w", err)
	}

	doc.Content = normalised.Text
	doc.Language = normalised.Language
	doc.Status = domain.StatusProcessing
	doc.UpdatedAt = time.Now()
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}

	chunks, err := s.pipeline.Process(ctx, doc)
	if err != nil {
		return fmt.Errorf("chunk: %w", err)
	}
	logger.Debug("Document %s: %d chunks via %s engine", doc.ID, len(chunks), normalised.Engine)

	// Previous chunks, if any, leave the index in the same commit that
	// makes the new ones visible.
	previous, err := s.docStore.GetChunks(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("get previous chunks: %w", err)
	}

	if err := s.docStore.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("replace chunks: %w", err)
	}

	entries, err := s.buildEntries(ctx, chunks, settings)
	if err != nil {
		return err
	}

	staleIDs := staleChunkIDs(previous, entries)
	result, err := s.index.CommitBatch(ctx, entries, staleIDs)
	if err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	logger.Debug("Document %s: committed %d entries, corpus version %d", doc.ID, result.Committed, result.Version)
	return nil
}

// buildEntries embeds chunks in configured batches and pairs them with
// their vectors. A single chunk rejection fails the whole document;
// partially indexed documents would silently miss content.
func (s *IngestService) buildEntries(ctx context.Context, chunks []domain.Chunk, settings domain.Settings) ([]driven.IndexEntry, error) {
	entries := make([]driven.IndexEntry, 0, len(chunks))

	if s.embedder == nil || settings.IndexType == domain.IndexFullText {
		for _, chunk := range chunks {
			entries = append(entries, driven.IndexEntry{Chunk: chunk})
		}
		return entries, nil
	}

	batchSize := settings.BatchSize
	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		batch := chunks[start:end]

		vectors, err := s.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		for i, chunk := range batch {
			embedding := &domain.Embedding{
				ID:        uuid.New().String(),
				ChunkID:   chunk.ID,
				Model:     s.embedder.ModelName(),
				Dimension: len(vectors[i]),
				Vector:    vectors[i],
				CreatedAt: time.Now(),
			}
			if err := s.docStore.SaveEmbedding(ctx, embedding); err != nil {
				return nil, fmt.Errorf("save embedding for chunk %s: %w", chunk.ID, err)
			}
			chunk.EmbeddingID = embedding.ID
			entries = append(entries, driven.IndexEntry{Chunk: chunk, Vector: vectors[i]})
		}
	}
	return entries, nil
}

// embedBatch embeds one batch of chunks, serving repeats from the
// embedding cache. The cache key covers the model name so a model
// switch never reuses stale vectors.
func (s *IngestService) embedBatch(ctx context.Context, batch []domain.Chunk) ([][]float32, error) {
	model := s.embedder.ModelName()
	vectors := make([][]float32, len(batch))
	missing := make([]int, 0, len(batch))
	texts := make([]string, 0, len(batch))

	for i, chunk := range batch {
		if s.embedCache != nil {
			if v, ok := s.embedCache.Get(cache.Key("embed", model, chunk.Text)); ok {
				vectors[i] = v.([]float32)
				continue
			}
		}
		missing = append(missing, i)
		texts = append(texts, chunk.Text)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	results, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	for j, result := range results {
		i := missing[j]
		if result.Err != nil {
			return nil, fmt.Errorf("embed chunk %s: %w", batch[i].ID, result.Err)
		}
		vectors[i] = result.Vector
		if s.embedCache != nil {
			s.embedCache.Set(cache.Key("embed", model, batch[i].Text), result.Vector)
		}
	}
	return vectors, nil
}

// reindexOne rebuilds a document's index entries from stored chunks
// and embeddings, without re-fetching or re-embedding.
func (s *IngestService) reindexOne(ctx context.Context, documentID string) error {
	unlock := s.lockDocument(documentID)
	defer unlock()

	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get chunks: %w", err)
	}

	entries := make([]driven.IndexEntry, 0, len(chunks))
	for _, chunk := range chunks {
		entry := driven.IndexEntry{Chunk: chunk}
		if chunk.EmbeddingID != "" {
			embedding, err := s.docStore.GetEmbeddingForChunk(ctx, chunk.ID)
			if err == nil {
				entry.Vector = embedding.Vector
			}
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil
	}
	if _, err := s.index.CommitBatch(ctx, entries, nil); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	logger.Debug("Document %s reindexed (%d chunks)", documentID, len(entries))
	return nil
}

// reembedOne regenerates a document's embeddings with the current
// model. New records retire the old ones; the index entries swap in a
// single atomic commit.
func (s *IngestService) reembedOne(ctx context.Context, documentID string, settings domain.Settings) error {
	if s.embedder == nil {
		return domain.ErrEmbeddingUnavailable
	}

	unlock := s.lockDocument(documentID)
	defer unlock()

	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	entries, err := s.buildEntries(ctx, chunks, settings)
	if err != nil {
		return err
	}
	if _, err := s.index.CommitBatch(ctx, entries, nil); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	logger.Debug("Document %s re-embedded (%d chunks)", documentID, len(entries))
	return nil
}

// RebuildIndex repopulates the in-process index from the document
// store. Called on startup; only ready documents are indexed.
func (s *IngestService) RebuildIndex(ctx context.Context) error {
	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	rebuilt := 0
	for _, doc := range docs {
		if doc.Status != domain.StatusReady {
			continue
		}
		if err := s.reindexOne(ctx, doc.ID); err != nil {
			logger.Warn("Startup reindex of %s failed: %v", doc.ID, err)
			continue
		}
		rebuilt++
	}
	logger.Info("Startup index rebuild: %d documents", rebuilt)
	return nil
}

// lockDocument serialises pipeline work per document ID.
func (s *IngestService) lockDocument(documentID string) func() {
	v, _ := s.locks.LoadOrStore(documentID, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// staleChunkIDs lists previously indexed chunk IDs absent from the new
// entry set, so a re-ingest never leaves orphaned index entries.
func staleChunkIDs(previous []domain.Chunk, entries []driven.IndexEntry) []string {
	current := make(map[string]bool, len(entries))
	for _, e := range entries {
		current[e.Chunk.ID] = true
	}
	var stale []string
	for _, c := range previous {
		if !current[c.ID] {
			stale = append(stale, c.ID)
		}
	}
	return stale
}
