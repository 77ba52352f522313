// Package chromem provides a hybrid index whose vector side is backed
// by chromem-go, with optional on-disk persistence. The inverted
// keyword index is delegated to the in-memory implementation.
//
// Commits follow a rebuild-and-swap discipline: each batch builds a
// fresh collection holding the post-batch corpus, then swaps the
// collection reference. Readers hold the old collection until the swap
// and never see a partially applied batch.
package chromem

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/ragbase/ragbase/internal/adapters/driven/index/memory"
	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
	"github.com/ragbase/ragbase/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.Index = (*Index)(nil)

const (
	persistFile = "chromem.gob.gz"
	entriesFile = "chromem.entries.gob"
)

// Index is a chromem-backed hybrid index.
type Index struct {
	mu         sync.RWMutex
	db         *chromemgo.DB
	collection *chromemgo.Collection
	keyword    *memory.Index
	entries    map[string]driven.IndexEntry
	embedFunc  chromemgo.EmbeddingFunc
	dimension  int
	generation uint64
	dataDir    string
}

// Option configures the index.
type Option func(*Index)

// WithPersistence exports the vector collection and the entry map to
// dataDir on Close and restores both on construction when a previous
// export exists. The keyword index is rebuilt from the restored
// entries.
func WithPersistence(dataDir string) Option {
	return func(idx *Index) {
		idx.dataDir = dataDir
	}
}

// New creates a chromem-backed index. embedFunc is only used by
// chromem for documents committed without a precomputed vector, which
// this adapter never does; it is still required by the collection API.
func New(dimension int, embedFunc chromemgo.EmbeddingFunc, opts ...Option) (*Index, error) {
	idx := &Index{
		db:        chromemgo.NewDB(),
		keyword:   memory.New(dimension),
		entries:   make(map[string]driven.IndexEntry),
		embedFunc: embedFunc,
		dimension: dimension,
	}
	for _, opt := range opts {
		opt(idx)
	}

	if idx.dataDir != "" {
		path := filepath.Join(idx.dataDir, persistFile)
		if _, err := os.Stat(path); err == nil {
			if err := idx.db.ImportFromFile(path, ""); err != nil {
				return nil, fmt.Errorf("import vector index: %w", err)
			}
			if err := idx.restore(); err != nil {
				return nil, err
			}
			logger.Debug("Imported vector index from %s (%d chunks)", path, len(idx.entries))
		}
	}

	col, err := idx.db.GetOrCreateCollection(idx.collectionName(), nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	idx.collection = col
	return idx, nil
}

// restore recovers the entry map, the keyword index and the exported
// collection's generation after an import. The collection name encodes
// the generation, so the exported name must be adopted before the
// collection is opened or a fresh empty one would shadow the imported
// data.
func (idx *Index) restore() error {
	for name := range idx.db.ListCollections() {
		var gen uint64
		if _, err := fmt.Sscanf(name, "chunks-g%d", &gen); err == nil && gen > idx.generation {
			idx.generation = gen
		}
	}

	entries, err := loadEntries(filepath.Join(idx.dataDir, entriesFile))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	idx.entries = entries

	batch := make([]driven.IndexEntry, 0, len(entries))
	for _, e := range entries {
		if idx.dimension == 0 && len(e.Vector) > 0 {
			idx.dimension = len(e.Vector)
		}
		batch = append(batch, e)
	}
	if _, err := idx.keyword.CommitBatch(context.Background(), batch, nil); err != nil {
		return fmt.Errorf("rebuild keyword index: %w", err)
	}
	return nil
}

func loadEntries(path string) (map[string]driven.IndexEntry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open entry export: %w", err)
	}
	defer f.Close()

	var entries map[string]driven.IndexEntry
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode entry export: %w", err)
	}
	return entries, nil
}

func saveEntries(path string, entries map[string]driven.IndexEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create entry export: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(entries); err != nil {
		f.Close()
		return fmt.Errorf("encode entry export: %w", err)
	}
	return f.Close()
}

func (idx *Index) collectionName() string {
	return fmt.Sprintf("chunks-g%d", idx.generation)
}

// Upsert adds or replaces a single entry.
func (idx *Index) Upsert(ctx context.Context, entry driven.IndexEntry) error {
	_, err := idx.CommitBatch(ctx, []driven.IndexEntry{entry}, nil)
	return err
}

// Delete removes a chunk. Unknown IDs are a no-op.
func (idx *Index) Delete(ctx context.Context, chunkID string) error {
	_, err := idx.CommitBatch(ctx, nil, []string{chunkID})
	return err
}

// CommitBatch applies upserts and deletes atomically by rebuilding the
// collection for the post-batch corpus and swapping it in.
func (idx *Index) CommitBatch(ctx context.Context, entries []driven.IndexEntry, deleteIDs []string) (*driven.BatchResult, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, e := range entries {
		if len(e.Vector) == 0 {
			continue
		}
		if idx.dimension == 0 {
			idx.dimension = len(e.Vector)
		} else if len(e.Vector) != idx.dimension {
			return nil, fmt.Errorf("%w: got %d, index is %d",
				domain.ErrDimensionMismatch, len(e.Vector), idx.dimension)
		}
	}

	staged := make(map[string]driven.IndexEntry, len(idx.entries)+len(entries))
	for id, e := range idx.entries {
		staged[id] = e
	}
	deleted := 0
	for _, id := range deleteIDs {
		if _, ok := staged[id]; ok {
			deleted++
			delete(staged, id)
		}
	}
	for _, e := range entries {
		staged[e.Chunk.ID] = e
	}

	// Stage a fresh collection holding the post-batch corpus.
	idx.generation++
	col, err := idx.db.GetOrCreateCollection(idx.collectionName(), nil, idx.embedFunc)
	if err != nil {
		idx.generation--
		return nil, fmt.Errorf("stage collection: %w", err)
	}

	docs := make([]chromemgo.Document, 0, len(staged))
	for _, e := range staged {
		if len(e.Vector) == 0 {
			continue
		}
		docs = append(docs, chromemgo.Document{
			ID:        e.Chunk.ID,
			Content:   e.Chunk.Text,
			Metadata:  e.Chunk.Metadata,
			Embedding: e.Vector,
		})
	}
	if len(docs) > 0 {
		if err := col.AddDocuments(ctx, docs, 1); err != nil {
			idx.db.DeleteCollection(idx.collectionName())
			idx.generation--
			return nil, fmt.Errorf("stage documents: %w", err)
		}
	}

	// The keyword side commits the same batch; its version is the
	// corpus version for both signals.
	res, err := idx.keyword.CommitBatch(ctx, entries, deleteIDs)
	if err != nil {
		idx.db.DeleteCollection(idx.collectionName())
		idx.generation--
		return nil, err
	}

	old := fmt.Sprintf("chunks-g%d", idx.generation-1)
	idx.db.DeleteCollection(old)
	idx.collection = col
	idx.entries = staged

	return &driven.BatchResult{
		Committed: len(entries),
		Deleted:   deleted,
		Version:   res.Version,
	}, nil
}

// Query executes one search. Keyword queries go to the inverted index;
// vector queries go to chromem.
func (idx *Index) Query(ctx context.Context, spec driven.QuerySpec) ([]domain.RetrievalCandidate, error) {
	if spec.Mode == driven.QueryKeyword {
		return idx.keyword.Query(ctx, spec)
	}
	if len(spec.Vector) == 0 {
		return nil, fmt.Errorf("vector query without vector")
	}

	idx.mu.RLock()
	col := idx.collection
	known := make(map[string]struct{})
	for _, e := range idx.entries {
		for k := range e.Chunk.Metadata {
			known[k] = struct{}{}
		}
	}
	empty := len(idx.entries) == 0
	idx.mu.RUnlock()

	if empty {
		return []domain.RetrievalCandidate{}, nil
	}
	for key := range spec.Filters {
		if _, ok := known[key]; !ok {
			return nil, fmt.Errorf("%w: unknown metadata key %q", domain.ErrInvalidFilter, key)
		}
	}

	count := col.Count()
	if count == 0 {
		return []domain.RetrievalCandidate{}, nil
	}
	limit := spec.TopK
	if limit <= 0 || limit > count {
		limit = count
	}

	var where map[string]string
	if len(spec.Filters) > 0 {
		where = spec.Filters
	}

	results, err := col.QueryEmbedding(ctx, spec.Vector, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	candidates := make([]domain.RetrievalCandidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, domain.RetrievalCandidate{
			ChunkID:  r.ID,
			RawScore: float64(r.Similarity),
			Source:   domain.ScoreVector,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RawScore != candidates[j].RawScore {
			return candidates[i].RawScore > candidates[j].RawScore
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})
	return candidates, nil
}

// Version returns the current corpus version.
func (idx *Index) Version() uint64 {
	return idx.keyword.Version()
}

// Close exports the vector collection and the entry map when
// persistence is configured.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.dataDir == "" {
		return nil
	}
	if err := os.MkdirAll(idx.dataDir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	path := filepath.Join(idx.dataDir, persistFile)
	if err := idx.db.ExportToFile(path, true, ""); err != nil {
		return fmt.Errorf("export vector index: %w", err)
	}
	return saveEntries(filepath.Join(idx.dataDir, entriesFile), idx.entries)
}
