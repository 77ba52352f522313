// Package memory provides an in-memory hybrid index: a vector store,
// an inverted keyword index and per-chunk metadata filter fields.
//
// All mutations build a new immutable snapshot and swap it in with a
// single atomic pointer store, so batches become visible all at once
// and reads never block on writes.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.Index = (*Index)(nil)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// slot is one indexed chunk. Immutable once built; snapshots share
// slots across versions.
type slot struct {
	chunk  domain.Chunk
	vector []float32
	norm   float64
	terms  map[string]int
	length int
}

// snapshot is one immutable index state.
type snapshot struct {
	slots      map[string]*slot          // chunkID → slot
	postings   map[string]map[string]int // term → chunkID → tf
	totalTerms int
	metaKeys   map[string]struct{}
	version    uint64
}

// Index is the in-memory hybrid index.
type Index struct {
	mu        sync.Mutex // serialises writers
	current   atomic.Pointer[snapshot]
	dimension int
}

// New creates an empty index. dimension 0 means the first committed
// vector fixes the dimension.
func New(dimension int) *Index {
	idx := &Index{dimension: dimension}
	idx.current.Store(&snapshot{
		slots:    make(map[string]*slot),
		postings: make(map[string]map[string]int),
		metaKeys: make(map[string]struct{}),
	})
	return idx
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

// CommitBatch applies upserts and deletes atomically. The new state is
// staged on a copy and swapped in with one pointer store; concurrent
// readers see either the whole batch or none of it.
func (idx *Index) CommitBatch(ctx context.Context, entries []driven.IndexEntry, deleteIDs []string) (*driven.BatchResult, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

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

	cur := idx.current.Load()
	next := cur.stage(entries, deleteIDs)
	next.version = cur.version + 1
	idx.current.Store(next)

	deleted := 0
	for _, id := range deleteIDs {
		if _, ok := cur.slots[id]; ok {
			deleted++
		}
	}

	return &driven.BatchResult{
		Committed: len(entries),
		Deleted:   deleted,
		Version:   next.version,
	}, nil
}

// Version returns the current corpus version.
func (idx *Index) Version() uint64 {
	return idx.current.Load().version
}

// Close releases resources.
func (idx *Index) Close() error {
	return nil
}

// Vocabulary returns all indexed terms, sorted. Used for fuzzy term
// expansion and diagnostics.
func (idx *Index) Vocabulary() []string {
	snap := idx.current.Load()
	terms := make([]string, 0, len(snap.postings))
	for t := range snap.postings {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// Query executes one search against the current snapshot.
func (idx *Index) Query(ctx context.Context, spec driven.QuerySpec) ([]domain.RetrievalCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := idx.current.Load()
	if len(snap.slots) == 0 {
		return []domain.RetrievalCandidate{}, nil
	}

	eligible, err := snap.filter(spec.Filters)
	if err != nil {
		return nil, err
	}

	var scores map[string]float64
	var source domain.ScoreSource
	switch spec.Mode {
	case driven.QueryVector:
		if len(spec.Vector) == 0 {
			return nil, fmt.Errorf("vector query without vector")
		}
		scores = snap.scoreVector(spec.Vector, eligible)
		source = domain.ScoreVector
	case driven.QueryKeyword:
		scores = snap.scoreKeyword(spec.Text, spec.Fuzzy, eligible)
		source = domain.ScoreKeyword
	default:
		return nil, fmt.Errorf("unknown query mode %q", spec.Mode)
	}

	candidates := make([]domain.RetrievalCandidate, 0, len(scores))
	for id, score := range scores {
		candidates = append(candidates, domain.RetrievalCandidate{
			ChunkID:  id,
			RawScore: score,
			Source:   source,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RawScore != candidates[j].RawScore {
			return candidates[i].RawScore > candidates[j].RawScore
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})

	if spec.TopK > 0 && len(candidates) > spec.TopK {
		candidates = candidates[:spec.TopK]
	}
	return candidates, nil
}

// stage builds the successor snapshot. Top-level maps are copied;
// slots are shared except where the batch touches them.
func (s *snapshot) stage(entries []driven.IndexEntry, deleteIDs []string) *snapshot {
	next := &snapshot{
		slots:      make(map[string]*slot, len(s.slots)+len(entries)),
		postings:   make(map[string]map[string]int, len(s.postings)),
		totalTerms: s.totalTerms,
		metaKeys:   make(map[string]struct{}, len(s.metaKeys)),
	}
	for id, sl := range s.slots {
		next.slots[id] = sl
	}
	for t, p := range s.postings {
		next.postings[t] = p // cloned lazily on mutation
	}
	for k := range s.metaKeys {
		next.metaKeys[k] = struct{}{}
	}

	for _, id := range deleteIDs {
		next.remove(id)
	}
	for _, e := range entries {
		next.remove(e.Chunk.ID) // replace semantics
		next.insert(e)
	}
	return next
}

// remove detaches a chunk and its postings from the snapshot.
func (s *snapshot) remove(chunkID string) {
	sl, ok := s.slots[chunkID]
	if !ok {
		return
	}
	delete(s.slots, chunkID)
	s.totalTerms -= sl.length

	for term := range sl.terms {
		posting := clonePosting(s.postings[term])
		delete(posting, chunkID)
		if len(posting) == 0 {
			delete(s.postings, term)
		} else {
			s.postings[term] = posting
		}
	}
}

// insert attaches a chunk and its postings to the snapshot.
func (s *snapshot) insert(e driven.IndexEntry) {
	terms := termFrequencies(tokenize(e.Chunk.Text))
	length := 0
	for _, tf := range terms {
		length += tf
	}

	s.slots[e.Chunk.ID] = &slot{
		chunk:  e.Chunk,
		vector: e.Vector,
		norm:   vectorNorm(e.Vector),
		terms:  terms,
		length: length,
	}
	s.totalTerms += length

	for term, tf := range terms {
		posting := clonePosting(s.postings[term])
		posting[e.Chunk.ID] = tf
		s.postings[term] = posting
	}
	for k := range e.Chunk.Metadata {
		s.metaKeys[k] = struct{}{}
	}
}

// filter returns the chunk IDs passing all metadata filters, or nil
// when no filters are set (meaning every chunk is eligible).
func (s *snapshot) filter(filters map[string]string) (map[string]struct{}, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	for key := range filters {
		if _, ok := s.metaKeys[key]; !ok {
			return nil, fmt.Errorf("%w: unknown metadata key %q", domain.ErrInvalidFilter, key)
		}
	}

	eligible := make(map[string]struct{})
	for id, sl := range s.slots {
		match := true
		for key, want := range filters {
			if sl.chunk.Metadata[key] != want {
				match = false
				break
			}
		}
		if match {
			eligible[id] = struct{}{}
		}
	}
	return eligible, nil
}

// scoreVector computes cosine similarity against every eligible chunk
// that carries a vector.
func (s *snapshot) scoreVector(query []float32, eligible map[string]struct{}) map[string]float64 {
	qNorm := vectorNorm(query)
	if qNorm == 0 {
		return nil
	}

	scores := make(map[string]float64)
	for id, sl := range s.slots {
		if eligible != nil {
			if _, ok := eligible[id]; !ok {
				continue
			}
		}
		if len(sl.vector) != len(query) || sl.norm == 0 {
			continue
		}
		var dot float64
		for i, v := range sl.vector {
			dot += float64(v) * float64(query[i])
		}
		scores[id] = dot / (sl.norm * qNorm)
	}
	return scores
}

// scoreKeyword computes BM25 over the inverted index. With fuzzy
// enabled, query terms are expanded against the vocabulary by edit
// distance before scoring.
func (s *snapshot) scoreKeyword(text string, fuzzy bool, eligible map[string]struct{}) map[string]float64 {
	queryTerms := tokenize(text)
	if len(queryTerms) == 0 {
		return nil
	}

	terms := dedupe(queryTerms)
	if fuzzy {
		terms = s.expandFuzzy(terms)
	}

	n := float64(len(s.slots))
	avgLen := float64(s.totalTerms) / n
	if avgLen == 0 {
		// Every indexed chunk tokenized to nothing; keep the
		// length norm finite.
		avgLen = 1
	}

	scores := make(map[string]float64)
	for _, term := range terms {
		posting, ok := s.postings[term]
		if !ok {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))

		for id, tf := range posting {
			if eligible != nil {
				if _, ok := eligible[id]; !ok {
					continue
				}
			}
			sl := s.slots[id]
			norm := 1 - bm25B + bm25B*float64(sl.length)/avgLen
			scores[id] += idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*norm)
		}
	}
	return scores
}

// expandFuzzy widens query terms to vocabulary terms within edit
// distance 1 (2 for terms longer than 5 runes).
func (s *snapshot) expandFuzzy(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	add := func(t string) {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}

	for _, term := range terms {
		add(term)
		maxDist := 1
		if len([]rune(term)) > 5 {
			maxDist = 2
		}
		for vocab := range s.postings {
			if vocab == term {
				continue
			}
			if levenshtein(term, vocab, maxDist) <= maxDist {
				add(vocab)
			}
		}
	}
	sort.Strings(out) // deterministic scoring order
	return out
}

// tokenize lowercases and splits on any non-letter, non-digit rune.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func termFrequencies(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func clonePosting(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// levenshtein computes edit distance with early exit once the distance
// provably exceeds maxDist.
func levenshtein(a, b string, maxDist int) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if abs(la-lb) > maxDist {
		return maxDist + 1
	}

	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if cur[j] < rowMin {
				rowMin = cur[j]
			}
		}
		if rowMin > maxDist {
			return maxDist + 1
		}
		prev, cur = cur, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
