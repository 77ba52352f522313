package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
)

// fakeConfigStore is an in-memory driven.ConfigStore.
type fakeConfigStore struct {
	mu   sync.Mutex
	data map[string]any
}

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{data: make(map[string]any)}
}

func (f *fakeConfigStore) Get(key string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *fakeConfigStore) GetString(key string) string {
	v, _ := f.Get(key)
	s, _ := v.(string)
	return s
}

func (f *fakeConfigStore) GetInt(key string) int {
	v, _ := f.Get(key)
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

func (f *fakeConfigStore) GetFloat(key string) float64 {
	v, _ := f.Get(key)
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func (f *fakeConfigStore) GetBool(key string) bool {
	v, _ := f.Get(key)
	b, _ := v.(bool)
	return b
}

func (f *fakeConfigStore) Set(key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeConfigStore) Save() error { return nil }
func (f *fakeConfigStore) Load() error { return nil }
func (f *fakeConfigStore) Path() string {
	return "memory"
}

// stubEmbedder returns canned vectors per text, with a simple default
// for everything else.
type stubEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	fail    map[string]error
	calls   int
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{
		vectors: make(map[string][]float32),
		fail:    make(map[string]error),
	}
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	results, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if results[0].Err != nil {
		return nil, results[0].Err
	}
	return results[0].Vector, nil
}

func (e *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([]driven.EmbedResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++

	results := make([]driven.EmbedResult, len(texts))
	for i, text := range texts {
		if err, ok := e.fail[text]; ok {
			results[i] = driven.EmbedResult{Err: err}
			continue
		}
		if vec, ok := e.vectors[text]; ok {
			results[i] = driven.EmbedResult{Vector: vec}
			continue
		}
		results[i] = driven.EmbedResult{Vector: []float32{1, 0, 0}}
	}
	return results, nil
}

func (e *stubEmbedder) Dimensions() int    { return 3 }
func (e *stubEmbedder) ModelName() string  { return "stub-embed" }
func (e *stubEmbedder) Close() error       { return nil }
func (e *stubEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// stubBlob serves raw bytes per source URI.
type stubBlob struct {
	blobs map[string][]byte
}

func (b *stubBlob) FetchRaw(_ context.Context, sourceURI string) ([]byte, error) {
	raw, ok := b.blobs[sourceURI]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, sourceURI)
	}
	return raw, nil
}

// stubRegistry extracts raw bytes as-is, failing for configured URIs.
type stubRegistry struct {
	failFor map[string]error
}

func (r *stubRegistry) Normalise(_ context.Context, raw []byte, mimeType string, _ map[string]string) (*domain.NormalisedText, error) {
	text := string(raw)
	if r.failFor != nil {
		if err, ok := r.failFor[text]; ok {
			return nil, err
		}
	}
	return &domain.NormalisedText{Text: text, Language: "en", Engine: "stub"}, nil
}

// stubPipeline splits content on blank lines into chunks.
type stubPipeline struct{}

func (stubPipeline) Process(_ context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	parts := strings.Split(doc.Content, "\n\n")
	chunks := make([]domain.Chunk, 0, len(parts))
	offset := 0
	for i, part := range parts {
		chunks = append(chunks, domain.Chunk{
			ID:         fmt.Sprintf("%s-c%d", doc.ID, i),
			DocumentID: doc.ID,
			Sequence:   i,
			Text:       part,
			CharStart:  offset,
			CharEnd:    offset + len(part),
			Metadata:   map[string]string{"language": doc.Language},
		})
		offset += len(part) + 2
	}
	return chunks, nil
}
