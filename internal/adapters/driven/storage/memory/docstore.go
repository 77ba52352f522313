// Package memory provides in-memory implementations of the metadata
// store ports. Used in tests and for ephemeral deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
)

// Ensure DocStore implements the interface.
var _ driven.DocumentStore = (*DocStore)(nil)

// DocStore is an in-memory DocumentStore.
type DocStore struct {
	mu         sync.RWMutex
	documents  map[string]domain.Document
	chunks     map[string]domain.Chunk   // chunkID → chunk
	byDocument map[string][]string       // documentID → chunkIDs in sequence order
	embeddings map[string]domain.Embedding
	byChunk    map[string]string // chunkID → embeddingID
}

// NewDocStore creates an empty in-memory document store.
func NewDocStore() *DocStore {
	return &DocStore{
		documents:  make(map[string]domain.Document),
		chunks:     make(map[string]domain.Chunk),
		byDocument: make(map[string][]string),
		embeddings: make(map[string]domain.Embedding),
		byChunk:    make(map[string]string),
	}
}

// SaveDocument stores or updates a document.
func (s *DocStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// ListDocuments returns all documents, newest first.
func (s *DocStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

// SetDocumentStatus updates only the status and updated-at fields.
func (s *DocStore) SetDocumentStatus(_ context.Context, id string, status domain.DocumentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = status
	doc.UpdatedAt = time.Now().UTC()
	s.documents[id] = doc
	return nil
}

// DeleteDocument removes a document, cascading to chunks and embeddings.
func (s *DocStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, id)
	for _, chunkID := range s.byDocument[id] {
		if embID, ok := s.byChunk[chunkID]; ok {
			delete(s.embeddings, embID)
			delete(s.byChunk, chunkID)
		}
		delete(s.chunks, chunkID)
	}
	delete(s.byDocument, id)
	return nil
}

// ReplaceChunks atomically replaces a document's chunk set.
func (s *DocStore) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunkID := range s.byDocument[documentID] {
		if embID, ok := s.byChunk[chunkID]; ok {
			delete(s.embeddings, embID)
			delete(s.byChunk, chunkID)
		}
		delete(s.chunks, chunkID)
	}

	ids := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		s.chunks[chunk.ID] = chunk
		ids = append(ids, chunk.ID)
	}
	s.byDocument[documentID] = ids
	return nil
}

// GetChunks retrieves a document's chunks ordered by sequence.
func (s *DocStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byDocument[documentID]
	chunks := make([]domain.Chunk, 0, len(ids))
	for _, id := range ids {
		chunks = append(chunks, s.chunks[id])
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Sequence < chunks[j].Sequence })
	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *DocStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunk, ok := s.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &chunk, nil
}

// GetChunkBySequence retrieves a document's chunk at a sequence position.
func (s *DocStore) GetChunkBySequence(_ context.Context, documentID string, sequence int) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.byDocument[documentID] {
		if s.chunks[id].Sequence == sequence {
			chunk := s.chunks[id]
			return &chunk, nil
		}
	}
	return nil, domain.ErrNotFound
}

// SaveEmbedding stores an embedding and retires the chunk's previous one.
func (s *DocStore) SaveEmbedding(_ context.Context, emb *domain.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunk, ok := s.chunks[emb.ChunkID]
	if !ok {
		return fmt.Errorf("%w: chunk %s", domain.ErrNotFound, emb.ChunkID)
	}

	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = time.Now().UTC()
	}

	if old, ok := s.byChunk[emb.ChunkID]; ok && old != emb.ID {
		delete(s.embeddings, old)
	}
	s.embeddings[emb.ID] = *emb
	s.byChunk[emb.ChunkID] = emb.ID

	chunk.EmbeddingID = emb.ID
	s.chunks[emb.ChunkID] = chunk
	return nil
}

// GetEmbedding retrieves an embedding record by ID.
func (s *DocStore) GetEmbedding(_ context.Context, id string) (*domain.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emb, ok := s.embeddings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &emb, nil
}

// GetEmbeddingForChunk retrieves a chunk's current embedding.
func (s *DocStore) GetEmbeddingForChunk(_ context.Context, chunkID string) (*domain.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	embID, ok := s.byChunk[chunkID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	emb := s.embeddings[embID]
	return &emb, nil
}
