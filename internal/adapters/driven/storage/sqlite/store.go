package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ragbase/ragbase/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// the metadata store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.ragbase/data/metadata.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".ragbase", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "metadata.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// JobStore returns a JobStore interface backed by this store.
func (s *Store) JobStore() driven.JobStore {
	return &jobStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, source_uri, mime_type, language, content, status, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_uri = excluded.source_uri,
			mime_type = excluded.mime_type,
			language = excluded.language,
			content = excluded.content,
			status = excluded.status,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, doc.ID, doc.SourceURI, doc.MIMEType, doc.Language, doc.Content,
		string(doc.Status), string(metadataJSON), doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, source_uri, mime_type, language, content, status, metadata, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)
	return scanDocument(row.Scan)
}

// ListDocuments returns all documents, newest first.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, source_uri, mime_type, language, content, status, metadata, created_at, updated_at
		FROM documents ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// SetDocumentStatus updates only the status and updated-at fields.
func (s *documentStore) SetDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document; foreign keys cascade to chunks
// and embeddings.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ReplaceChunks atomically replaces a document's chunk set.
func (s *documentStore) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks (id, document_id, sequence, text, char_start, char_end, overlap_with_prev, embedding_id, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, chunk.ID, documentID, chunk.Sequence, chunk.Text,
			chunk.CharStart, chunk.CharEnd, chunk.OverlapWithPrev,
			nullString(chunk.EmbeddingID), string(metadataJSON))
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// GetChunks retrieves a document's chunks ordered by sequence.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, sequence, text, char_start, char_end, overlap_with_prev, embedding_id, metadata
		FROM chunks WHERE document_id = ? ORDER BY sequence
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *documentStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, sequence, text, char_start, char_end, overlap_with_prev, embedding_id, metadata
		FROM chunks WHERE id = ?
	`, id)
	return scanChunk(row.Scan)
}

// GetChunkBySequence retrieves a document's chunk at a sequence position.
func (s *documentStore) GetChunkBySequence(ctx context.Context, documentID string, sequence int) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, sequence, text, char_start, char_end, overlap_with_prev, embedding_id, metadata
		FROM chunks WHERE document_id = ? AND sequence = ?
	`, documentID, sequence)
	return scanChunk(row.Scan)
}

// SaveEmbedding stores an embedding record, retires the chunk's
// previous record and repoints the chunk, all in one transaction.
func (s *documentStore) SaveEmbedding(ctx context.Context, emb *domain.Embedding) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM embeddings WHERE chunk_id = ? AND id != ?", emb.ChunkID, emb.ID); err != nil {
		return fmt.Errorf("retiring previous embedding: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO embeddings (id, chunk_id, model, dimension, vector, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chunk_id = excluded.chunk_id,
			model = excluded.model,
			dimension = excluded.dimension,
			vector = excluded.vector
	`, emb.ID, emb.ChunkID, emb.Model, emb.Dimension,
		float32SliceToBytes(emb.Vector), emb.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving embedding: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE chunks SET embedding_id = ? WHERE id = ?", emb.ID, emb.ChunkID)
	if err != nil {
		return fmt.Errorf("pointing chunk at embedding: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: chunk %s", domain.ErrNotFound, emb.ChunkID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing embedding: %w", err)
	}
	return nil
}

// GetEmbedding retrieves an embedding record by ID.
func (s *documentStore) GetEmbedding(ctx context.Context, id string) (*domain.Embedding, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, chunk_id, model, dimension, vector, created_at
		FROM embeddings WHERE id = ?
	`, id)
	return scanEmbedding(row.Scan)
}

// GetEmbeddingForChunk retrieves a chunk's current embedding.
func (s *documentStore) GetEmbeddingForChunk(ctx context.Context, chunkID string) (*domain.Embedding, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, chunk_id, model, dimension, vector, created_at
		FROM embeddings WHERE chunk_id = ?
	`, chunkID)
	return scanEmbedding(row.Scan)
}

// ==================== Job Store ====================

// jobStore implements driven.JobStore.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

// SaveJob stores or updates a job record.
func (s *jobStore) SaveJob(ctx context.Context, job *domain.BulkJob) error {
	itemsJSON, err := json.Marshal(job.ItemIDs)
	if err != nil {
		return fmt.Errorf("marshalling item ids: %w", err)
	}
	failedJSON, err := json.Marshal(job.FailedItems)
	if err != nil {
		return fmt.Errorf("marshalling failed items: %w", err)
	}

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, status, item_ids, total, processed, failed_items, continue_on_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			status = excluded.status,
			item_ids = excluded.item_ids,
			total = excluded.total,
			processed = excluded.processed,
			failed_items = excluded.failed_items,
			continue_on_error = excluded.continue_on_error,
			updated_at = excluded.updated_at
	`, job.ID, string(job.Kind), string(job.Status), string(itemsJSON),
		job.Total, job.Processed, string(failedJSON),
		job.ContinueOnError, job.CreatedAt, job.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *jobStore) GetJob(ctx context.Context, id string) (*domain.BulkJob, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, kind, status, item_ids, total, processed, failed_items, continue_on_error, created_at, updated_at
		FROM jobs WHERE id = ?
	`, id)
	return scanJob(row.Scan)
}

// ListJobs returns all job records, newest first.
func (s *jobStore) ListJobs(ctx context.Context) ([]domain.BulkJob, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, kind, status, item_ids, total, processed, failed_items, continue_on_error, created_at, updated_at
		FROM jobs ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.BulkJob
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

// ==================== Scan helpers ====================

// scanFn abstracts sql.Row.Scan and sql.Rows.Scan.
type scanFn func(dest ...any) error

func scanDocument(scan scanFn) (*domain.Document, error) {
	var doc domain.Document
	var status, metadataJSON string
	var createdAt, updatedAt sql.NullTime

	err := scan(&doc.ID, &doc.SourceURI, &doc.MIMEType, &doc.Language,
		&doc.Content, &status, &metadataJSON, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}
	return &doc, nil
}

func scanChunk(scan scanFn) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingID sql.NullString
	var metadataJSON string

	err := scan(&chunk.ID, &chunk.DocumentID, &chunk.Sequence, &chunk.Text,
		&chunk.CharStart, &chunk.CharEnd, &chunk.OverlapWithPrev,
		&embeddingID, &metadataJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.EmbeddingID = embeddingID.String
	if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
	}
	return &chunk, nil
}

func scanEmbedding(scan scanFn) (*domain.Embedding, error) {
	var emb domain.Embedding
	var vectorBytes []byte
	var createdAt sql.NullTime

	err := scan(&emb.ID, &emb.ChunkID, &emb.Model, &emb.Dimension, &vectorBytes, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning embedding: %w", err)
	}

	emb.Vector = bytesToFloat32Slice(vectorBytes)
	if createdAt.Valid {
		emb.CreatedAt = createdAt.Time
	}
	return &emb, nil
}

func scanJob(scan scanFn) (*domain.BulkJob, error) {
	var job domain.BulkJob
	var kind, status, itemsJSON, failedJSON string
	var createdAt, updatedAt sql.NullTime

	err := scan(&job.ID, &kind, &status, &itemsJSON, &job.Total,
		&job.Processed, &failedJSON, &job.ContinueOnError, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)
	if err := json.Unmarshal([]byte(itemsJSON), &job.ItemIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling item ids: %w", err)
	}
	if err := json.Unmarshal([]byte(failedJSON), &job.FailedItems); err != nil {
		return nil, fmt.Errorf("unmarshaling failed items: %w", err)
	}
	if createdAt.Valid {
		job.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		job.UpdatedAt = updatedAt.Time
	}
	return &job, nil
}

// nullString returns a NULL-able string for optional columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// float32SliceToBytes converts a vector to a little-endian byte blob.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
