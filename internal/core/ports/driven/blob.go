package driven

import "context"

// BlobStore fetches raw document bytes from object storage.
// The engine never stores raw files itself; they live with an external
// collaborator addressed by the document's source URI.
type BlobStore interface {
	// FetchRaw returns the raw bytes for a source URI.
	// Returns domain.ErrNotFound if the blob does not exist.
	FetchRaw(ctx context.Context, sourceURI string) ([]byte, error)
}
