// Package filesystem provides a blob store backed by the local
// filesystem. Source URIs are plain paths or file:// URLs.
package filesystem

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

// Store fetches raw document bytes from the local filesystem.
type Store struct{}

// NewStore creates a new filesystem blob store.
func NewStore() *Store {
	return &Store{}
}

// FetchRaw reads the file addressed by sourceURI.
func (s *Store) FetchRaw(ctx context.Context, sourceURI string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := resolvePath(sourceURI)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, sourceURI)
		}
		return nil, fmt.Errorf("reading %s: %w", sourceURI, err)
	}
	return data, nil
}

// resolvePath converts a source URI into a filesystem path. Plain
// paths pass through; file:// URLs are unwrapped.
func resolvePath(sourceURI string) (string, error) {
	if sourceURI == "" {
		return "", fmt.Errorf("%w: empty source URI", domain.ErrNotFound)
	}
	if !strings.HasPrefix(sourceURI, "file://") {
		return sourceURI, nil
	}
	u, err := url.Parse(sourceURI)
	if err != nil {
		return "", fmt.Errorf("parsing source URI %s: %w", sourceURI, err)
	}
	return u.Path, nil
}
