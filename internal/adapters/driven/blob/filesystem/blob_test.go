package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragbase/ragbase/internal/core/domain"
)

func TestFetchRaw(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	store := NewStore()

	t.Run("plain path", func(t *testing.T) {
		data, err := store.FetchRaw(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello world"), data)
	})

	t.Run("file URI", func(t *testing.T) {
		data, err := store.FetchRaw(context.Background(), "file://"+path)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello world"), data)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := store.FetchRaw(context.Background(), filepath.Join(tempDir, "nope.txt"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("empty URI", func(t *testing.T) {
		_, err := store.FetchRaw(context.Background(), "")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := store.FetchRaw(ctx, path)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
