package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWatcher(t *testing.T) {
	t.Run("rejects missing directory", func(t *testing.T) {
		_, err := NewWatcher(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})

	t.Run("rejects regular file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file.txt")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		_, err := NewWatcher(path)
		assert.Error(t, err)
	})
}

func TestWatcher_Watch(t *testing.T) {
	t.Run("reports created files", func(t *testing.T) {
		tempDir := t.TempDir()
		watcher, err := NewWatcher(tempDir)
		require.NoError(t, err)
		defer watcher.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := watcher.Watch(ctx)
		require.NoError(t, err)

		testFile := filepath.Join(tempDir, "new-file.txt")
		go func() {
			time.Sleep(50 * time.Millisecond)
			os.WriteFile(testFile, []byte("content"), 0644)
		}()

		select {
		case event := <-events:
			assert.Equal(t, EventCreated, event.Type)
			assert.Equal(t, testFile, event.Path)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for file change event")
		}
	})

	t.Run("channel closes on cancel", func(t *testing.T) {
		tempDir := t.TempDir()
		watcher, err := NewWatcher(tempDir)
		require.NoError(t, err)
		defer watcher.Close()

		ctx, cancel := context.WithCancel(context.Background())
		events, err := watcher.Watch(ctx)
		require.NoError(t, err)

		cancel()
		select {
		case _, ok := <-events:
			assert.False(t, ok, "channel should be closed")
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for channel close")
		}
	})
}

func TestHandleFsEvent(t *testing.T) {
	tests := []struct {
		name          string
		setupFile     bool
		setupDir      bool
		setupHidden   bool
		operation     fsnotify.Op
		expectedEvent bool
		expectedType  EventType
	}{
		{
			name:          "create file",
			setupFile:     true,
			operation:     fsnotify.Create,
			expectedEvent: true,
			expectedType:  EventCreated,
		},
		{
			name:          "write file",
			setupFile:     true,
			operation:     fsnotify.Write,
			expectedEvent: true,
			expectedType:  EventUpdated,
		},
		{
			name:          "remove file",
			operation:     fsnotify.Remove,
			expectedEvent: true,
			expectedType:  EventDeleted,
		},
		{
			name:          "rename file",
			operation:     fsnotify.Rename,
			expectedEvent: true,
			expectedType:  EventDeleted,
		},
		{
			name:      "chmod ignored",
			setupFile: true,
			operation: fsnotify.Chmod,
		},
		{
			name:      "directory ignored",
			setupDir:  true,
			operation: fsnotify.Create,
		},
		{
			name:        "hidden file ignored",
			setupHidden: true,
			operation:   fsnotify.Create,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()

			var eventPath string
			switch {
			case tt.setupDir:
				eventPath = filepath.Join(tempDir, "subdir")
				require.NoError(t, os.Mkdir(eventPath, 0755))
			case tt.setupHidden:
				eventPath = filepath.Join(tempDir, ".hidden.txt")
				require.NoError(t, os.WriteFile(eventPath, []byte("x"), 0644))
			case tt.setupFile:
				eventPath = filepath.Join(tempDir, "test.txt")
				require.NoError(t, os.WriteFile(eventPath, []byte("x"), 0644))
			default:
				eventPath = filepath.Join(tempDir, "removed.txt")
			}

			watcher, err := NewWatcher(tempDir)
			require.NoError(t, err)
			defer watcher.Close()

			event := watcher.handleFsEvent(fsnotify.Event{Name: eventPath, Op: tt.operation})

			if !tt.expectedEvent {
				assert.Nil(t, event)
				return
			}
			require.NotNil(t, event)
			assert.Equal(t, tt.expectedType, event.Type)
			assert.Equal(t, eventPath, event.Path)
		})
	}
}
