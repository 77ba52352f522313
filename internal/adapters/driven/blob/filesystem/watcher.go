package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/ragbase/ragbase/internal/logger"
)

// EventType describes what happened to a watched file.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event is a single file change observed by the watcher.
type Event struct {
	Type EventType
	Path string
}

// Watcher observes a drop folder and reports file changes so the
// caller can enqueue ingestion. Directories and hidden files are
// ignored.
type Watcher struct {
	rootPath string
	fsw      *fsnotify.Watcher
}

// NewWatcher creates a watcher for the given directory.
func NewWatcher(rootPath string) (*Watcher, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("watch path %s: %w", rootPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch path %s is not a directory", rootPath)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(rootPath); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", rootPath, err)
	}

	return &Watcher{rootPath: rootPath, fsw: fsw}, nil
}

// Watch streams file change events until the context is cancelled.
// The returned channel closes when watching stops.
func (w *Watcher) Watch(ctx context.Context) (<-chan Event, error) {
	events := make(chan Event)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case fsEvent, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				event := w.handleFsEvent(fsEvent)
				if event == nil {
					continue
				}
				select {
				case events <- *event:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				logger.Warn("Watcher error: %v", err)
			}
		}
	}()

	return events, nil
}

// handleFsEvent maps an fsnotify event to a file change, or nil when
// the event should be ignored.
func (w *Watcher) handleFsEvent(event fsnotify.Event) *Event {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return nil
	}

	switch {
	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		return &Event{Type: EventCreated, Path: event.Name}
	case event.Op.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		return &Event{Type: EventUpdated, Path: event.Name}
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		return &Event{Type: EventDeleted, Path: event.Name}
	default:
		return nil
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
