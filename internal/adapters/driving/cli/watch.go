package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ragbase/ragbase/internal/adapters/driven/blob/filesystem"
	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driving"
	"github.com/ragbase/ragbase/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Watch a drop folder and ingest changes",
	Long: `Watches a directory for file events and keeps the corpus in sync:
created and modified files are (re-)ingested, removed files are
deleted from the corpus. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestor == nil || documentStore == nil {
		return errors.New("ingest service not configured")
	}

	watcher, err := filesystem.NewWatcher(args[0])
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", args[0], err)
	}
	defer watcher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events, err := watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	cmd.Printf("Watching %s (ctrl-c to stop)...\n", args[0])

	for event := range events {
		if err := handleWatchEvent(ctx, cmd, event); err != nil {
			logger.Warn("watch: %s: %v", event.Path, err)
		}
	}

	cmd.Println("Watch stopped.")
	return nil
}

func handleWatchEvent(ctx context.Context, cmd *cobra.Command, event filesystem.Event) error {
	switch event.Type {
	case filesystem.EventCreated, filesystem.EventUpdated:
		return ingestWatchedFile(ctx, cmd, event.Path)
	case filesystem.EventDeleted:
		return deleteWatchedFile(ctx, cmd, event.Path)
	default:
		return nil
	}
}

// ingestWatchedFile re-ingests a known document or registers a new one,
// then runs a single-item ingest job synchronously.
func ingestWatchedFile(ctx context.Context, cmd *cobra.Command, path string) error {
	doc, err := findDocumentBySource(ctx, path)
	if err != nil {
		return err
	}
	if doc == nil {
		doc, err = ingestor.Register(ctx, path, "auto", nil)
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}
	}

	jobID, err := ingestor.Ingest(ctx, []string{doc.ID}, driving.IngestOptions{Kind: domain.JobIngest}, nil)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	job, err := waitForJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobSucceeded {
		return fmt.Errorf("ingest finished with status %s", job.Status)
	}

	cmd.Printf("  ingested %s\n", path)
	return nil
}

func deleteWatchedFile(ctx context.Context, cmd *cobra.Command, path string) error {
	doc, err := findDocumentBySource(ctx, path)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	if err := ingestor.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	cmd.Printf("  deleted %s\n", path)
	return nil
}

func findDocumentBySource(ctx context.Context, sourceURI string) (*domain.Document, error) {
	docs, err := documentStore.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	for i := range docs {
		if docs[i].SourceURI == sourceURI {
			return &docs[i], nil
		}
	}
	return nil, nil
}
