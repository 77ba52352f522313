package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driving"
)

var (
	ingestMIME        string
	ingestMetadata    []string
	ingestContinue    bool
	ingestParallelism int
	ingestNoWait      bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Ingest documents into the corpus",
	Long: `Registers one or more source files and runs the full write path:
fetch, normalise, chunk, embed, index. Paths may be plain filesystem
paths or file:// URIs.

The work runs as a bulk job. By default the command waits for the job
and shows progress; pass --no-wait to return the job ID immediately.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild index entries from stored chunks",
	Long: `Re-submits every ready document as a reindex job. Stored chunks and
embeddings are reused; no extraction or embedding calls are made.`,
	RunE: makeCorpusJobRunner(domain.JobReindex),
}

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Re-embed all documents with the current model",
	Long: `Re-submits every ready document as a reembed job. Chunks are re-sent
to the embedding provider and old embedding records are retired. Use
after changing the embedding model.`,
	RunE: makeCorpusJobRunner(domain.JobReembed),
}

func init() {
	ingestCmd.Flags().StringVar(&ingestMIME, "mime", "auto", "MIME type of the sources (auto = sniff content)")
	ingestCmd.Flags().StringArrayVarP(&ingestMetadata, "metadata", "m", nil, "document metadata as key=value (repeatable)")
	ingestCmd.Flags().BoolVar(&ingestContinue, "continue-on-error", true, "keep the job running past item failures")
	ingestCmd.Flags().IntVar(&ingestParallelism, "parallelism", 0, "worker-pool override (0 = configured default)")
	ingestCmd.Flags().BoolVar(&ingestNoWait, "no-wait", false, "return the job ID without waiting")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(reembedCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestor == nil {
		return errors.New("ingest service not configured")
	}

	metadata, err := parseKeyValues(ingestMetadata)
	if err != nil {
		return err
	}

	ctx := context.Background()

	ids := make([]string, 0, len(args))
	for _, path := range args {
		doc, err := ingestor.Register(ctx, path, ingestMIME, metadata)
		if err != nil {
			return fmt.Errorf("failed to register %s: %w", path, err)
		}
		ids = append(ids, doc.ID)
	}

	return submitAndReport(ctx, cmd, ids, driving.IngestOptions{
		Kind:            domain.JobIngest,
		ContinueOnError: ingestContinue,
		Parallelism:     ingestParallelism,
	})
}

// makeCorpusJobRunner builds a RunE that submits a corpus-wide job of
// the given kind over all ready documents.
func makeCorpusJobRunner(kind domain.JobKind) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if ingestor == nil || documentStore == nil {
			return errors.New("ingest service not configured")
		}

		ctx := context.Background()

		docs, err := documentStore.ListDocuments(ctx)
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}

		var ids []string
		for i := range docs {
			if docs[i].Status == domain.StatusReady {
				ids = append(ids, docs[i].ID)
			}
		}
		if len(ids) == 0 {
			cmd.Println("No ready documents in the corpus.")
			return nil
		}

		return submitAndReport(ctx, cmd, ids, driving.IngestOptions{
			Kind:            kind,
			ContinueOnError: true,
		})
	}
}

// submitAndReport submits a bulk job and either returns its ID
// immediately or waits with a progress bar and prints the outcome.
func submitAndReport(ctx context.Context, cmd *cobra.Command, ids []string, opts driving.IngestOptions) error {
	var bar *progressbar.ProgressBar
	var onProgress driving.ProgressFunc

	if !ingestNoWait {
		bar = progressbar.NewOptions(len(ids),
			progressbar.OptionSetDescription("Processing"),
			progressbar.OptionSetWriter(cmd.OutOrStdout()),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		onProgress = func(processed, _ int) {
			_ = bar.Set(processed)
		}
	}

	jobID, err := ingestor.Ingest(ctx, ids, opts, onProgress)
	if err != nil {
		return fmt.Errorf("failed to submit job: %w", err)
	}

	if ingestNoWait {
		cmd.Printf("Job submitted: %s\n", jobID)
		return nil
	}

	job, err := waitForJob(ctx, jobID)
	_ = bar.Finish()
	if err != nil {
		return err
	}

	printJobOutcome(cmd, job)
	if job.Status == domain.JobFailed {
		return fmt.Errorf("job %s failed", job.ID)
	}
	return nil
}

// waitForJob polls until the job reaches a terminal status.
func waitForJob(ctx context.Context, jobID string) (*domain.BulkJob, error) {
	if jobService == nil {
		return nil, errors.New("job service not configured")
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		job, err := jobService.Get(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to poll job: %w", err)
		}
		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printJobOutcome(cmd *cobra.Command, job *domain.BulkJob) {
	switch job.Status {
	case domain.JobSucceeded:
		cmd.Printf("Processed %d documents.\n", job.Processed)
	case domain.JobPartial:
		cmd.Printf("Processed %d documents, %d failed.\n", job.Processed, len(job.FailedItems))
	case domain.JobFailed:
		cmd.Printf("Job failed after %d of %d documents.\n", job.Processed, job.Total)
	case domain.JobCancelled:
		cmd.Printf("Job cancelled after %d of %d documents.\n", job.Processed, job.Total)
	}

	for i := range job.FailedItems {
		cmd.Printf("  failed: %s: %s\n", job.FailedItems[i].ItemID, job.FailedItems[i].Error)
	}
}

// parseKeyValues parses repeated key=value flags into a map.
func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid key=value pair: %q", pair)
		}
		out[key] = value
	}
	return out, nil
}
