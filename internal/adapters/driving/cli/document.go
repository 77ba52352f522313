package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driving"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage corpus documents",
	Long:  `List, view, refresh, or delete documents in the corpus.`,
	RunE:  runDocumentList,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents, newest first",
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print normalised document content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentRefreshCmd = &cobra.Command{
	Use:   "refresh [doc-id]",
	Short: "Re-ingest a single document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentRefresh,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and all derived state",
	Long:  `Removes the document, its chunks, embeddings, and index entries.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

func init() {
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentRefreshCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentStore == nil {
		return errors.New("document store not configured")
	}

	docs, err := documentStore.ListDocuments(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents in the corpus.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s  %-10s %s\n", docs[i].ID, docs[i].Status, docs[i].SourceURI)
	}

	cmd.Printf("\nTotal: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentStore == nil {
		return errors.New("document store not configured")
	}

	ctx := context.Background()

	doc, err := documentStore.GetDocument(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	chunks, err := documentStore.GetChunks(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Source:    %s\n", doc.SourceURI)
	cmd.Printf("  MIME:      %s\n", doc.MIMEType)
	cmd.Printf("  Language:  %s\n", doc.Language)
	cmd.Printf("  Status:    %s\n", doc.Status)
	cmd.Printf("  Chunks:    %d\n", len(chunks))
	cmd.Printf("  Created:   %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:   %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))

	if len(doc.Metadata) > 0 {
		cmd.Println("\n  Metadata:")
		for k, v := range doc.Metadata {
			cmd.Printf("    %s: %s\n", k, v)
		}
	}

	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if documentStore == nil {
		return errors.New("document store not configured")
	}

	doc, err := documentStore.GetDocument(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Println(doc.Content)
	return nil
}

func runDocumentRefresh(cmd *cobra.Command, args []string) error {
	if ingestor == nil {
		return errors.New("ingest service not configured")
	}

	ctx := context.Background()
	docID := args[0]

	jobID, err := ingestor.Ingest(ctx, []string{docID}, driving.IngestOptions{Kind: domain.JobIngest}, nil)
	if err != nil {
		return fmt.Errorf("failed to refresh document: %w", err)
	}

	job, err := waitForJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobSucceeded {
		return fmt.Errorf("refresh of %s finished with status %s", docID, job.Status)
	}

	cmd.Printf("Document %s refreshed.\n", docID)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if ingestor == nil {
		return errors.New("ingest service not configured")
	}

	if err := ingestor.Delete(context.Background(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %s deleted.\n", args[0])
	return nil
}
