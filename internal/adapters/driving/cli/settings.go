package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage engine settings",
	Long: `View and configure chunking, embedding, retrieval, and cache
settings. Values persist to the config file and take effect on the
next operation; no restart is needed.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Sets one setting by its snake_case key and persists it.

Keys:
  chunk_size            sliding-window chunk size in characters
  chunk_overlap         overlap between consecutive chunks
  embedding_model       embedding model binding
  index_type            index backend (memory, chromem)
  search_algorithm      default retrieval algorithm
  rag_strategy          default context assembly strategy
  ranking_method        default candidate re-ranking method
  context_window        context budget in characters
  similarity_threshold  semantic candidate cut-off
  max_results           per-query result cap
  batch_size            embedding request batch size
  bulk_parallelism      bulk job worker-pool ceiling
  cache_ttl             cache entry lifetime (e.g. 15m)
  vector_weight         hybrid merge weight for vector scores
  keyword_weight        hybrid merge weight for keyword scores
  diversity_threshold   MMR near-duplicate similarity cut-off
  quality_threshold     adaptive escalation mean-score cut-off
  query_timeout         per-query deadline (e.g. 10s)

The full settings value is re-validated before persisting, so a value
that is individually fine but conflicts with another setting is
rejected.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  chunk_size:            %d\n", settings.ChunkSize)
	cmd.Printf("  chunk_overlap:         %d\n", settings.ChunkOverlap)
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  embedding_model:       %s\n", settings.EmbeddingModel)
	cmd.Printf("  batch_size:            %d\n", settings.BatchSize)
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  index_type:            %s\n", settings.IndexType)
	cmd.Printf("  search_algorithm:      %s\n", settings.SearchAlgorithm)
	cmd.Printf("  rag_strategy:          %s\n", settings.RAGStrategy)
	cmd.Printf("  ranking_method:        %s\n", settings.RankingMethod)
	cmd.Printf("  context_window:        %d\n", settings.ContextWindow)
	cmd.Printf("  similarity_threshold:  %.2f\n", settings.SimilarityThreshold)
	cmd.Printf("  max_results:           %d\n", settings.MaxResults)
	cmd.Printf("  vector_weight:         %.2f\n", settings.VectorWeight)
	cmd.Printf("  keyword_weight:        %.2f\n", settings.KeywordWeight)
	cmd.Printf("  diversity_threshold:   %.2f\n", settings.DiversityThreshold)
	cmd.Printf("  quality_threshold:     %.2f\n", settings.QualityThreshold)
	cmd.Printf("  query_timeout:         %s\n", settings.QueryTimeout)
	cmd.Println()

	cmd.Println("[Jobs]")
	cmd.Printf("  bulk_parallelism:      %d\n", settings.BulkParallelism)
	cmd.Println()

	cmd.Println("[Cache]")
	cmd.Printf("  cache_ttl:             %s\n", settings.CacheTTL)

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key, value := args[0], args[1]

	if err := settingsService.Set(context.Background(), key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	cmd.Printf("Set %s = %s\n", key, value)
	return nil
}
