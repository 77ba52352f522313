package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driving"
)

var (
	queryStrategy      string
	queryAlgorithm     string
	queryRanking       string
	queryTopK          int
	queryThreshold     float64
	queryContextWindow int
	queryFilters       []string
	queryJSON          bool
	queryCandidates    bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Query the corpus for RAG context",
	Long: `Runs the read path: retrieve, rank, assemble. Prints the assembled
context chunks in document order.

Strategies: semantic, keyword, hybrid, contextual, adaptive.
Algorithms: semantic, keyword, hybrid, fuzzy, faceted.
Ranking methods: relevance, diversity, authority, freshness.

Unset flags fall back to the persisted settings.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryStrategy, "strategy", "s", "", "RAG assembly strategy")
	queryCmd.Flags().StringVarP(&queryAlgorithm, "algorithm", "a", "", "retrieval algorithm override")
	queryCmd.Flags().StringVarP(&queryRanking, "ranking", "r", "", "candidate re-ranking method")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "n", 0, "maximum candidate count")
	queryCmd.Flags().Float64Var(&queryThreshold, "threshold", 0, "minimum similarity for semantic candidates")
	queryCmd.Flags().IntVar(&queryContextWindow, "context-window", 0, "context budget in characters")
	queryCmd.Flags().StringArrayVarP(&queryFilters, "filter", "f", nil, "metadata filter as key=value (repeatable)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the result as JSON")
	queryCmd.Flags().BoolVar(&queryCandidates, "candidates", false, "also print the ranked candidate list")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if querier == nil {
		return errors.New("query service not configured")
	}

	opts, err := buildQueryOptions()
	if err != nil {
		return err
	}

	result, err := querier.Query(context.Background(), args[0], opts)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputQueryJSON(cmd, result)
	}
	return outputQueryText(cmd, result)
}

func buildQueryOptions() (domain.QueryOptions, error) {
	filters, err := parseKeyValues(queryFilters)
	if err != nil {
		return domain.QueryOptions{}, err
	}

	opts := domain.QueryOptions{
		Algorithm:           domain.SearchAlgorithm(queryAlgorithm),
		Strategy:            domain.RAGStrategy(queryStrategy),
		Ranking:             domain.RankingMethod(queryRanking),
		TopK:                queryTopK,
		SimilarityThreshold: queryThreshold,
		ContextWindow:       queryContextWindow,
		Filters:             filters,
	}

	if opts.Algorithm != "" && !opts.Algorithm.IsValid() {
		return domain.QueryOptions{}, fmt.Errorf("unknown algorithm: %q", queryAlgorithm)
	}
	if opts.Strategy != "" && !opts.Strategy.IsValid() {
		return domain.QueryOptions{}, fmt.Errorf("unknown strategy: %q", queryStrategy)
	}
	if opts.Ranking != "" && !opts.Ranking.IsValid() {
		return domain.QueryOptions{}, fmt.Errorf("unknown ranking method: %q", queryRanking)
	}
	return opts, nil
}

func outputQueryJSON(cmd *cobra.Command, result *driving.QueryResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputQueryText(cmd *cobra.Command, result *driving.QueryResult) error {
	ctx := result.Context

	if len(ctx.Chunks) == 0 {
		cmd.Println("No context found.")
		return nil
	}

	cached := ""
	if result.Cached {
		cached = ", cached"
	}
	cmd.Printf("Context (%s strategy, %d chunks, %d chars%s):\n\n",
		ctx.Strategy, len(ctx.Chunks), ctx.TotalChars, cached)

	for i := range ctx.Chunks {
		chunk := &ctx.Chunks[i]
		cmd.Printf("--- %s #%d (%.3f) ---\n", chunk.DocumentID, chunk.Sequence, chunk.Score)
		cmd.Println(chunk.Text)
		cmd.Println()
	}

	if queryCandidates {
		cmd.Println("Candidates:")
		for i := range result.Candidates {
			c := &result.Candidates[i]
			cmd.Printf("  [%d] %s (%.3f, %s)\n", i+1, c.ChunkID, c.RawScore, c.Source)
		}
	}

	return nil
}
