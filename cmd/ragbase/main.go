// Command ragbase is the knowledge-base engine CLI. It loads the
// startup configuration, wires adapters to the core services, and
// hands control to the cobra command tree.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/ragbase/ragbase/internal/adapters/driven/blob/filesystem"
	configfile "github.com/ragbase/ragbase/internal/adapters/driven/config/file"
	"github.com/ragbase/ragbase/internal/adapters/driven/embedding/ollama"
	"github.com/ragbase/ragbase/internal/adapters/driven/embedding/openai"
	indexchromem "github.com/ragbase/ragbase/internal/adapters/driven/index/chromem"
	indexmem "github.com/ragbase/ragbase/internal/adapters/driven/index/memory"
	"github.com/ragbase/ragbase/internal/adapters/driven/storage/sqlite"
	"github.com/ragbase/ragbase/internal/adapters/driving/cli"
	"github.com/ragbase/ragbase/internal/cache"
	"github.com/ragbase/ragbase/internal/config"
	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
	"github.com/ragbase/ragbase/internal/core/services"
	"github.com/ragbase/ragbase/internal/logger"
	"github.com/ragbase/ragbase/internal/normalisers"
	"github.com/ragbase/ragbase/internal/normalisers/html"
	"github.com/ragbase/ragbase/internal/normalisers/markdown"
	"github.com/ragbase/ragbase/internal/normalisers/ocr"
	"github.com/ragbase/ragbase/internal/normalisers/plaintext"
	"github.com/ragbase/ragbase/internal/normalisers/transcript"
	"github.com/ragbase/ragbase/internal/postprocessors"
	"github.com/ragbase/ragbase/internal/postprocessors/chunker"
	"github.com/ragbase/ragbase/internal/postprocessors/langtag"
)

// Build-time version, set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	configStore, err := configfile.NewConfigStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening settings store: %w", err)
	}

	settingsService := services.NewSettingsService(configStore)
	ctx := context.Background()

	if err := seedSettings(ctx, settingsService, configStore, cfg.Settings); err != nil {
		return err
	}
	settings, err := settingsService.Get(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	embedder, err := buildEmbedder(cfg, settings)
	if err != nil {
		return err
	}
	if embedder != nil {
		defer embedder.Close()
	}

	index, err := buildIndex(cfg, embedder)
	if err != nil {
		return err
	}
	if closer, ok := index.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	registry := buildRegistry(cfg)

	chunk, err := chunker.New(
		chunker.WithChunkSize(settings.ChunkSize),
		chunker.WithOverlap(settings.ChunkOverlap),
	)
	if err != nil {
		return err
	}
	pipeline := postprocessors.NewPipeline(chunk, langtag.New())

	embedCache := cache.New(settings.CacheTTL)
	ragCache := cache.New(settings.CacheTTL)
	defer embedCache.Flush()
	defer ragCache.Flush()

	docStore := store.DocumentStore()
	bulk := services.NewBulkCoordinator(store.JobStore())
	ingest := services.NewIngestService(
		docStore, filesystem.NewStore(), registry, pipeline,
		embedder, index, settingsService, bulk, embedCache,
	)
	retrieval := services.NewRetrievalService(index, embedder, embedCache)
	query := services.NewQueryService(
		retrieval, services.NewRanker(), services.NewAssembler(docStore),
		docStore, index, settingsService, ragCache,
	)

	// The in-memory index starts empty on every run; repopulate it
	// from stored chunks and embeddings. The chromem backend persists
	// its collection and skips this.
	if cfg.IndexBackend == "memory" {
		if err := ingest.RebuildIndex(ctx); err != nil {
			logger.Warn("Index rebuild failed: %v", err)
		}
	}

	cli.Wire(cli.Deps{
		Ingestor:  ingest,
		Querier:   query,
		Jobs:      bulk,
		Settings:  settingsService,
		Documents: docStore,
		Version:   version,
	})

	return cli.Execute()
}

// configPath returns the startup config location, overridable with
// RAGBASE_CONFIG.
func configPath() string {
	if path := os.Getenv("RAGBASE_CONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "ragbase.yaml"
	}
	return filepath.Join(home, ".ragbase", "ragbase.yaml")
}

// seedSettings persists the configured settings on first run. An
// existing settings file wins over the startup config.
func seedSettings(ctx context.Context, svc *services.SettingsService, store driven.ConfigStore, seed domain.Settings) error {
	if _, ok := store.Get("engine.chunk_size"); ok {
		return nil
	}
	if err := svc.Update(ctx, seed); err != nil {
		return fmt.Errorf("seeding settings: %w", err)
	}
	return nil
}

func buildEmbedder(cfg *config.Config, settings domain.Settings) (driven.EmbeddingProvider, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return openai.New(openai.Config{
			APIKey:            os.Getenv(cfg.Embedding.APIKeyEnv),
			BaseURL:           cfg.Embedding.BaseURL,
			Model:             settings.EmbeddingModel,
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
			MaxRetries:        cfg.Embedding.MaxRetries,
		})
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL: cfg.Embedding.BaseURL,
			Model:   settings.EmbeddingModel,
		}), nil
	default:
		logger.Info("No embedding provider configured; retrieval is keyword-only")
		return nil, nil
	}
}

func buildIndex(cfg *config.Config, embedder driven.EmbeddingProvider) (driven.Index, error) {
	dimension := 0
	if embedder != nil {
		dimension = embedder.Dimensions()
	}

	switch cfg.IndexBackend {
	case "chromem":
		// The adapter commits precomputed vectors only; the embed func
		// is required by the collection API but must never run.
		noEmbed := func(_ context.Context, text string) ([]float32, error) {
			return nil, fmt.Errorf("no embedding function bound for %q", text)
		}
		return indexchromem.New(dimension, chromemgo.EmbeddingFunc(noEmbed),
			indexchromem.WithPersistence(cfg.DataDir))
	default:
		return indexmem.New(dimension), nil
	}
}

func buildRegistry(cfg *config.Config) *normalisers.Registry {
	registry := normalisers.NewRegistry(
		normalisers.WithTimeout(time.Duration(cfg.Extraction.TimeoutSeconds) * time.Second),
	)
	registry.Register(plaintext.New())
	registry.Register(markdown.New())
	registry.Register(html.New())

	if cfg.Extraction.OCREndpoint != "" {
		registry.Register(ocr.New(cfg.Extraction.OCREndpoint,
			ocr.WithMinConfidence(cfg.Extraction.MinOCRConfidence)))
	}
	if cfg.Extraction.TranscriptionEndpoint != "" {
		registry.Register(transcript.New(cfg.Extraction.TranscriptionEndpoint))
	}
	return registry
}
