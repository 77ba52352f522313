// Package openai provides an embedding provider backed by the OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
	"github.com/ragbase/ragbase/internal/logger"
)

// Ensure Provider implements the interface.
var _ driven.EmbeddingProvider = (*Provider)(nil)

// Default configuration values.
const (
	DefaultModel      = "text-embedding-3-small"
	DefaultMaxRetries = 3
	DefaultRPS        = 5
)

// Model dimensions for OpenAI embedding models.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config holds configuration for the OpenAI embedding provider.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL overrides the API base URL for Azure OpenAI or
	// compatible endpoints.
	BaseURL string

	// Model is the embedding model (default: text-embedding-3-small).
	Model string

	// RequestsPerSecond caps the outgoing request rate (default: 5).
	RequestsPerSecond float64

	// MaxRetries bounds throttle retries per batch (default: 3).
	MaxRetries int
}

// Provider generates embeddings using the OpenAI API.
type Provider struct {
	client     *openai.Client
	limiter    *rate.Limiter
	model      string
	dimensions int
	maxRetries int
}

// New creates a new OpenAI embedding provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRPS
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	dimensions, ok := modelDimensions[cfg.Model]
	if !ok {
		dimensions = 1536
	}

	return &Provider{
		client:     openai.NewClientWithConfig(clientCfg),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		model:      cfg.Model,
		dimensions: dimensions,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Embed generates a vector embedding for a single text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	results, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if results[0].Err != nil {
		return nil, results[0].Err
	}
	return results[0].Vector, nil
}

// EmbedBatch generates embeddings for multiple texts. Throttling is
// retried with exponential backoff; a rejected batch is re-run one
// item at a time so that only the offending inputs fail.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([]driven.EmbedResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := p.request(ctx, texts)
	if err == nil {
		results := make([]driven.EmbedResult, len(texts))
		for i := range texts {
			results[i] = driven.EmbedResult{Vector: vectors[i]}
		}
		return results, nil
	}

	if errors.Is(err, domain.ErrRejected) && len(texts) > 1 {
		// Isolate the oversize input instead of failing the batch.
		logger.Debug("Batch rejected, isolating items: %v", err)
		results := make([]driven.EmbedResult, len(texts))
		for i, text := range texts {
			vecs, itemErr := p.request(ctx, []string{text})
			if itemErr != nil {
				results[i] = driven.EmbedResult{Err: itemErr}
				continue
			}
			results[i] = driven.EmbedResult{Vector: vecs[0]}
		}
		return results, nil
	}

	if errors.Is(err, domain.ErrThrottled) || errors.Is(err, domain.ErrRejected) {
		// Item-scoped failure after retries: report per item so the
		// caller can mark chunks individually.
		results := make([]driven.EmbedResult, len(texts))
		for i := range texts {
			results[i] = driven.EmbedResult{Err: err}
		}
		return results, nil
	}

	// Whole-batch failure (network, auth).
	return nil, err
}

// request performs a single embedding API call with rate limiting and
// throttle retries.
func (p *Provider) request(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			logger.Debug("Embedding throttled, retrying in %s (attempt %d)", backoff, attempt)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(p.model),
		})
		if err != nil {
			classified := classify(err)
			if errors.Is(classified, domain.ErrThrottled) {
				lastErr = classified
				continue
			}
			return nil, classified
		}

		if len(resp.Data) != len(texts) {
			return nil, fmt.Errorf("openai: got %d embeddings for %d inputs", len(resp.Data), len(texts))
		}
		vectors := make([][]float32, len(texts))
		for _, d := range resp.Data {
			vectors[d.Index] = d.Embedding
		}
		return vectors, nil
	}
	return nil, lastErr
}

// classify maps API errors to the domain taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			return fmt.Errorf("%w: %s", domain.ErrThrottled, apiErr.Message)
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %s", domain.ErrRejected, apiErr.Message)
		}
	}
	return err
}

// Dimensions returns the embedding vector size.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// ModelName returns the name of the embedding model being used.
func (p *Provider) ModelName() string {
	return p.model
}

// Close releases resources.
func (p *Provider) Close() error {
	return nil
}
