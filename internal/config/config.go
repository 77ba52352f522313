// Package config loads the engine's startup configuration from a YAML
// file with RAGBASE_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ragbase/ragbase/internal/core/domain"
)

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is "openai", "ollama" or "" (semantic retrieval disabled).
	Provider string `koanf:"provider" yaml:"provider"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `koanf:"api_key_env" yaml:"api_key_env"`

	// BaseURL overrides the provider endpoint (Azure, local gateways).
	BaseURL string `koanf:"base_url" yaml:"base_url"`

	// RequestsPerSecond bounds request rate to the provider.
	RequestsPerSecond float64 `koanf:"requests_per_second" yaml:"requests_per_second"`

	// MaxRetries bounds backoff attempts on throttled requests.
	MaxRetries int `koanf:"max_retries" yaml:"max_retries"`
}

// ExtractionConfig configures the OCR and transcription backends.
type ExtractionConfig struct {
	// OCREndpoint is the HTTP OCR service; empty disables image input.
	OCREndpoint string `koanf:"ocr_endpoint" yaml:"ocr_endpoint"`

	// TranscriptionEndpoint is the HTTP transcription service; empty
	// disables audio input.
	TranscriptionEndpoint string `koanf:"transcription_endpoint" yaml:"transcription_endpoint"`

	// MinOCRConfidence rejects extractions below this confidence.
	MinOCRConfidence float64 `koanf:"min_ocr_confidence" yaml:"min_ocr_confidence"`

	// TimeoutSeconds bounds one engine run.
	TimeoutSeconds int `koanf:"timeout_seconds" yaml:"timeout_seconds"`
}

// Config is the engine's startup configuration. Runtime-tunable values
// live in domain.Settings and are persisted through the settings store;
// this struct covers process wiring only.
type Config struct {
	// DataDir holds the metadata database and settings file.
	DataDir string `koanf:"data_dir" yaml:"data_dir"`

	// BlobDir is the root directory the filesystem blob store serves.
	BlobDir string `koanf:"blob_dir" yaml:"blob_dir"`

	// IndexBackend is "memory" or "chromem".
	IndexBackend string `koanf:"index_backend" yaml:"index_backend"`

	Embedding  EmbeddingConfig  `koanf:"embedding" yaml:"embedding"`
	Extraction ExtractionConfig `koanf:"extraction" yaml:"extraction"`

	// Settings seeds the persisted settings on first run.
	Settings domain.Settings `koanf:"settings" yaml:"settings"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:      "",
		BlobDir:      ".",
		IndexBackend: "memory",
		Embedding: EmbeddingConfig{
			Provider:          "openai",
			APIKeyEnv:         "OPENAI_API_KEY",
			RequestsPerSecond: 5,
			MaxRetries:        4,
		},
		Extraction: ExtractionConfig{
			MinOCRConfidence: 0.5,
			TimeoutSeconds:   60,
		},
		Settings: domain.DefaultSettings(),
	}
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (RAGBASE_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := Default()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: RAGBASE_DATA_DIR -> data_dir,
	// RAGBASE_EMBEDDING.PROVIDER -> embedding.provider.
	if err := k.Load(env.Provider("RAGBASE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "RAGBASE_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validBackends is the set of recognised index backends.
var validBackends = map[string]bool{
	"memory":  true,
	"chromem": true,
}

// validProviders is the set of recognised embedding providers.
var validProviders = map[string]bool{
	"":       true, // semantic retrieval disabled
	"openai": true,
	"ollama": true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if !validBackends[c.IndexBackend] {
		return fmt.Errorf("%w: index_backend %q must be one of memory, chromem",
			domain.ErrInvalidConfig, c.IndexBackend)
	}
	if !validProviders[c.Embedding.Provider] {
		return fmt.Errorf("%w: embedding provider %q must be one of openai, ollama",
			domain.ErrInvalidConfig, c.Embedding.Provider)
	}
	if c.Embedding.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests_per_second must not be negative", domain.ErrInvalidConfig)
	}
	if c.Extraction.MinOCRConfidence < 0 || c.Extraction.MinOCRConfidence > 1 {
		return fmt.Errorf("%w: min_ocr_confidence must be within [0,1]", domain.ErrInvalidConfig)
	}
	if c.Extraction.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: extraction timeout must be positive", domain.ErrInvalidConfig)
	}
	return c.Settings.Validate()
}
