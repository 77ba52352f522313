package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.ExtractionEngine = (*Engine)(nil)

// Engine extracts text from images via a remote OCR service.
// The service accepts raw image bytes and returns recognised text
// blocks with per-block confidence scores.
type Engine struct {
	endpoint      string
	minConfidence float64
	client        *http.Client
}

// Option configures the engine.
type Option func(*Engine)

// WithMinConfidence drops recognised blocks below the threshold.
// Default is 0.5.
func WithMinConfidence(c float64) Option {
	return func(e *Engine) {
		if c > 0 {
			e.minConfidence = c
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		if c != nil {
			e.client = c
		}
	}
}

// New creates an OCR engine talking to the given endpoint.
func New(endpoint string, opts ...Option) *Engine {
	e := &Engine{
		endpoint:      endpoint,
		minConfidence: 0.5,
		client:        &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name identifies the engine.
func (e *Engine) Name() string {
	return "ocr"
}

// SupportedMIMETypes returns the MIME types this engine handles.
func (e *Engine) SupportedMIMETypes() []string {
	return []string{"image/*", "application/pdf"}
}

// Priority returns the selection priority.
func (e *Engine) Priority() int {
	return 50
}

// Retryable reports whether transient failures are worth a retry.
func (e *Engine) Retryable() bool {
	return true // Remote service, transient failures happen
}

// ocrResponse is the OCR service response body.
type ocrResponse struct {
	Blocks []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"blocks"`
	Language string `json:"language"`
}

// Extract sends the image to the OCR service and assembles the
// recognised text, dropping low-confidence blocks.
func (e *Engine) Extract(ctx context.Context, raw []byte, mimeType string, _ map[string]string) (*domain.NormalisedText, error) {
	if e.endpoint == "" {
		return nil, fmt.Errorf("%w: ocr endpoint not configured", domain.ErrExtractionFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read ocr response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		// The service saw the image but found nothing readable.
		return nil, fmt.Errorf("%w: no recognisable text", domain.ErrExtractionFailed)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("ocr service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed ocrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode ocr response: %w", err)
	}

	var sb strings.Builder
	for _, block := range parsed.Blocks {
		if block.Confidence < e.minConfidence {
			continue
		}
		text := strings.TrimSpace(block.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	}

	if sb.Len() == 0 {
		return nil, fmt.Errorf("%w: all blocks below confidence %.2f", domain.ErrExtractionFailed, e.minConfidence)
	}

	return &domain.NormalisedText{
		Text:     sb.String(),
		Language: parsed.Language,
	}, nil
}
