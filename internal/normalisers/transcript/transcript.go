package transcript

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

// Engine transcribes audio via a remote speech-to-text service.
type Engine struct {
	endpoint string
	client   *http.Client
}

// Option configures the engine.
type Option func(*Engine)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		if c != nil {
			e.client = c
		}
	}
}

// New creates a transcription engine talking to the given endpoint.
func New(endpoint string, opts ...Option) *Engine {
	e := &Engine{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 300 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name identifies the engine.
func (e *Engine) Name() string {
	return "transcript"
}

// SupportedMIMETypes returns the MIME types this engine handles.
func (e *Engine) SupportedMIMETypes() []string {
	return []string{"audio/*", "video/*"}
}

// Priority returns the selection priority.
func (e *Engine) Priority() int {
	return 50
}

// Retryable reports whether transient failures are worth a retry.
func (e *Engine) Retryable() bool {
	return true
}

// transcribeResponse is the transcription service response body.
type transcribeResponse struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
	Language string `json:"language"`
}

// Extract sends the audio to the transcription service and joins the
// returned segments in time order.
func (e *Engine) Extract(ctx context.Context, raw []byte, mimeType string, _ map[string]string) (*domain.NormalisedText, error) {
	if e.endpoint == "" {
		return nil, fmt.Errorf("%w: transcription endpoint not configured", domain.ErrExtractionFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read transcription response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: no speech detected", domain.ErrExtractionFailed)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("transcription service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed transcribeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode transcription response: %w", err)
	}

	var sb strings.Builder
	for _, seg := range parsed.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(text)
	}

	if sb.Len() == 0 {
		return nil, fmt.Errorf("%w: empty transcript", domain.ErrExtractionFailed)
	}

	return &domain.NormalisedText{
		Text:     sb.String(),
		Language: parsed.Language,
	}, nil
}
