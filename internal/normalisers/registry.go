package normalisers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
	"github.com/ragbase/ragbase/internal/logger"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// MIMEAuto requests engine selection by content sniffing.
const MIMEAuto = "auto"

// Registry dispatches raw documents to extraction engines by MIME type.
// When several engines match, the highest priority wins.
type Registry struct {
	engines []driven.ExtractionEngine
	timeout time.Duration
}

// Option configures the registry.
type Option func(*Registry)

// WithTimeout bounds a single engine run. Default is 60 seconds.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		timeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds an engine to the registry.
func (r *Registry) Register(engine driven.ExtractionEngine) {
	r.engines = append(r.engines, engine)
}

// SupportedMIMETypes returns all MIME types that can be normalised.
func (r *Registry) SupportedMIMETypes() []string {
	seen := make(map[string]struct{})
	var types []string
	for _, e := range r.engines {
		for _, mt := range e.SupportedMIMETypes() {
			if _, ok := seen[mt]; !ok {
				seen[mt] = struct{}{}
				types = append(types, mt)
			}
		}
	}
	sort.Strings(types)
	return types
}

// Normalise selects an engine for the MIME type and extracts text.
// MIME type "auto" triggers content sniffing. OCR/transcription engines
// are retried once on transient failure before the error surfaces as
// an extraction failure.
func (r *Registry) Normalise(
	ctx context.Context, raw []byte, mimeType string, hints map[string]string,
) (*domain.NormalisedText, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty document", domain.ErrExtractionFailed)
	}

	if mimeType == "" || mimeType == MIMEAuto {
		mimeType = sniffMIMEType(raw, hints)
		logger.Debug("Sniffed MIME type: %s", mimeType)
	}
	// Strip parameters like "; charset=utf-8".
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	engine := r.selectEngine(mimeType)
	if engine == nil {
		return nil, fmt.Errorf("%w: no engine for %q", domain.ErrUnsupportedFormat, mimeType)
	}
	logger.Debug("Extraction engine: %s (mime=%s)", engine.Name(), mimeType)

	result, err := r.runEngine(ctx, engine, raw, mimeType, hints)
	if err != nil && engine.Retryable() && transient(err) {
		logger.Warn("Engine %s transient failure, retrying once: %v", engine.Name(), err)
		result, err = r.runEngine(ctx, engine, raw, mimeType, hints)
		if err != nil {
			// One retry for OCR/transcription, then surface as failed.
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrExtractionFailed, engine.Name(), err)
		}
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(result.Text) == "" {
		return nil, fmt.Errorf("%w: %s produced no text", domain.ErrExtractionFailed, engine.Name())
	}

	if result.Language == "" {
		result.Language = DetectLanguage(result.Text)
	}
	result.Engine = engine.Name()

	return result, nil
}

// transient reports whether an extraction error is worth one retry.
// Definitive outcomes (unusable text, timeout) are not.
func transient(err error) bool {
	return !errors.Is(err, domain.ErrExtractionFailed) &&
		!errors.Is(err, domain.ErrExtractionTimeout)
}

// runEngine executes one extraction attempt under the registry timeout.
func (r *Registry) runEngine(
	ctx context.Context, engine driven.ExtractionEngine, raw []byte, mimeType string, hints map[string]string,
) (*domain.NormalisedText, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := engine.Extract(ctx, raw, mimeType, hints)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s exceeded %s", domain.ErrExtractionTimeout, engine.Name(), r.timeout)
		}
		return nil, err
	}
	return result, nil
}

// selectEngine finds the highest-priority engine matching the MIME type.
// Exact matches are considered before "type/*" wildcards.
func (r *Registry) selectEngine(mimeType string) driven.ExtractionEngine {
	var best driven.ExtractionEngine
	bestScore := -1

	for _, e := range r.engines {
		for _, mt := range e.SupportedMIMETypes() {
			score := -1
			switch {
			case mt == mimeType:
				// Exact matches always beat wildcard matches.
				score = e.Priority() + 100
			case strings.HasSuffix(mt, "/*") && strings.HasPrefix(mimeType, strings.TrimSuffix(mt, "*")):
				score = e.Priority()
			}
			if score > bestScore {
				bestScore = score
				best = e
			}
		}
	}

	return best
}

// extensionTypes maps well-known file extensions that content sniffing
// cannot distinguish from plain text.
var extensionTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".htm":      "text/html",
	".html":     "text/html",
	".txt":      "text/plain",
	".csv":      "text/plain",
	".log":      "text/plain",
	".png":      "image/png",
	".jpg":      "image/jpeg",
	".jpeg":     "image/jpeg",
	".tif":      "image/tiff",
	".tiff":     "image/tiff",
	".pdf":      "application/pdf",
	".wav":      "audio/wav",
	".mp3":      "audio/mpeg",
	".m4a":      "audio/mp4",
	".ogg":      "audio/ogg",
	".flac":     "audio/flac",
}

// sniffMIMEType guesses a MIME type from the filename hint and content.
func sniffMIMEType(raw []byte, hints map[string]string) string {
	if name := hints["filename"]; name != "" {
		lower := strings.ToLower(name)
		for ext, mt := range extensionTypes {
			if strings.HasSuffix(lower, ext) {
				return mt
			}
		}
	}

	detected := http.DetectContentType(raw)
	if idx := strings.Index(detected, ";"); idx >= 0 {
		detected = detected[:idx]
	}
	return detected
}
