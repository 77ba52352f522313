package plaintext

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.ExtractionEngine = (*Engine)(nil)

// Engine handles plain text documents.
type Engine struct{}

// New creates a new plain text engine.
func New() *Engine {
	return &Engine{}
}

// Name identifies the engine.
func (e *Engine) Name() string {
	return "plaintext"
}

// SupportedMIMETypes returns the MIME types this engine handles.
func (e *Engine) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"text/yaml",
		"text/toml",
		"text/x-go",
		"text/x-python",
		"text/x-rust",
		"text/x-java",
		"text/x-c",
		"text/x-shellscript",
		"text/x-sql",
		"text/javascript",
		"text/css",
		"application/json",
		"application/xml",
		"text/*",
	}
}

// Priority returns the selection priority.
func (e *Engine) Priority() int {
	return 5 // Fallback engine
}

// Retryable reports whether transient failures are worth a retry.
func (e *Engine) Retryable() bool {
	return false // Local parsing is deterministic
}

// Extract decodes raw bytes as text and cleans the whitespace.
func (e *Engine) Extract(_ context.Context, raw []byte, _ string, _ map[string]string) (*domain.NormalisedText, error) {
	text := CleanText(string(raw))
	if text == "" {
		return nil, domain.ErrExtractionFailed
	}
	return &domain.NormalisedText{Text: text}, nil
}

var multiNewlines = regexp.MustCompile(`\n{3,}`)

// CleanText applies the canonical text cleanup shared by all engines:
// BOM and carriage returns stripped, invalid UTF-8 replaced, trailing
// per-line whitespace removed, blank-line runs collapsed.
func CleanText(text string) string {
	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")

	text = multiNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
