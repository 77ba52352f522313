package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
	"github.com/ragbase/ragbase/internal/normalisers/plaintext"
)

// Ensure Engine implements the interface.
var _ driven.ExtractionEngine = (*Engine)(nil)

// Engine handles Markdown documents.
type Engine struct{}

// New creates a new Markdown engine.
func New() *Engine {
	return &Engine{}
}

// Name identifies the engine.
func (e *Engine) Name() string {
	return "markdown"
}

// SupportedMIMETypes returns the MIME types this engine handles.
func (e *Engine) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (e *Engine) Priority() int {
	return 50 // Specific format, beats the plaintext fallback
}

// Retryable reports whether transient failures are worth a retry.
func (e *Engine) Retryable() bool {
	return false
}

// Extract strips Markdown formatting and returns the plain text.
func (e *Engine) Extract(_ context.Context, raw []byte, _ string, _ map[string]string) (*domain.NormalisedText, error) {
	text := plaintext.CleanText(stripMarkdown(string(raw)))
	if text == "" {
		return nil, domain.ErrExtractionFailed
	}
	return &domain.NormalisedText{Text: text}, nil
}

var (
	codeBlock    = regexp.MustCompile("(?s)```[^`]*```")
	inlineCode   = regexp.MustCompile("`[^`]+`")
	images       = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	blockquote   = regexp.MustCompile(`(?m)^>\s*`)
	horizRule    = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	listMarkers  = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedList = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
)

// stripMarkdown removes common markdown formatting for plain text
// content. This is a simplified implementation that handles common
// cases.
func stripMarkdown(content string) string {
	content = codeBlock.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "")
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")

	content = strings.ReplaceAll(content, "**", "")
	content = strings.ReplaceAll(content, "__", "")
	content = strings.ReplaceAll(content, "*", "")

	content = blockquote.ReplaceAllString(content, "")
	content = horizRule.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "")
	content = numberedList.ReplaceAllString(content, "")

	return content
}
