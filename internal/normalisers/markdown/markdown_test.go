package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
)

func TestNew(t *testing.T) {
	engine := New()
	require.NotNil(t, engine)
	assert.Equal(t, "markdown", engine.Name())
	assert.Equal(t, 50, engine.Priority())
	assert.False(t, engine.Retryable())
}

func TestSupportedMIMETypes(t *testing.T) {
	engine := New()
	mimeTypes := engine.SupportedMIMETypes()

	assert.Contains(t, mimeTypes, "text/markdown")
	assert.Contains(t, mimeTypes, "text/x-markdown")
	assert.Len(t, mimeTypes, 2)
}

func TestExtract_EmptyContent(t *testing.T) {
	engine := New()

	_, err := engine.Extract(context.Background(), []byte(""), "text/markdown", nil)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "headings removed",
			input:    "# Title\n## Subtitle",
			expected: "Title\nSubtitle",
		},
		{
			name:     "bold removed",
			input:    "This is **bold** text",
			expected: "This is bold text",
		},
		{
			name:     "links converted",
			input:    "Click [here](https://example.com)",
			expected: "Click here",
		},
		{
			name:     "images removed",
			input:    "See ![alt text](image.png) here",
			expected: "See  here",
		},
		{
			name:     "inline code removed",
			input:    "Use `code` here",
			expected: "Use  here",
		},
		{
			name:     "blockquotes cleaned",
			input:    "> This is a quote",
			expected: "This is a quote",
		},
		{
			name:     "list markers removed",
			input:    "- Item 1\n- Item 2",
			expected: "Item 1\nItem 2",
		},
		{
			name:     "numbered list markers removed",
			input:    "1. First\n2. Second",
			expected: "First\nSecond",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, stripMarkdown(tc.input))
		})
	}
}

func TestExtract_ComplexMarkdown(t *testing.T) {
	engine := New()

	complexMarkdown := `# Main Title

## Section 1

This is a paragraph with **bold** and *italic* text.

- List item 1
- List item 2

` + "```go" + `
func main() {}
` + "```" + `

[Link](https://example.com)

![Image](image.png)
`

	result, err := engine.Extract(context.Background(), []byte(complexMarkdown), "text/markdown", nil)
	require.NoError(t, err)

	assert.Contains(t, result.Text, "Main Title")
	assert.NotContains(t, result.Text, "**bold**")
	assert.Contains(t, result.Text, "bold")
	assert.NotContains(t, result.Text, "[Link]")
	assert.Contains(t, result.Text, "Link")
	assert.NotContains(t, result.Text, "```")
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.ExtractionEngine = (*Engine)(nil)
}
