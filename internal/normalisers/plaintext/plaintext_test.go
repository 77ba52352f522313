package plaintext

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
	assert.Equal(t, "plaintext", engine.Name())
	assert.Equal(t, 5, engine.Priority())
	assert.False(t, engine.Retryable())
}

func TestSupportedMIMETypes(t *testing.T) {
	engine := New()
	mimeTypes := engine.SupportedMIMETypes()

	require.NotEmpty(t, mimeTypes)
	assert.Contains(t, mimeTypes, "text/plain")
	assert.Contains(t, mimeTypes, "application/json")
	assert.Contains(t, mimeTypes, "text/*")
}

func TestExtract_Success(t *testing.T) {
	engine := New()

	result, err := engine.Extract(context.Background(), []byte("This is plain text content."), "text/plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "This is plain text content.", result.Text)
}

func TestExtract_EmptyContent(t *testing.T) {
	engine := New()

	_, err := engine.Extract(context.Background(), []byte("   \n\n  "), "text/plain", nil)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "BOM stripped",
			input:    "\uFEFFhello",
			expected: "hello",
		},
		{
			name:     "CRLF normalised",
			input:    "line one\r\nline two\r\nline three",
			expected: "line one\nline two\nline three",
		},
		{
			name:     "trailing whitespace trimmed",
			input:    "line one   \nline two\t",
			expected: "line one\nline two",
		},
		{
			name:     "blank line runs collapsed",
			input:    "para one\n\n\n\n\npara two",
			expected: "para one\n\npara two",
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "\n\n  content  \n\n",
			expected: "content",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CleanText(tc.input))
		})
	}
}

func TestExtract_InvalidUTF8Replaced(t *testing.T) {
	engine := New()

	raw := append([]byte("valid "), 0xff, 0xfe)
	result, err := engine.Extract(context.Background(), raw, "text/plain", nil)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "valid")
	assert.Contains(t, result.Text, "�")
}

func TestExtract_UnicodeContent(t *testing.T) {
	engine := New()

	content := "多语言文本测试\nこんにちは世界\nПривет мир"
	result, err := engine.Extract(context.Background(), []byte(content), "text/plain", nil)
	require.NoError(t, err)
	assert.Equal(t, content, result.Text)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.ExtractionEngine = (*Engine)(nil)
}
