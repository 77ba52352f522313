package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
)

type embedReq struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func embedServer(t *testing.T, handler func(w http.ResponseWriter, req embedReq)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req embedReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req)
	}))
}

func writeVectors(w http.ResponseWriter, n int) {
	type datum struct {
		Object    string    `json:"object"`
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	}
	data := make([]datum, n)
	for i := range data {
		data[i] = datum{Object: "embedding", Embedding: []float32{float32(i), 1}, Index: i}
	}
	json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  DefaultModel,
	})
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"invalid_request_error"}}`, msg)
}

func newProvider(t *testing.T, baseURL string) *Provider {
	t.Helper()
	p, err := New(Config{
		APIKey:            "test-key",
		BaseURL:           baseURL,
		RequestsPerSecond: 1000,
		MaxRetries:        1,
	})
	require.NoError(t, err)
	return p
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestEmbedBatch_Success(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, req embedReq) {
		writeVectors(w, len(req.Input))
	})
	defer srv.Close()

	p := newProvider(t, srv.URL)
	results, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.NoError(t, results[0].Err)
	assert.InDeltaSlice(t, []float32{0, 1}, results[0].Vector, 1e-6)
	assert.InDeltaSlice(t, []float32{1, 1}, results[1].Vector, 1e-6)
}

func TestEmbedBatch_Empty(t *testing.T) {
	p := newProvider(t, "http://unused")
	results, err := p.EmbedBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, results)
}

func TestEmbedBatch_ThrottleRetried(t *testing.T) {
	calls := 0
	srv := embedServer(t, func(w http.ResponseWriter, req embedReq) {
		calls++
		if calls == 1 {
			writeAPIError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		writeVectors(w, len(req.Input))
	})
	defer srv.Close()

	p := newProvider(t, srv.URL)
	results, err := p.EmbedBatch(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 2, calls)
}

func TestEmbedBatch_ThrottleExhausted(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, _ embedReq) {
		writeAPIError(w, http.StatusTooManyRequests, "rate limit exceeded")
	})
	defer srv.Close()

	p := newProvider(t, srv.URL)
	results, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, domain.ErrThrottled)
	}
}

func TestEmbedBatch_RejectedIsolatesItems(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, req embedReq) {
		if len(req.Input) > 1 || req.Input[0] == "oversize" {
			writeAPIError(w, http.StatusBadRequest, "input too long")
			return
		}
		writeVectors(w, 1)
	})
	defer srv.Close()

	p := newProvider(t, srv.URL)
	results, err := p.EmbedBatch(context.Background(), []string{"ok", "oversize", "fine"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, domain.ErrRejected)
	assert.Nil(t, results[1].Vector)
	assert.NoError(t, results[2].Err)
}

func TestEmbed_Single(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, req embedReq) {
		writeVectors(w, len(req.Input))
	})
	defer srv.Close()

	p := newProvider(t, srv.URL)
	vec, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 1}, vec, 1e-6)
}

func TestDimensions(t *testing.T) {
	p := newProvider(t, "http://unused")
	assert.Equal(t, 1536, p.Dimensions())
	assert.Equal(t, DefaultModel, p.ModelName())

	var _ driven.EmbeddingProvider = p
}
