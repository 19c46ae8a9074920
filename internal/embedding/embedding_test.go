package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/clarirag/internal/apperr"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestHash_DeterministicUnitVectors(t *testing.T) {
	h := NewHash(64)
	ctx := context.Background()

	a, err := h.Embed(ctx, "define-public transfer function")
	require.NoError(t, err)
	b, err := h.Embed(ctx, "define-public transfer function")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
}

func TestHash_SimilarTextsAreCloser(t *testing.T) {
	h := NewHash(256)
	ctx := context.Background()

	q, _ := h.Embed(ctx, "how do I transfer fungible tokens")
	near, _ := h.Embed(ctx, "use ft-transfer? to transfer fungible tokens between principals")
	far, _ := h.Embed(ctx, "installing clarinet on linux with homebrew")

	assert.Greater(t, dot(q, near), dot(q, far))
}

func TestHash_EmptyTextIsZeroVector(t *testing.T) {
	v, err := NewHash(8).Embed(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
}

func TestHash_DefaultDimensions(t *testing.T) {
	h := NewHash(0)
	assert.Equal(t, DefaultHashDimensions, h.Dimensions())
	assert.Equal(t, "hash/384", h.Model())
}

func TestRegistry_Build(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"hash", "ollama", "openai"}, r.Names())

	e, err := r.Build(Config{Provider: "hash", Dimensions: 32})
	require.NoError(t, err)
	assert.Equal(t, 32, e.Dimensions())
}

func TestRegistry_UnknownProvider(t *testing.T) {
	_, err := NewRegistry().Build(Config{Provider: "word2vec"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUnknownCapability))
}

func TestRegistry_OllamaNeedsNoServerToBuild(t *testing.T) {
	e, err := NewRegistry().Build(Config{Provider: "ollama", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.Equal(t, "ollama/nomic-embed-text", e.Model())
	assert.Equal(t, 768, e.Dimensions())
}

func TestNewOpenAI_DimensionsByModel(t *testing.T) {
	small, err := NewOpenAI(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, 1536, small.Dimensions())

	large, err := NewOpenAI(Config{APIKey: "k", Model: "text-embedding-3-large"})
	require.NoError(t, err)
	assert.Equal(t, 3072, large.Dimensions())
	assert.Equal(t, "openai/text-embedding-3-large", large.Model())
}

// embeddingsServer answers every embeddings call with a vector of the
// requested size (or fallback) and records the decoded request bodies.
func embeddingsServer(t *testing.T, fallback int) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		bodies = append(bodies, body)

		n := fallback
		if d, ok := body["dimensions"].(float64); ok {
			n = int(d)
		}
		vec := make([]float32, n)
		vec[0] = 1
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  body["model"],
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": vec}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &bodies
}

func TestOpenAI_SendsConfiguredDimensions(t *testing.T) {
	srv, bodies := embeddingsServer(t, 1536)
	emb, err := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL + "/v1", Dimensions: 512})
	require.NoError(t, err)

	v, err := emb.Embed(context.Background(), "define-map")
	require.NoError(t, err)
	assert.Len(t, v, 512)
	assert.Equal(t, 512, emb.Dimensions())
	require.Len(t, *bodies, 1)
	assert.Equal(t, float64(512), (*bodies)[0]["dimensions"])
}

func TestOpenAI_DefaultDimensionsNotSent(t *testing.T) {
	srv, bodies := embeddingsServer(t, 1536)
	emb, err := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	v, err := emb.Embed(context.Background(), "define-map")
	require.NoError(t, err)
	assert.Len(t, v, 1536)
	require.Len(t, *bodies, 1)
	assert.NotContains(t, (*bodies)[0], "dimensions")
}

func TestOpenAI_DimensionMismatch(t *testing.T) {
	srv, _ := embeddingsServer(t, 768)
	emb, err := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = emb.Embed(context.Background(), "define-map")
	assert.True(t, errors.Is(err, apperr.ErrDimensionMismatch), err)
}

func TestNewOpenAI_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAI(Config{})
	assert.Error(t, err)
}

func TestNormalize_ZeroVectorUntouched(t *testing.T) {
	v := []float32{0, 0, 0}
	Normalize(v)
	assert.Equal(t, []float32{0, 0, 0}, v)
}
