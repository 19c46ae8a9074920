package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/starford/clarirag/internal/apperr"
)

const (
	defaultOpenAIModel = "text-embedding-3-small"
	openAISmallDims    = 1536
	openAILargeDims    = 3072
)

// OpenAI embeds text through the OpenAI embeddings endpoint or any
// compatible server reachable at Config.BaseURL.
type OpenAI struct {
	client    *openai.Client
	model     string
	dim       int
	shortened bool // dim was requested explicitly and is sent with each call
	limiter   *rate.Limiter
}

// NewOpenAI creates an OpenAI embedder. The key falls back to OPENAI_API_KEY.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		return nil, errors.New("openai: api key not set")
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	dim := cfg.Dimensions
	if dim <= 0 {
		dim = openAISmallDims
		if model == "text-embedding-3-large" {
			dim = openAILargeDims
		}
	}

	oc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(oc),
		model:     model,
		dim:       dim,
		shortened: cfg.Dimensions > 0,
		limiter:   newLimiter(cfg.RequestsPerSecond),
	}, nil
}

// Embed requests a single embedding and L2-normalises it.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("openai: cannot embed empty text")
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.model),
		Input: []string{text},
	}
	if o.shortened {
		req.Dimensions = o.dim
	}
	resp, err := o.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai: no embedding data returned")
	}

	src := resp.Data[0].Embedding
	if len(src) != o.dim {
		return nil, fmt.Errorf("openai: got %d dimensions, want %d: %w", len(src), o.dim, apperr.ErrDimensionMismatch)
	}
	v := make([]float32, len(src))
	for i, x := range src {
		v[i] = float32(x)
	}
	Normalize(v)
	return v, nil
}

// Dimensions returns the configured vector size.
func (o *OpenAI) Dimensions() int { return o.dim }

// Model returns "openai/<model>".
func (o *OpenAI) Model() string { return ProviderOpenAI + "/" + o.model }

// newLimiter returns an unlimited limiter when rps is not positive.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}
