package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/ollama/ollama/api"
	"golang.org/x/time/rate"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "nomic-embed-text"
	defaultOllamaDims  = 768

	ollamaTimeout    = 30 * time.Second
	ollamaMaxRetries = 3
	ollamaBaseDelay  = time.Second
)

// Ollama embeds text with a local Ollama server.
type Ollama struct {
	client  *api.Client
	model   string
	dim     int
	limiter *rate.Limiter
}

// NewOllama creates an Ollama embedder. The server address falls back to
// OLLAMA_HOST and then to localhost.
func NewOllama(cfg Config) (*Ollama, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = os.Getenv("OLLAMA_HOST")
	}
	if raw == "" {
		raw = defaultOllamaURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("ollama: parse url %q: %w", raw, err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	dim := cfg.Dimensions
	if dim <= 0 {
		dim = defaultOllamaDims
	}

	return &Ollama{
		client:  api.NewClient(u, &http.Client{Timeout: ollamaTimeout}),
		model:   model,
		dim:     dim,
		limiter: newLimiter(cfg.RequestsPerSecond),
	}, nil
}

// Embed requests an embedding, retrying with exponential backoff.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	req := &api.EmbeddingRequest{Model: o.model, Prompt: text}

	var lastErr error
	for attempt := range ollamaMaxRetries {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := o.client.Embeddings(ctx, req)
		if err == nil {
			v := toFloat32(resp.Embedding)
			Normalize(v)
			return v, nil
		}
		lastErr = err

		delay := ollamaBaseDelay << attempt
		slog.Debug("embedding: ollama retry", slog.Int("attempt", attempt+1), slog.Duration("delay", delay), slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("ollama: embedding failed after %d attempts: %w", ollamaMaxRetries, lastErr)
}

// Dimensions returns the configured vector size.
func (o *Ollama) Dimensions() int { return o.dim }

// Model returns "ollama/<model>".
func (o *Ollama) Model() string { return ProviderOllama + "/" + o.model }
