package generation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2"
	ollamaTimeout      = 5 * time.Minute
)

// Ollama generates answers with a local Ollama server.
type Ollama struct {
	client    *api.Client
	model     string
	maxTokens int
}

// NewOllama creates an Ollama generator. The server address falls back to
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
	return &Ollama{
		client:    api.NewClient(u, &http.Client{Timeout: ollamaTimeout}),
		model:     model,
		maxTokens: cfg.maxTokens(),
	}, nil
}

// Generate runs a non-streaming completion of prompt.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"num_predict": o.maxTokens,
		},
	}

	var b strings.Builder
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		b.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama: generate: %w", err)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("ollama: %w", errEmptyAnswer)
	}
	return b.String(), nil
}

// Model returns "ollama/<model>".
func (o *Ollama) Model() string { return ProviderOllama + "/" + o.model }
