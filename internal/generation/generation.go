// Package generation sends an assembled prompt to a language model and returns
// its answer.
package generation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/starford/clarirag/internal/apperr"
)

// Provider names understood by NewRegistry.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// DefaultMaxTokens caps the answer length when none is configured.
const DefaultMaxTokens = 2048

var errEmptyAnswer = errors.New("model returned no text")

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Model identifies the model, e.g. "gemini/gemini-2.0-flash".
	Model() string
}

// Config selects and parameterises a Generator.
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	MaxTokens int
}

func (c Config) maxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return DefaultMaxTokens
}

// Factory builds a Generator from a Config.
type Factory func(cfg Config) (Generator, error)

// Registry resolves provider names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in providers.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(ProviderGemini, func(cfg Config) (Generator, error) { return NewGemini(cfg) })
	r.Register(ProviderAnthropic, func(cfg Config) (Generator, error) { return NewAnthropic(cfg) })
	r.Register(ProviderOpenAI, func(cfg Config) (Generator, error) { return NewOpenAI(cfg) })
	r.Register(ProviderOllama, func(cfg Config) (Generator, error) { return NewOllama(cfg) })
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build creates the Generator named by cfg.Provider.
func (r *Registry) Build(cfg Config) (Generator, error) {
	f, ok := r.factories[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("generation: provider %q: %w", cfg.Provider, apperr.ErrUnknownCapability)
	}
	g, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("generation: build %s: %w", cfg.Provider, err)
	}
	return g, nil
}
