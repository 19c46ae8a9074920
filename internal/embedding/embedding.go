// Package embedding maps text to fixed-length vectors.
//
// The same Embedder must be used to index a collection and to query it.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/starford/clarirag/internal/apperr"
)

// Embedder turns text into a vector of Dimensions() floats.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	// Model identifies the embedding model, e.g. "openai/text-embedding-3-small".
	Model() string
}

// Config selects and parameterises an Embedder.
type Config struct {
	Provider          string
	Model             string
	Dimensions        int
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
}

// Factory builds an Embedder from a Config.
type Factory func(cfg Config) (Embedder, error)

// Registry resolves provider names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in providers.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(ProviderHash, func(cfg Config) (Embedder, error) {
		return NewHash(cfg.Dimensions), nil
	})
	r.Register(ProviderOpenAI, func(cfg Config) (Embedder, error) {
		return NewOpenAI(cfg)
	})
	r.Register(ProviderOllama, func(cfg Config) (Embedder, error) {
		return NewOllama(cfg)
	})
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

// Build creates the Embedder named by cfg.Provider.
func (r *Registry) Build(cfg Config) (Embedder, error) {
	f, ok := r.factories[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("embedding: provider %q: %w", cfg.Provider, apperr.ErrUnknownCapability)
	}
	e, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding: build %s: %w", cfg.Provider, err)
	}
	return e, nil
}

// Normalize scales v to unit length in place. Zero vectors are left alone.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

func toFloat32(v64 []float64) []float32 {
	v := make([]float32, len(v64))
	for i, x := range v64 {
		v[i] = float32(x)
	}
	return v
}
