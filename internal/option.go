package internal

import (
	"github.com/starford/clarirag/internal/embedding"
	"github.com/starford/clarirag/internal/generation"
	"github.com/starford/clarirag/internal/ingest"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	embedders  *embedding.Registry
	generators *generation.Registry
	ingestOpts []ingest.Option
}

func newApplication(opts ...Option) *application {
	app := &application{
		embedders:  embedding.NewRegistry(),
		generators: generation.NewRegistry(),
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithEmbedders replaces the embedding provider registry.
func WithEmbedders(r *embedding.Registry) Option {
	return func(a *application) {
		a.embedders = r
	}
}

// WithGenerators replaces the generation provider registry.
func WithGenerators(r *generation.Registry) Option {
	return func(a *application) {
		a.generators = r
	}
}

// WithIngestOptions appends options applied to the ingestion pipeline.
func WithIngestOptions(opts ...ingest.Option) Option {
	return func(a *application) {
		a.ingestOpts = append(a.ingestOpts, opts...)
	}
}
