package internal

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/starford/clarirag/internal/assistant"
	"github.com/starford/clarirag/internal/embedding"
	"github.com/starford/clarirag/internal/generation"
	"github.com/starford/clarirag/internal/ingest"
	"github.com/starford/clarirag/internal/models"
	"github.com/starford/clarirag/internal/retrieval"
	"github.com/starford/clarirag/internal/vectorstore"
)

// Corpus names accepted by the reindex surfaces.
const (
	CorpusDocs = "docs"
	CorpusCode = "code"
	CorpusAll  = "all"
)

// NewLogger returns a JSON logger writing to w at level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Components are the long-lived services built once per process from a
// Config and shared by every surface.
type Components struct {
	Config    *Config
	Store     *vectorstore.Store
	Embedder  embedding.Embedder
	Generator generation.Generator // nil when generation is disabled
	Pipeline  *ingest.Pipeline
	Retriever *retrieval.Retriever
	Assistant *assistant.Service
}

// NewComponents builds the vector store, providers and services from the
// configuration given with WithConfig.
func NewComponents(logger *slog.Logger, opts ...Option) (*Components, error) {
	app := newApplication(opts...)
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	emb, err := app.embedders.Build(cfg.Embedding.ProviderConfig())
	if err != nil {
		return nil, err
	}

	var gen generation.Generator
	if cfg.Generation.Enabled() {
		gen, err = app.generators.Build(cfg.Generation.ProviderConfig())
		if err != nil {
			return nil, err
		}
	}

	store, err := vectorstore.Open(cfg.Index.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	pipeline := ingest.New(store, emb, append([]ingest.Option{
		ingest.WithLogger(logger),
		ingest.WithChunker(cfg.Chunking.Chunker()),
		ingest.WithFileTypes(cfg.Corpus.DocExts, cfg.Corpus.SourceExt, cfg.Corpus.ManifestName),
	}, app.ingestOpts...)...)

	retriever := retrieval.New(emb, store,
		retrieval.WithDefaults(cfg.Retrieval.CodeK, cfg.Retrieval.DocsK),
		retrieval.WithLogger(logger),
	)

	return &Components{
		Config:    cfg,
		Store:     store,
		Embedder:  emb,
		Generator: gen,
		Pipeline:  pipeline,
		Retriever: retriever,
		Assistant: assistant.NewService(retriever, gen,
			assistant.WithSystemMessage(cfg.Generation.SystemMessage),
			assistant.WithLogger(logger),
		),
	}, nil
}

// Close releases the vector store.
func (c *Components) Close() error {
	return c.Store.Close()
}

// Targets maps each corpus name to the collection it rebuilds.
func (c *Components) Targets() map[string]ingest.Target {
	return map[string]ingest.Target{
		CorpusDocs: {Kind: ingest.KindDocs, Root: c.Config.Corpus.DocsPath, Collection: models.CollectionDocs},
		CorpusCode: {Kind: ingest.KindCode, Root: c.Config.Corpus.CodePath, Collection: models.CollectionCode},
	}
}

// Select resolves a corpus name, or "all", to targets in a fixed order:
// code first, then docs.
func (c *Components) Select(corpus string) ([]ingest.Target, error) {
	all := c.Targets()
	switch corpus {
	case CorpusAll:
		return []ingest.Target{all[CorpusCode], all[CorpusDocs]}, nil
	case CorpusDocs, CorpusCode:
		return []ingest.Target{all[corpus]}, nil
	default:
		return nil, fmt.Errorf("unknown corpus %q (want %s, %s or %s)", corpus, CorpusDocs, CorpusCode, CorpusAll)
	}
}
