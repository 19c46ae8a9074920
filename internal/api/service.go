package api

import (
	"context"

	"github.com/starford/clarirag/internal/assistant"
	"github.com/starford/clarirag/internal/ingest"
	"github.com/starford/clarirag/internal/retrieval"
	"github.com/starford/clarirag/internal/vectorstore"
)

// Assistant answers questions against the indexed corpora.
type Assistant interface {
	Retrieve(ctx context.Context, req retrieval.Request) (retrieval.Response, error)
	Prompt(ctx context.Context, req retrieval.Request) (assistant.PromptResult, error)
	Answer(ctx context.Context, req retrieval.Request) (assistant.Answer, error)
}

// Reindexer rebuilds one collection from its corpus.
type Reindexer interface {
	Reindex(ctx context.Context, t ingest.Target) (ingest.Result, error)
}

// Catalog lists the collections of the vector store.
type Catalog interface {
	List(ctx context.Context) ([]vectorstore.Info, error)
}

var (
	_ Assistant = (*assistant.Service)(nil)
	_ Reindexer = (*ingest.Pipeline)(nil)
	_ Catalog   = (*vectorstore.Store)(nil)
)

// Deps groups everything the handlers call into.
type Deps struct {
	Assistant Assistant
	Reindexer Reindexer
	Catalog   Catalog
	// Targets maps a corpus name ("docs", "code") to what it rebuilds.
	Targets map[string]ingest.Target
}
