// Package retrieval finds the chunks most relevant to a question in both
// collections.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/clarirag/internal/apperr"
	"github.com/starford/clarirag/internal/embedding"
	"github.com/starford/clarirag/internal/models"
	"github.com/starford/clarirag/internal/vectorstore"
)

// Searcher is the read side of the vector store.
type Searcher interface {
	Query(ctx context.Context, name string, vec []float32, k int) ([]models.RetrievalResult, error)
}

var _ Searcher = (*vectorstore.Store)(nil)

// Retriever embeds a question once and queries the code and docs collections.
type Retriever struct {
	embedder embedding.Embedder
	index    Searcher
	logger   *slog.Logger

	codeK, docsK int
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithDefaults sets the counts used when a Request omits them. Values
// outside [1,20] are ignored.
func WithDefaults(codeK, docsK int) Option {
	return func(r *Retriever) {
		if checkK("code_k", codeK) == nil {
			r.codeK = codeK
		}
		if checkK("docs_k", docsK) == nil {
			r.docsK = docsK
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// New creates a Retriever. embedder must be the one the collections were
// built with.
func New(embedder embedding.Embedder, index Searcher, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		index:    index,
		logger:   slog.Default(),
		codeK:    DefaultCodeK,
		docsK:    DefaultDocsK,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Defaults returns the default code and docs counts.
func (r *Retriever) Defaults() (codeK, docsK int) { return r.codeK, r.docsK }

// Handle validates req, fills in default counts and runs the retrieval.
func (r *Retriever) Handle(ctx context.Context, req Request) (Response, error) {
	res, err := r.Do(ctx, req)
	if err != nil {
		return Response{}, err
	}
	return NewResponse(res), nil
}

// Do is Handle without the wire conversion.
func (r *Retriever) Do(ctx context.Context, req Request) (models.Retrieval, error) {
	if err := req.Validate(); err != nil {
		return models.Retrieval{}, fmt.Errorf("retrieval: %w: %w", apperr.ErrInvalidRequest, err)
	}
	codeK, docsK := r.codeK, r.docsK
	if req.CodeK != nil {
		codeK = *req.CodeK
	}
	if req.DocsK != nil {
		docsK = *req.DocsK
	}
	return r.Retrieve(ctx, req.Query, codeK, docsK)
}

// Retrieve returns up to codeK code hits and docsK documentation hits for
// query, nearest first. A collection that has not been built yet contributes
// no hits and a warning instead of an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, codeK, docsK int) (models.Retrieval, error) {
	if strings.TrimSpace(query) == "" {
		return models.Retrieval{}, fmt.Errorf("retrieval: query is required: %w", apperr.ErrInvalidRequest)
	}
	if err := checkK("code_k", codeK); err != nil {
		return models.Retrieval{}, err
	}
	if err := checkK("docs_k", docsK); err != nil {
		return models.Retrieval{}, err
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return models.Retrieval{}, fmt.Errorf("retrieval: embed query: %w", err)
	}

	var (
		out      models.Retrieval
		warnings []string
	)

	out.Code, err = r.query(ctx, models.CollectionCode, vec, codeK)
	if errors.Is(err, apperr.ErrCollectionNotFound) {
		warnings = append(warnings, fmt.Sprintf("Collection '%s' not found. Code results will be empty.", models.CollectionCode))
	} else if err != nil {
		return models.Retrieval{}, err
	}

	out.Docs, err = r.query(ctx, models.CollectionDocs, vec, docsK)
	if errors.Is(err, apperr.ErrCollectionNotFound) {
		warnings = append(warnings, fmt.Sprintf("Collection '%s' not found. Documentation results will be empty.", models.CollectionDocs))
	} else if err != nil {
		return models.Retrieval{}, err
	}

	if len(warnings) > 0 {
		out.Warning = strings.Join(warnings, " ")
		r.logger.Warn("retrieval: partial result", slog.String("warning", out.Warning))
	}
	return out, nil
}

func (r *Retriever) query(ctx context.Context, collection string, vec []float32, k int) ([]models.RetrievalResult, error) {
	hits, err := r.index.Query(ctx, collection, vec, k)
	if err != nil {
		if errors.Is(err, apperr.ErrCollectionNotFound) {
			return []models.RetrievalResult{}, err
		}
		return nil, fmt.Errorf("retrieval: query %s: %w", collection, err)
	}
	if hits == nil {
		hits = []models.RetrievalResult{}
	}
	return hits, nil
}
