package retrieval

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/clarirag/internal/apperr"
	"github.com/starford/clarirag/internal/models"
)

// Bounds and defaults for the per-collection result counts.
const (
	MinK         = 1
	MaxK         = 20
	DefaultCodeK = 5
	DefaultDocsK = 8
)

var kRules = []validation.Rule{
	validation.Min(MinK).Error("must be an integer between 1 and 20"),
	validation.Max(MaxK).Error("must be an integer between 1 and 20"),
}

// Request is a retrieval request as received from a client. Omitted counts
// take the retriever defaults.
type Request struct {
	Query string `json:"query"`
	CodeK *int   `json:"code_k,omitempty"`
	DocsK *int   `json:"docs_k,omitempty"`
}

// Validate checks the query and the optional counts.
func (r Request) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Query, validation.Required),
		validation.Field(&r.CodeK, kRules...),
		validation.Field(&r.DocsK, kRules...),
	)
}

// Response is the wire form of a retrieval: parallel lists per collection.
type Response struct {
	CodeContexts  []string         `json:"code_contexts"`
	CodeMetadata  []map[string]any `json:"code_metadata"`
	CodeDistances []float64        `json:"code_distances"`
	DocsContexts  []string         `json:"docs_contexts"`
	DocsMetadata  []map[string]any `json:"docs_metadata"`
	DocsDistances []float64        `json:"docs_distances"`
	Warning       string           `json:"warning,omitempty"`
}

// NewResponse flattens r into the wire form. Lists are never nil.
func NewResponse(r models.Retrieval) Response {
	resp := Response{Warning: r.Warning}
	resp.CodeContexts, resp.CodeMetadata, resp.CodeDistances = flatten(r.Code)
	resp.DocsContexts, resp.DocsMetadata, resp.DocsDistances = flatten(r.Docs)
	return resp
}

func flatten(hits []models.RetrievalResult) ([]string, []map[string]any, []float64) {
	contents := make([]string, len(hits))
	metas := make([]map[string]any, len(hits))
	dists := make([]float64, len(hits))
	for i, h := range hits {
		contents[i] = h.Content
		metas[i] = h.Metadata
		dists[i] = h.Distance
	}
	return contents, metas, dists
}

func checkK(name string, k int) error {
	if k < MinK || k > MaxK {
		return fmt.Errorf("retrieval: %s must be an integer between %d and %d: %w", name, MinK, MaxK, apperr.ErrInvalidRequest)
	}
	return nil
}
