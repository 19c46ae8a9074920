package api

import (
	"github.com/starford/clarirag/internal/assistant"
	"github.com/starford/clarirag/internal/ingest"
	"github.com/starford/clarirag/internal/retrieval"
	"github.com/starford/clarirag/internal/vectorstore"
)

// RetrieveRequest is the body of /retrieve, /prompt and /ask.
type RetrieveRequest = retrieval.Request

// RetrieveResponse holds the parallel per-collection result lists.
type RetrieveResponse = retrieval.Response

// PromptResponse is the assembled prompt and the hits behind it.
type PromptResponse = assistant.PromptResult

// AskResponse is a generated answer.
type AskResponse = assistant.Answer

// ReindexResponse summarises a finished reindex run.
type ReindexResponse = ingest.Result

// CollectionsResponse lists the built collections.
type CollectionsResponse struct {
	Collections []vectorstore.Info `json:"collections"`
}
