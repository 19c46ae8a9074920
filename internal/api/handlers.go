package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/clarirag/internal/apperr"
	"github.com/starford/clarirag/internal/vectorstore"
)

// Handler holds API route handlers.
type Handler struct {
	deps Deps
}

// NewHandler creates a new Handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (RetrieveRequest, bool) {
	var req RetrieveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return req, false
	}
	return req, true
}

// Retrieve handles POST /api/retrieve.
//
//	@Summary		Retrieve the closest code and documentation chunks
//	@Tags			retrieval
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RetrieveRequest	true	"Query and optional counts"
//	@Success		200		{object}	RetrieveResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/retrieve [post]
func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	resp, err := h.deps.Assistant.Retrieve(r.Context(), req)
	if err != nil {
		writeError(w, "retrieve", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Prompt handles POST /api/prompt.
//
//	@Summary		Assemble the generation prompt without calling a model
//	@Tags			retrieval
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RetrieveRequest	true	"Query and optional counts"
//	@Success		200		{object}	PromptResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/prompt [post]
func (h *Handler) Prompt(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	resp, err := h.deps.Assistant.Prompt(r.Context(), req)
	if err != nil {
		writeError(w, "prompt", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Ask handles POST /api/ask.
//
//	@Summary		Answer a question with retrieved context
//	@Tags			retrieval
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RetrieveRequest	true	"Query and optional counts"
//	@Success		200		{object}	AskResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ask [post]
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	resp, err := h.deps.Assistant.Answer(r.Context(), req)
	if err != nil {
		writeError(w, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Reindex handles POST /api/reindex/{corpus}.
//
//	@Summary		Rebuild the collection of one corpus
//	@Tags			ingest
//	@Produce		json
//	@Param			corpus	path		string	true	"Corpus"	Enums(docs, code)
//	@Success		200		{object}	ReindexResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reindex/{corpus} [post]
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "corpus")
	target, ok := h.deps.Targets[name]
	if !ok {
		writeError(w, "reindex", fmt.Errorf("corpus %q: %w", name, apperr.ErrNotFound))
		return
	}

	res, err := h.deps.Reindexer.Reindex(r.Context(), target)
	if err != nil {
		writeError(w, "reindex", err)
		return
	}
	slog.Info("api: reindex finished",
		slog.String("collection", res.Collection),
		slog.Int("chunks", res.Chunks))
	writeJSON(w, http.StatusOK, res)
}

// Collections handles GET /api/collections.
//
//	@Summary		List collections with entry counts and build metadata
//	@Tags			ingest
//	@Produce		json
//	@Success		200	{object}	CollectionsResponse
//	@Security		BearerAuth
//	@Router			/collections [get]
func (h *Handler) Collections(w http.ResponseWriter, r *http.Request) {
	infos, err := h.deps.Catalog.List(r.Context())
	if err != nil {
		writeError(w, "list collections", err)
		return
	}
	if infos == nil {
		infos = []vectorstore.Info{}
	}
	writeJSON(w, http.StatusOK, CollectionsResponse{Collections: infos})
}
