package assistant_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/clarirag/internal/apperr"
	"github.com/starford/clarirag/internal/assistant"
	"github.com/starford/clarirag/internal/generation"
	"github.com/starford/clarirag/internal/ingest"
	"github.com/starford/clarirag/internal/prompt"
	"github.com/starford/clarirag/internal/retrieval"
	"github.com/starford/clarirag/internal/testutil"
)

func newService(t *testing.T, gen *testutil.FakeGenerator, opts ...assistant.Option) *assistant.Service {
	t.Helper()
	store := testutil.TestStore(t)
	emb := testutil.NewFakeEmbedder(64)

	docs := testutil.WriteCorpus(t, map[string]string{
		"maps.md": "# Data maps\n\nDeclare a map with define-map and read entries back with map-get? inside a function.\n",
	})
	_, err := ingest.New(store, emb).ReindexDocs(context.Background(), docs)
	require.NoError(t, err)

	var g generation.Generator
	if gen != nil {
		g = gen
	}
	return assistant.NewService(retrieval.New(emb, store), g, opts...)
}

func TestPrompt_UsesRetrievedDocs(t *testing.T) {
	svc := newService(t, nil)

	res, err := svc.Prompt(context.Background(), retrieval.Request{Query: "how do maps work"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Prompt, prompt.DefaultSystemMessage))
	assert.Contains(t, res.Prompt, "[DOC 1] Data maps")
	assert.Contains(t, res.Prompt, "User Question: how do maps work")
	assert.Contains(t, res.Warning, "code_samples")
	assert.Len(t, res.Retrieval.DocsContexts, 1)
	assert.Empty(t, res.Retrieval.CodeContexts)
}

func TestAnswer_CallsGenerator(t *testing.T) {
	gen := &testutil.FakeGenerator{Answer: "Use define-map."}
	svc := newService(t, gen, assistant.WithSystemMessage("You are terse."))

	ans, err := svc.Answer(context.Background(), retrieval.Request{Query: "maps"})
	require.NoError(t, err)

	assert.Equal(t, "Use define-map.", ans.Answer)
	assert.Equal(t, "fake/test", ans.Model)
	require.Len(t, gen.Prompts(), 1)
	assert.True(t, strings.HasPrefix(gen.Prompts()[0], "You are terse.\n\n"))
}

func TestModel(t *testing.T) {
	assert.Equal(t, "fake/test", newService(t, &testutil.FakeGenerator{}).Model())
	assert.Empty(t, newService(t, nil).Model())
}

func TestGenerateCode_FramesQuestion(t *testing.T) {
	gen := &testutil.FakeGenerator{Answer: "(define-map m uint uint)"}
	svc := newService(t, gen)

	_, err := svc.GenerateCode(context.Background(), retrieval.Request{Query: "a counter map"})
	require.NoError(t, err)

	require.Len(t, gen.Prompts(), 1)
	assert.Contains(t, gen.Prompts()[0], "User Question: "+assistant.CodeInstruction+"a counter map")
}

func TestAnswer_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := newService(t, nil).Answer(ctx, retrieval.Request{Query: "maps"})
	assert.ErrorIs(t, err, assistant.ErrNoGenerator)

	boom := errors.New("quota exceeded")
	_, err = newService(t, &testutil.FakeGenerator{Err: boom}).Answer(ctx, retrieval.Request{Query: "maps"})
	assert.ErrorIs(t, err, boom)

	gen := &testutil.FakeGenerator{Answer: "x"}
	_, err = newService(t, gen).Answer(ctx, retrieval.Request{Query: ""})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	assert.Empty(t, gen.Prompts())
}
