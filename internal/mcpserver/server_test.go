package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/clarirag/internal/apperr"
	"github.com/starford/clarirag/internal/assistant"
	"github.com/starford/clarirag/internal/generation"
	"github.com/starford/clarirag/internal/ingest"
	"github.com/starford/clarirag/internal/retrieval"
	"github.com/starford/clarirag/internal/testutil"
	"github.com/starford/clarirag/internal/vectorstore"
)

func testServer(t *testing.T, gen *testutil.FakeGenerator) *Server {
	t.Helper()

	store := testutil.TestStore(t)
	emb := testutil.NewFakeEmbedder(32)
	p := ingest.New(store, emb)

	docs := testutil.WriteCorpus(t, map[string]string{
		"traits.md": "# Traits\n\nA trait declares function signatures that another contract must implement.\n",
	})
	if _, err := p.ReindexDocs(context.Background(), docs); err != nil {
		t.Fatal(err)
	}

	var g generation.Generator
	if gen != nil {
		g = gen
	}
	return New(assistant.NewService(retrieval.New(emb, store), g), store, nil)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := srv.dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestToolsRegistered(t *testing.T) {
	srv := testServer(t, nil)
	want := []string{ToolGenerateClarityCode, ToolGetClarityContext, ToolListCollections, ToolRetrieveContext}
	if got := srv.tools.names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("tools = %v, want %v", got, want)
	}

	_, err := srv.tools.lookup("upload_asset")
	if !errors.Is(err, apperr.ErrUnknownCapability) {
		t.Errorf("lookup unknown = %v, want ErrUnknownCapability", err)
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	srv := testServer(t, nil)

	r := callTool(t, srv, "upload_asset", map[string]any{"query": "x"})
	if !r.IsError {
		t.Fatal("expected a tool error for an unregistered tool")
	}
	if got := resultText(r); !strings.Contains(got, "upload_asset") {
		t.Errorf("error text = %q, want tool name", got)
	}
}

func TestGetClarityContext_Answers(t *testing.T) {
	gen := &testutil.FakeGenerator{Answer: "Use define-trait."}
	srv := testServer(t, gen)

	r := callTool(t, srv, ToolGetClarityContext, map[string]any{"query": "what is a trait"})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if got := resultText(r); got != "Use define-trait." {
		t.Errorf("answer = %q", got)
	}
}

func TestGetClarityContext_NoGeneratorReturnsPrompt(t *testing.T) {
	srv := testServer(t, nil)

	r := callTool(t, srv, ToolGetClarityContext, map[string]any{"query": "what is a trait"})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, "[DOC 1] Traits") || !strings.HasSuffix(text, "Answer:") {
		t.Errorf("prompt = %q", text)
	}
}

func TestGenerateClarityCode(t *testing.T) {
	gen := &testutil.FakeGenerator{Answer: "(define-trait t ())"}
	srv := testServer(t, gen)

	r := callTool(t, srv, ToolGenerateClarityCode, map[string]any{"query": "a trait for tokens"})
	if resultText(r) != "(define-trait t ())" {
		t.Errorf("answer = %q", resultText(r))
	}
	prompts := gen.Prompts()
	if len(prompts) != 1 || !strings.Contains(prompts[0], assistant.CodeInstruction+"a trait for tokens") {
		t.Errorf("prompt not framed for code generation: %v", prompts)
	}
}

func TestRetrieveContext(t *testing.T) {
	srv := testServer(t, nil)

	r := callTool(t, srv, ToolRetrieveContext, map[string]any{"query": "traits", "docs_k": 1})
	var resp retrieval.Response
	if err := json.Unmarshal([]byte(resultText(r)), &resp); err != nil {
		t.Fatalf("decode: %v, text = %q", err, resultText(r))
	}
	if len(resp.DocsContexts) != 1 {
		t.Errorf("docs = %d, want 1", len(resp.DocsContexts))
	}
	if !strings.Contains(resp.Warning, "code_samples") {
		t.Errorf("warning = %q, want missing code collection", resp.Warning)
	}
}

func TestRetrieveContext_InvalidK(t *testing.T) {
	srv := testServer(t, nil)

	r := callTool(t, srv, ToolRetrieveContext, map[string]any{"query": "traits", "code_k": 50})
	if !r.IsError {
		t.Error("expected error for code_k out of range")
	}
	r = callTool(t, srv, ToolRetrieveContext, map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing query")
	}
}

func TestListCollections(t *testing.T) {
	srv := testServer(t, nil)

	r := callTool(t, srv, ToolListCollections, map[string]any{})
	var infos []vectorstore.Info
	if err := json.Unmarshal([]byte(resultText(r)), &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].Name != "docs" || infos[0].Count != 1 {
		t.Errorf("collections = %+v", infos)
	}
}
