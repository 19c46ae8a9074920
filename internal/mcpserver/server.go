// Package mcpserver exposes the Clarity retrieval tools over the Model
// Context Protocol, on stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/clarirag/internal/apperr"
	"github.com/starford/clarirag/internal/assistant"
	"github.com/starford/clarirag/internal/retrieval"
	"github.com/starford/clarirag/internal/vectorstore"
)

// Tool names.
const (
	ToolGetClarityContext   = "get_clarity_context"
	ToolGenerateClarityCode = "generate_clarity_code"
	ToolRetrieveContext     = "retrieve_context"
	ToolListCollections     = "list_collections"
)

// Assistant is the question answering side the tools call into.
type Assistant interface {
	Retrieve(ctx context.Context, req retrieval.Request) (retrieval.Response, error)
	Prompt(ctx context.Context, req retrieval.Request) (assistant.PromptResult, error)
	Answer(ctx context.Context, req retrieval.Request) (assistant.Answer, error)
	GenerateCode(ctx context.Context, req retrieval.Request) (assistant.Answer, error)
}

// Catalog lists the built collections.
type Catalog interface {
	List(ctx context.Context) ([]vectorstore.Info, error)
}

var (
	_ Assistant = (*assistant.Service)(nil)
	_ Catalog   = (*vectorstore.Store)(nil)
)

type tool struct {
	def     mcp.Tool
	handler server.ToolHandlerFunc
}

// toolRegistry maps a tool name to its definition and handler.
type toolRegistry map[string]tool

func (r toolRegistry) register(def mcp.Tool, h server.ToolHandlerFunc) {
	r[def.Name] = tool{def: def, handler: h}
}

func (r toolRegistry) lookup(name string) (tool, error) {
	t, ok := r[name]
	if !ok {
		return tool{}, fmt.Errorf("mcpserver: tool %q: %w", name, apperr.ErrUnknownCapability)
	}
	return t, nil
}

func (r toolRegistry) names() []string {
	out := make([]string, 0, len(r))
	for n := range r {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Server wraps the MCP server with the Clarity tools.
type Server struct {
	mcp     *server.MCPServer
	tools   toolRegistry
	asst    Assistant
	catalog Catalog
	logger  *slog.Logger
}

// New creates an MCP server with every tool registered.
func New(asst Assistant, catalog Catalog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{asst: asst, catalog: catalog, logger: logger, tools: make(toolRegistry)}

	s.mcp = server.NewMCPServer(
		"clarity-builder",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.tools.register(mcp.NewTool(ToolGetClarityContext,
		mcp.WithDescription("Answers a Clarity question using relevant documentation and code examples. "+
			"Returns the assembled context instead when no language model is configured."),
		queryParam("What you're looking for"),
		kParams(),
	), s.withRequest(s.getClarityContext))

	s.tools.register(mcp.NewTool(ToolGenerateClarityCode,
		mcp.WithDescription("Generates complete Clarity code grounded in retrieved documentation and examples."),
		queryParam("Your code generation request"),
		kParams(),
	), s.withRequest(s.generateClarityCode))

	s.tools.register(mcp.NewTool(ToolRetrieveContext,
		mcp.WithDescription("Returns the closest code and documentation chunks with metadata and distances as JSON."),
		queryParam("Search text"),
		kParams(),
	), s.withRequest(s.retrieveContext))

	s.tools.register(mcp.NewTool(ToolListCollections,
		mcp.WithDescription("Lists indexed collections with entry counts and build metadata."),
	), s.listCollections)

	for _, name := range s.tools.names() {
		s.mcp.AddTool(s.tools[name].def, s.dispatch)
	}
	return s
}

// dispatch routes a tool call to its registered handler by name.
func (s *Server) dispatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, err := s.tools.lookup(req.Params.Name)
	if err != nil {
		return s.toolError(req.Params.Name, err), nil
	}
	return t.handler(ctx, req)
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// HTTPHandler returns a stateless streamable HTTP transport for the server.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func queryParam(desc string) mcp.ToolOption {
	return mcp.WithString("query", mcp.Required(), mcp.Description(desc))
}

func kParams() mcp.ToolOption {
	return func(t *mcp.Tool) {
		mcp.WithNumber("code_k", mcp.Description("Number of code examples, 1 to 20"))(t)
		mcp.WithNumber("docs_k", mcp.Description("Number of documentation chunks, 1 to 20"))(t)
	}
}

type requestHandler func(ctx context.Context, req retrieval.Request) (*mcp.CallToolResult, error)

// withRequest turns the tool arguments into a retrieval request. Counts left
// out take the retriever defaults.
func (s *Server) withRequest(h requestHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, call mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := call.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		req := retrieval.Request{Query: query}
		args := call.GetArguments()
		if _, ok := args["code_k"]; ok {
			k := call.GetInt("code_k", 0)
			req.CodeK = &k
		}
		if _, ok := args["docs_k"]; ok {
			k := call.GetInt("docs_k", 0)
			req.DocsK = &k
		}
		return h(ctx, req)
	}
}

func (s *Server) getClarityContext(ctx context.Context, req retrieval.Request) (*mcp.CallToolResult, error) {
	ans, err := s.asst.Answer(ctx, req)
	if errors.Is(err, assistant.ErrNoGenerator) {
		p, perr := s.asst.Prompt(ctx, req)
		if perr != nil {
			return s.toolError(ToolGetClarityContext, perr), nil
		}
		return mcp.NewToolResultText(p.Prompt), nil
	}
	if err != nil {
		return s.toolError(ToolGetClarityContext, err), nil
	}
	return mcp.NewToolResultText(ans.Answer), nil
}

func (s *Server) generateClarityCode(ctx context.Context, req retrieval.Request) (*mcp.CallToolResult, error) {
	ans, err := s.asst.GenerateCode(ctx, req)
	if err != nil {
		return s.toolError(ToolGenerateClarityCode, err), nil
	}
	return mcp.NewToolResultText(ans.Answer), nil
}

func (s *Server) retrieveContext(ctx context.Context, req retrieval.Request) (*mcp.CallToolResult, error) {
	resp, err := s.asst.Retrieve(ctx, req)
	if err != nil {
		return s.toolError(ToolRetrieveContext, err), nil
	}
	out, _ := json.MarshalIndent(resp, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listCollections(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos, err := s.catalog.List(ctx)
	if err != nil {
		return s.toolError(ToolListCollections, err), nil
	}
	if infos == nil {
		infos = []vectorstore.Info{}
	}
	out, _ := json.MarshalIndent(infos, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) toolError(name string, err error) *mcp.CallToolResult {
	s.logger.Warn("mcp: tool failed", slog.String("tool", name), slog.String("error", err.Error()))
	return mcp.NewToolResultError(err.Error())
}
