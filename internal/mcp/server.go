package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/seekhost/internal/engine"
	"github.com/Aman-CERP/seekhost/internal/index"
	"github.com/Aman-CERP/seekhost/pkg/version"
)

const serverName = "seekhost"

// Backend is the read side of the daemon the tools call. *daemon.Client
// implements it.
type Backend interface {
	Search(ctx context.Context, apikey string, indexID uint64, req index.SearchRequest) (*index.SearchResult, error)
	GetDocument(ctx context.Context, apikey string, indexID, docID uint64, req index.GetDocumentRequest) (engine.Document, error)
	GetFile(ctx context.Context, apikey string, indexID, docID uint64) ([]byte, error)
	IndexStats(ctx context.Context, apikey string, indexID uint64) (*index.Stats, error)
	ListIndices(ctx context.Context, apikey string) ([]index.Stats, error)
}

// Server is the MCP server for one account. Every tool call runs with the
// apikey it was created with.
type Server struct {
	mcp     *mcp.Server
	backend Backend
	apikey  string
	logger  *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Full-text search over one index. Returns ranked documents with their stored fields. Call list_indices first to find index ids.",
	},
	{
		Name:        "get_document",
		Description: "Fetch one stored document by index id and document id.",
	},
	{
		Name:        "index_stats",
		Description: "Schema, document count and counters of one index.",
	},
	{
		Name:        "list_indices",
		Description: "List every index of the account with its id, name and document count.",
	},
}

// NewServer creates an MCP server that reaches the account through backend.
func NewServer(backend Backend, apikey string) (*Server, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if apikey == "" {
		return nil, errors.New("apikey is required")
	}

	s := &Server{
		backend: backend,
		apikey:  apikey,
		logger:  slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with loosely typed arguments and returns
// its markdown rendering.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "search":
		in := SearchInput{IndexID: uintArg(args, "index_id"), Limit: int(uintArg(args, "limit")), Offset: int(uintArg(args, "offset"))}
		in.Query, _ = args["query"].(string)
		in.Realtime, _ = args["realtime"].(bool)
		res, err := s.search(ctx, in)
		if err != nil {
			return "", err
		}
		return FormatSearchResults(in.IndexID, res), nil
	case "get_document":
		indexID, docID := uintArg(args, "index_id"), uintArg(args, "document_id")
		doc, err := s.getDocument(ctx, GetDocumentInput{IndexID: indexID, DocumentID: docID})
		if err != nil {
			return "", err
		}
		return FormatDocument(indexID, docID, doc), nil
	case "index_stats":
		st, err := s.indexStats(ctx, uintArg(args, "index_id"))
		if err != nil {
			return "", err
		}
		return FormatIndexList([]index.Stats{*st}), nil
	case "list_indices":
		list, err := s.listIndices(ctx)
		if err != nil {
			return "", err
		}
		return FormatIndexList(list), nil
	default:
		return "", NewMethodNotFoundError(name)
	}
}

// uintArg reads a JSON number argument. Missing or negative values read as 0.
func uintArg(args map[string]any, key string) uint64 {
	if v, ok := args[key].(float64); ok && v > 0 {
		return uint64(v)
	}
	return 0
}

func (s *Server) search(ctx context.Context, in SearchInput) (*index.SearchResult, error) {
	start := time.Now()
	requestID := generateRequestID()
	req := in.request()

	s.logger.Info("mcp_search_started",
		slog.String("request_id", requestID),
		slog.Uint64("index_id", in.IndexID),
		slog.String("query", in.Query),
		slog.Int("limit", req.Length))

	res, err := s.backend.Search(ctx, s.apikey, in.IndexID, req)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("mcp_search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", res.Count),
		slog.Uint64("count_total", res.CountTotal))
	return res, nil
}

func (s *Server) getDocument(ctx context.Context, in GetDocumentInput) (engine.Document, error) {
	doc, err := s.backend.GetDocument(ctx, s.apikey, in.IndexID, in.DocumentID, index.GetDocumentRequest{Fields: in.Fields})
	if err != nil {
		return nil, MapError(err)
	}
	return doc, nil
}

func (s *Server) indexStats(ctx context.Context, indexID uint64) (*index.Stats, error) {
	st, err := s.backend.IndexStats(ctx, s.apikey, indexID)
	if err != nil {
		return nil, MapError(err)
	}
	return st, nil
}

func (s *Server) listIndices(ctx context.Context) ([]index.Stats, error) {
	list, err := s.backend.ListIndices(ctx, s.apikey)
	if err != nil {
		return nil, MapError(err)
	}
	if list == nil {
		list = []index.Stats{}
	}
	return list, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpGetDocumentHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpIndexStatsHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[3].Name, Description: tools[3].Description}, s.mcpListIndicesHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// mcpSearchHandler returns the page as structured output and as markdown
// text for clients that only read content.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	res, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatSearchResults(input.IndexID, res)}},
	}, toSearchOutput(res), nil
}

func (s *Server) mcpGetDocumentHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetDocumentInput) (
	*mcp.CallToolResult,
	DocumentOutput,
	error,
) {
	doc, err := s.getDocument(ctx, input)
	if err != nil {
		return nil, DocumentOutput{}, err
	}
	return nil, DocumentOutput{DocumentID: input.DocumentID, Document: doc}, nil
}

func (s *Server) mcpIndexStatsHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexStatsInput) (
	*mcp.CallToolResult,
	*index.Stats,
	error,
) {
	st, err := s.indexStats(ctx, input.IndexID)
	if err != nil {
		return nil, nil, err
	}
	return nil, st, nil
}

func (s *Server) mcpListIndicesHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ListIndicesInput) (
	*mcp.CallToolResult,
	ListIndicesOutput,
	error,
) {
	list, err := s.listIndices(ctx)
	if err != nil {
		return nil, ListIndicesOutput{}, err
	}
	return nil, ListIndicesOutput{Indices: list}, nil
}

// Serve runs the server on the given transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp_server_stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
