package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
	"github.com/Aman-CERP/textdex/internal/mapper"
	"github.com/Aman-CERP/textdex/internal/schema"
	"github.com/Aman-CERP/textdex/internal/service"
	"github.com/Aman-CERP/textdex/internal/telemetry"
	"github.com/Aman-CERP/textdex/pkg/version"
)

// ServerName is reported to clients during initialization.
const ServerName = "textdex"

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Indices is the subset of the index service the server exposes.
type Indices interface {
	Search(ctx context.Context, name, text string) ([]mapper.Record, error)
	GroupBy(ctx context.Context, name, field, text string) ([]string, error)
	ListIndices() ([]service.IndexInfo, error)
	GetMapping(name string) (*schema.Schema, error)
	IndexDocuments(ctx context.Context, name string, docs []mapper.Document) (*service.IndexReport, error)
	QueryMetrics() *telemetry.Snapshot
}

var _ Indices = (*service.Service)(nil)

// Server is the MCP server for textdex.
type Server struct {
	mcp     *mcp.Server
	indices Indices
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
		Description: "Search a named index with a query string (field:term, phrases, AND/OR/NOT, numeric ranges such as year:>=1960). Returns the top ranked records with their stored fields.",
	},
	{
		Name:        "group_by",
		Description: "Return the distinct values of a string field among the records of an index matching a query. Use it to discover categories before searching.",
	},
	{
		Name:        "list_indices",
		Description: "List every index with its lifecycle state, document count and whether it has a field mapping.",
	},
	{
		Name:        "get_mapping",
		Description: "Return the field mapping of an index: field names, types and which fields are indexed, stored or primary.",
	},
	{
		Name:        "index_documents",
		Description: "Add JSON documents to a mapped index. Documents that do not match the mapping are reported and skipped.",
	},
}

// NewServer creates a new MCP server over indices.
func NewServer(indices Indices) (*Server, error) {
	if indices == nil {
		return nil, errors.New("index service is required")
	}

	s := &Server{
		indices: indices,
		logger:  slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

// CallTool invokes the named tool with JSON-like arguments, as a client
// request would.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		return callWith(ctx, args, s.mcpSearchHandler)
	case "group_by":
		return callWith(ctx, args, s.mcpGroupByHandler)
	case "list_indices":
		return callWith(ctx, args, s.mcpListIndicesHandler)
	case "get_mapping":
		return callWith(ctx, args, s.mcpGetMappingHandler)
	case "index_documents":
		return callWith(ctx, args, s.mcpIndexDocumentsHandler)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func callWith[In, Out any](ctx context.Context, args map[string]any,
	h func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error),
) (any, error) {
	var in In
	if len(args) > 0 {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, NewInvalidParamsError(err.Error())
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
		}
	}
	_, out, err := h(ctx, nil, in)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, toolDef("search"), s.mcpSearchHandler)
	mcp.AddTool(s.mcp, toolDef("group_by"), s.mcpGroupByHandler)
	mcp.AddTool(s.mcp, toolDef("list_indices"), s.mcpListIndicesHandler)
	mcp.AddTool(s.mcp, toolDef("get_mapping"), s.mcpGetMappingHandler)
	mcp.AddTool(s.mcp, toolDef("index_documents"), s.mcpIndexDocumentsHandler)
	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

func toolDef(name string) *mcp.Tool {
	for _, t := range tools {
		if t.Name == name {
			return &mcp.Tool{Name: t.Name, Description: t.Description}
		}
	}
	panic("mcp: unknown tool " + name)
}

func requireIndex(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewInvalidParamsError("index parameter is required")
	}
	return nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}

// mcpSearchHandler is the MCP SDK handler for the search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if err := requireIndex(input.Index); err != nil {
		return nil, SearchOutput{}, err
	}
	limit := clampLimit(input.Limit)

	start := time.Now()
	requestID := generateRequestID()
	records, err := s.indices.Search(ctx, input.Index, input.Query)
	if err != nil {
		s.logger.Warn("search failed",
			slog.String("request_id", requestID),
			slog.String("index", input.Index),
			txerrors.LogAttr(err))
		return nil, SearchOutput{}, MapError(err)
	}
	if len(records) > limit {
		records = records[:limit]
	}

	output := SearchOutput{Records: make([]map[string]any, 0, len(records))}
	for _, r := range records {
		output.Records = append(output.Records, map[string]any(r))
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.String("index", input.Index),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(output.Records)))
	return nil, output, nil
}

// mcpGroupByHandler is the MCP SDK handler for the group_by tool.
func (s *Server) mcpGroupByHandler(ctx context.Context, _ *mcp.CallToolRequest, input GroupByInput) (
	*mcp.CallToolResult,
	GroupByOutput,
	error,
) {
	if err := requireIndex(input.Index); err != nil {
		return nil, GroupByOutput{}, err
	}
	if strings.TrimSpace(input.Field) == "" {
		return nil, GroupByOutput{}, NewInvalidParamsError("field parameter is required")
	}

	keys, err := s.indices.GroupBy(ctx, input.Index, input.Field, input.Query)
	if err != nil {
		return nil, GroupByOutput{}, MapError(err)
	}
	if keys == nil {
		keys = []string{}
	}
	return nil, GroupByOutput{Keys: keys}, nil
}

// mcpListIndicesHandler is the MCP SDK handler for the list_indices tool.
func (s *Server) mcpListIndicesHandler(_ context.Context, _ *mcp.CallToolRequest, _ ListIndicesInput) (
	*mcp.CallToolResult,
	ListIndicesOutput,
	error,
) {
	infos, err := s.indices.ListIndices()
	if err != nil {
		return nil, ListIndicesOutput{}, MapError(err)
	}

	output := ListIndicesOutput{Indices: make([]IndexOutput, 0, len(infos))}
	for _, info := range infos {
		output.Indices = append(output.Indices, IndexOutput{
			Name:      info.Name,
			State:     info.State,
			Documents: info.Documents,
			Mapped:    info.Mapped,
		})
	}
	return nil, output, nil
}

// mcpGetMappingHandler is the MCP SDK handler for the get_mapping tool.
func (s *Server) mcpGetMappingHandler(_ context.Context, _ *mcp.CallToolRequest, input GetMappingInput) (
	*mcp.CallToolResult,
	GetMappingOutput,
	error,
) {
	if err := requireIndex(input.Index); err != nil {
		return nil, GetMappingOutput{}, err
	}

	sc, err := s.indices.GetMapping(input.Index)
	if err != nil {
		return nil, GetMappingOutput{}, MapError(err)
	}

	output := GetMappingOutput{Fields: make([]FieldOutput, 0, len(sc.Fields))}
	for _, f := range sc.Fields {
		output.Fields = append(output.Fields, FieldOutput{
			Name:    f.Name,
			Type:    f.Type.String(),
			Indexed: f.Indexed,
			Stored:  f.Stored,
			Primary: f.Primary,
		})
	}
	return nil, output, nil
}

// mcpIndexDocumentsHandler is the MCP SDK handler for the index_documents tool.
func (s *Server) mcpIndexDocumentsHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexDocumentsInput) (
	*mcp.CallToolResult,
	IndexDocumentsOutput,
	error,
) {
	if err := requireIndex(input.Index); err != nil {
		return nil, IndexDocumentsOutput{}, err
	}
	if len(input.Documents) == 0 {
		return nil, IndexDocumentsOutput{}, NewInvalidParamsError("documents parameter must contain at least one document")
	}

	docs := make([]mapper.Document, len(input.Documents))
	for i, d := range input.Documents {
		docs[i] = mapper.Document(d)
	}

	report, err := s.indices.IndexDocuments(ctx, input.Index, docs)
	if err != nil {
		return nil, IndexDocumentsOutput{}, MapError(err)
	}

	output := IndexDocumentsOutput{Indexed: report.Indexed, Failed: report.Failed}
	for _, r := range report.Results {
		if r.Err != nil {
			output.Errors = append(output.Errors, DocumentError{Position: r.Position, Error: r.Error})
		}
	}
	return nil, output, nil
}

// Serve runs the server over stdio until ctx is done or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("Starting MCP server", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped gracefully")
	return nil
}

// generateRequestID creates a short random ID for request correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
