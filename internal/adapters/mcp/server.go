package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
	"github.com/kirillkom/domain-knowledge-rag/internal/core/ports"
)

const (
	ToolAnswer    = "knowledge_answer"
	ToolDocuments = "knowledge_documents"
)

// Tools exposes the knowledge base to MCP clients.
type Tools struct {
	chat      ports.ChatService
	documents ports.DocumentService
	logger    *slog.Logger
}

func NewTools(chat ports.ChatService, documents ports.DocumentService, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{chat: chat, documents: documents, logger: logger}
}

func NewServer(tools *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"domain-knowledge-rag",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool(ToolAnswer,
		mcp.WithDescription("Answer a question from a domain's knowledge base and cite the matching snippets."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question to answer.")),
		mcp.WithString("domain", mcp.Description("Customer domain or host; empty uses the global index.")),
		mcp.WithString("locale", mcp.Description("Answer locale such as de or en.")),
	), tools.Answer)

	s.AddTool(mcp.NewTool(ToolDocuments,
		mcp.WithDescription("List the documents uploaded for a domain, newest first."),
		mcp.WithString("domain", mcp.Required(), mcp.Description("Customer domain or host.")),
	), tools.Documents)

	return s
}

func (t *Tools) Answer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := t.chat.Answer(ctx, question, request.GetString("locale", ""), request.GetString("domain", ""))
	if err != nil {
		return t.toolError(ToolAnswer, err)
	}
	return jsonResult(resp)
}

func (t *Tools) Documents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	domainName, err := request.RequireString("domain")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docs, err := t.documents.ListDocuments(ctx, domainName)
	if err != nil {
		return t.toolError(ToolDocuments, err)
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return jsonResult(map[string]any{"documents": docs})
}

// toolError reports caller mistakes and missing data to the client as tool
// errors; anything else fails the call.
func (t *Tools) toolError(tool string, err error) (*mcp.CallToolResult, error) {
	if domain.IsKind(err, domain.ErrInvalidInput) || domain.IsKind(err, domain.ErrNotFound) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t.logger.Error("mcp_tool_failed", "tool", tool, "error", err)
	return nil, fmt.Errorf("%s: %w", tool, err)
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
