package mcpadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
	"github.com/kirillkom/patent-pod-intake/internal/core/ports"
)

const serverName = "patent-pod-intake"

// Tools exposes the application read model to MCP clients.
type Tools struct {
	apps   ports.ApplicationReader
	logger *slog.Logger
}

func NewTools(apps ports.ApplicationReader, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{apps: apps, logger: logger}
}

// NewServer registers list_applications, get_application and archive_application.
func NewServer(tools *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("list_applications",
		mcp.WithDescription("List patent applications with their predicted classification and filing dates."),
		mcp.WithString("owner_id", mcp.Description("Owner whose applications are listed. Omitted means unowned applications only.")),
		mcp.WithBoolean("archived", mcp.Description("List archived applications instead of active ones.")),
	), tools.ListApplications)

	s.AddTool(mcp.NewTool("get_application",
		mcp.WithDescription("Fetch one application with its committed points of distinction and intake state."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Application id.")),
		mcp.WithString("owner_id", mcp.Description("Owner the application must belong to.")),
	), tools.GetApplication)

	s.AddTool(mcp.NewTool("archive_application",
		mcp.WithDescription("Archive an application. Points of distinction are kept."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Application id.")),
		mcp.WithString("owner_id", mcp.Description("Owner the application must belong to.")),
	), tools.ArchiveApplication)

	return s
}

type listResult struct {
	Applications []domain.Application `json:"applications"`
}

type archiveResult struct {
	ID       string `json:"id"`
	Archived bool   `json:"archived"`
}

func (t *Tools) ListApplications(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	apps, err := t.apps.List(ctx, domain.ApplicationFilter{
		OwnerID:  strings.TrimSpace(req.GetString("owner_id", "")),
		Archived: req.GetBool("archived", false),
	})
	if err != nil {
		return t.toolError("list_applications", err)
	}
	return mcp.NewToolResultJSON(listResult{Applications: apps})
}

func (t *Tools) GetApplication(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := t.apps.Get(ctx, strings.TrimSpace(req.GetString("owner_id", "")), id)
	if err != nil {
		return t.toolError("get_application", err)
	}
	return mcp.NewToolResultJSON(view)
}

func (t *Tools) ArchiveApplication(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := t.apps.Archive(ctx, strings.TrimSpace(req.GetString("owner_id", "")), id); err != nil {
		return t.toolError("archive_application", err)
	}
	return mcp.NewToolResultJSON(archiveResult{ID: id, Archived: true})
}

// toolError reports domain failures to the client as tool errors and keeps
// protocol errors for everything the caller cannot act on.
func (t *Tools) toolError(tool string, err error) (*mcp.CallToolResult, error) {
	switch {
	case domain.IsKind(err, domain.ErrApplicationNotFound),
		domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrInvalidState):
		return mcp.NewToolResultError(err.Error()), nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	}
	t.logger.Error("mcp_tool_failed", "tool", tool, "error", err)
	return mcp.NewToolResultError("internal error"), nil
}
