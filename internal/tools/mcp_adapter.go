package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/earchibald/brainbridge/internal/mcp"
	"github.com/earchibald/brainbridge/internal/models"
)

// MCPToolAdapter wraps one tool discovered via an MCP server's tools/list
// as a tools.Tool, so it can be registered alongside builtin tools and
// called uniformly by the pipeline/executor. Grounded on
// mcp_tool_adapter.py's MCPToolAdapter; the mcp_{server}_{tool} name
// convention is unchanged from the original, and the category is
// "remote".
type MCPToolAdapter struct {
	serverName  string
	mcpToolName string
	description string
	schema      map[string]any
	caller      mcp.ToolCaller
}

// NewMCPToolAdapter builds one adapter from a discovered MCPTool and the
// ToolCaller (the mcp.Client) that owns it.
func NewMCPToolAdapter(serverName string, tool *mcp.MCPTool, caller mcp.ToolCaller) *MCPToolAdapter {
	schema := map[string]any{"type": "object", "properties": map[string]any{}}
	if len(tool.InputSchema) > 0 {
		var decoded map[string]any
		if err := json.Unmarshal(tool.InputSchema, &decoded); err == nil {
			schema = decoded
		}
	}
	return &MCPToolAdapter{
		serverName:  serverName,
		mcpToolName: tool.Name,
		description: tool.Description,
		schema:      schema,
		caller:      caller,
	}
}

func (a *MCPToolAdapter) Spec() models.Tool {
	description := a.description
	if description == "" {
		description = fmt.Sprintf("MCP tool: %s", a.mcpToolName)
	}
	return models.Tool{
		Name:             fmt.Sprintf("mcp_%s_%s", a.serverName, a.mcpToolName),
		DisplayName:      fmt.Sprintf("[%s] %s", a.serverName, a.mcpToolName),
		Description:      description,
		Category:         models.ToolCategoryRemote,
		ParametersSchema: a.schema,
	}
}

func (a *MCPToolAdapter) Execute(ctx context.Context, userID string, args map[string]any) (models.ToolResult, error) {
	name := a.Spec().Name
	now := time.Now()

	result, err := a.caller.CallTool(ctx, a.mcpToolName, args)
	if err != nil {
		slog.Default().Error("mcp tool execution failed", "tool", name, "error", err)
		return models.ToolResult{ToolName: name, Success: false, Error: err.Error(), ExecutedAt: now}, nil
	}

	var parts []string
	for _, block := range result.Content {
		switch block.Type {
		case "text", "":
			parts = append(parts, block.Text)
		case "image":
			mimeType := block.MimeType
			if mimeType == "" {
				mimeType = "image"
			}
			parts = append(parts, fmt.Sprintf("[Image: %s]", mimeType))
		case "resource":
			parts = append(parts, fmt.Sprintf("[Resource]\n%s", block.Text))
		default:
			parts = append(parts, fmt.Sprintf("[%s: %s]", block.Type, block.Text))
		}
	}

	return models.ToolResult{
		ToolName:   name,
		Success:    !result.IsError,
		Content:    strings.Join(parts, "\n"),
		Raw:        result,
		ExecutedAt: now,
	}, nil
}

func (a *MCPToolAdapter) HealthCheck(ctx context.Context) bool {
	return a.caller.Connected()
}

// MCPRegistryBridge implements mcp.ToolsetListener, wiring an
// internal/mcp.Manager's tool discovery/loss events into a
// tools.Registry: on connect every discovered tool is wrapped in an
// MCPToolAdapter and registered; on disconnect every mcp_{server}_*
// entry is unregistered. Grounded on mcp_manager.py's _register_tools /
// _unregister_server_tools, adapted here to the registry-notified-by-
// adapters pattern (avoids an internal/mcp → internal/tools import).
type MCPRegistryBridge struct {
	registry *Registry
	logger   *slog.Logger

	serverTools map[string][]string
}

// NewMCPRegistryBridge builds a bridge that registers discovered MCP
// tools into registry.
func NewMCPRegistryBridge(registry *Registry, logger *slog.Logger) *MCPRegistryBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &MCPRegistryBridge{
		registry:    registry,
		logger:      logger.With("component", "mcp_registry_bridge"),
		serverTools: make(map[string][]string),
	}
}

// OnServerTools registers every tool discovered on an MCP server
// connect/reconnect, replacing whatever that server previously
// contributed.
func (b *MCPRegistryBridge) OnServerTools(serverID string, toolList []*mcp.MCPTool, caller mcp.ToolCaller) {
	b.unregisterServer(serverID)

	names := make([]string, 0, len(toolList))
	for _, t := range toolList {
		adapter := NewMCPToolAdapter(serverID, t, caller)
		if err := b.registry.Register(adapter); err != nil {
			b.logger.Warn("failed to register mcp tool", "server", serverID, "tool", t.Name, "error", err)
			continue
		}
		names = append(names, adapter.Spec().Name)
	}
	b.serverTools[serverID] = names
	b.logger.Info("registered mcp server tools", "server", serverID, "count", len(names))
}

// OnServerDisconnected removes every tool that server had contributed.
func (b *MCPRegistryBridge) OnServerDisconnected(serverID string) {
	b.unregisterServer(serverID)
}

func (b *MCPRegistryBridge) unregisterServer(serverID string) {
	for _, name := range b.serverTools[serverID] {
		b.registry.Unregister(name)
	}
	delete(b.serverTools, serverID)
}
