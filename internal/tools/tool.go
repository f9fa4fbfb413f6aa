// Package tools implements the Tool Registry and per-user enable/disable
// state (spec §4.4, C4), plus the builtin tool set (facts, brain search,
// web search). Grounded on
// _examples/original_source/slack_bot/tools/tool_registry.py (register-
// overwrites-on-collision, get_enabled_tools_for_llm's skill-category
// exclusion), base_tool.py (the Tool/ToolResult shape), and tool_state.py
// (per-user enable map). The teacher's internal/agent/tool_registry.go
// contributes the Go idiom (RWMutex-guarded map, size limits on tool
// name/params).
package tools

import (
	"context"

	"github.com/earchibald/brainbridge/internal/models"
)

// MaxToolNameLength bounds a registered tool's name, mirroring the
// teacher's internal/agent/tool_registry.go guard.
const MaxToolNameLength = 256

// Tool is the behavior every registry entry must provide. Builtin tools,
// skills, and MCP adapters all implement this uniformly.
type Tool interface {
	Spec() models.Tool
	Execute(ctx context.Context, userID string, args map[string]any) (models.ToolResult, error)
	HealthCheck(ctx context.Context) bool
}
