package models

import "encoding/json"

// ToolSummary is a UI- and API-facing snapshot of a registered tool's
// metadata, regardless of whether it came from the core registry, an MCP
// server, or an edge runner.
type ToolSummary struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
	Source      string          `json:"source"`
	Namespace   string          `json:"namespace,omitempty"`
	Canonical   string          `json:"canonical,omitempty"`
}
