package mcp

import "testing"

func TestToolSummariesNilManagerReturnsNil(t *testing.T) {
	if got := ToolSummaries(nil); got != nil {
		t.Fatalf("expected nil summaries for a nil manager, got %+v", got)
	}
}

func TestToolSummariesIncludesToolsAndBridgedCapabilities(t *testing.T) {
	mgr := NewManager(&Config{}, nil)
	mgr.clients["docs"] = &Client{
		config: &ServerConfig{ID: "docs"},
		tools:  []*MCPTool{{Name: "search", Description: "search docs"}},
	}

	summaries := ToolSummaries(mgr)

	var sawTool, sawResourceList, sawPromptGet bool
	for _, s := range summaries {
		switch {
		case s.Name == "mcp_docs_search":
			sawTool = true
			if s.Description != "search docs" || s.Source != "mcp" || s.Namespace != "docs" {
				t.Fatalf("unexpected tool summary: %+v", s)
			}
		case s.Canonical == canonicalResourceList("docs"):
			sawResourceList = true
		case s.Canonical == canonicalPromptGet("docs"):
			sawPromptGet = true
		}
	}
	if !sawTool {
		t.Fatal("expected a summary for the registered MCP tool")
	}
	if !sawResourceList {
		t.Fatal("expected a bridged resources_list summary")
	}
	if !sawPromptGet {
		t.Fatal("expected a bridged prompt_get summary")
	}
}

func TestToolSummariesEmptyManagerReturnsEmpty(t *testing.T) {
	mgr := NewManager(&Config{}, nil)
	summaries := ToolSummaries(mgr)
	if len(summaries) != 0 {
		t.Fatalf("expected no summaries for a manager with no servers, got %+v", summaries)
	}
}

func TestToolSummaryFromToolNilToolReturnsZeroValue(t *testing.T) {
	got := toolSummaryFromTool(nil, "mcp", "docs", "docs.resources_list")
	if got.Name != "" || got.Source != "" {
		t.Fatalf("expected zero value for a nil tool, got %+v", got)
	}
}
