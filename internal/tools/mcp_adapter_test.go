package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/earchibald/brainbridge/internal/mcp"
)

type fakeToolCaller struct {
	result    *mcp.ToolCallResult
	err       error
	connected bool
}

func (f *fakeToolCaller) CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.ToolCallResult, error) {
	return f.result, f.err
}
func (f *fakeToolCaller) Connected() bool { return f.connected }

func TestMCPToolAdapterSpecUsesNamespacedName(t *testing.T) {
	tool := &mcp.MCPTool{Name: "echo", Description: "echoes input", InputSchema: json.RawMessage(`{"type":"object"}`)}
	adapter := NewMCPToolAdapter("myserver", tool, &fakeToolCaller{})

	spec := adapter.Spec()
	if spec.Name != "mcp_myserver_echo" {
		t.Fatalf("unexpected spec name: %q", spec.Name)
	}
	if spec.Description != "echoes input" {
		t.Fatalf("unexpected description: %q", spec.Description)
	}
	if spec.Category != "remote" {
		t.Fatalf("unexpected category: %q", spec.Category)
	}
}

func TestMCPToolAdapterSpecDefaultsDescriptionWhenMissing(t *testing.T) {
	tool := &mcp.MCPTool{Name: "echo"}
	adapter := NewMCPToolAdapter("myserver", tool, &fakeToolCaller{})
	if adapter.Spec().Description != "MCP tool: echo" {
		t.Fatalf("unexpected default description: %q", adapter.Spec().Description)
	}
}

func TestMCPToolAdapterExecuteSuccessJoinsTextBlocks(t *testing.T) {
	caller := &fakeToolCaller{result: &mcp.ToolCallResult{
		Content: []mcp.ToolResultContent{{Type: "text", Text: "hello"}, {Type: "text", Text: "world"}},
	}}
	adapter := NewMCPToolAdapter("myserver", &mcp.MCPTool{Name: "echo"}, caller)

	result, err := adapter.Execute(context.Background(), "u1", map[string]any{})
	if err != nil || !result.Success {
		t.Fatalf("Execute() = %+v, err = %v", result, err)
	}
	if result.Content != "hello\nworld" {
		t.Fatalf("unexpected content: %q", result.Content)
	}
}

func TestMCPToolAdapterExecuteFormatsImageAndResourceBlocks(t *testing.T) {
	caller := &fakeToolCaller{result: &mcp.ToolCallResult{
		Content: []mcp.ToolResultContent{
			{Type: "image", MimeType: "image/png"},
			{Type: "resource", Text: "resource body"},
		},
	}}
	adapter := NewMCPToolAdapter("myserver", &mcp.MCPTool{Name: "render"}, caller)

	result, _ := adapter.Execute(context.Background(), "u1", map[string]any{})
	if result.Content != "[Image: image/png]\n[Resource]\nresource body" {
		t.Fatalf("unexpected content: %q", result.Content)
	}
}

func TestMCPToolAdapterExecuteCallerErrorReturnsFailedResult(t *testing.T) {
	caller := &fakeToolCaller{err: errors.New("boom")}
	adapter := NewMCPToolAdapter("myserver", &mcp.MCPTool{Name: "echo"}, caller)

	result, err := adapter.Execute(context.Background(), "u1", map[string]any{})
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil Go error", err)
	}
	if result.Success || result.Error != "boom" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestMCPToolAdapterExecuteIsErrorFlagMarksFailure(t *testing.T) {
	caller := &fakeToolCaller{result: &mcp.ToolCallResult{IsError: true, Content: []mcp.ToolResultContent{{Type: "text", Text: "failed"}}}}
	adapter := NewMCPToolAdapter("myserver", &mcp.MCPTool{Name: "echo"}, caller)

	result, _ := adapter.Execute(context.Background(), "u1", map[string]any{})
	if result.Success {
		t.Fatal("expected IsError to mark the tool result as unsuccessful")
	}
}

func TestMCPToolAdapterHealthCheckDelegatesToCaller(t *testing.T) {
	adapter := NewMCPToolAdapter("myserver", &mcp.MCPTool{Name: "echo"}, &fakeToolCaller{connected: true})
	if !adapter.HealthCheck(context.Background()) {
		t.Fatal("expected HealthCheck to delegate to the caller's Connected()")
	}
}

func TestMCPRegistryBridgeRegistersAndUnregistersOnDisconnect(t *testing.T) {
	store := newTestStateStore(t)
	registry := NewRegistry(store, nil)
	bridge := NewMCPRegistryBridge(registry, nil)

	tools := []*mcp.MCPTool{{Name: "echo"}, {Name: "ping"}}
	bridge.OnServerTools("myserver", tools, &fakeToolCaller{connected: true})

	if _, ok := registry.Get("mcp_myserver_echo"); !ok {
		t.Fatal("expected mcp_myserver_echo to be registered")
	}
	if _, ok := registry.Get("mcp_myserver_ping"); !ok {
		t.Fatal("expected mcp_myserver_ping to be registered")
	}

	bridge.OnServerDisconnected("myserver")
	if _, ok := registry.Get("mcp_myserver_echo"); ok {
		t.Fatal("expected tools to be unregistered on disconnect")
	}
}

func TestMCPRegistryBridgeReconnectReplacesToolSet(t *testing.T) {
	store := newTestStateStore(t)
	registry := NewRegistry(store, nil)
	bridge := NewMCPRegistryBridge(registry, nil)

	bridge.OnServerTools("myserver", []*mcp.MCPTool{{Name: "old"}}, &fakeToolCaller{})
	bridge.OnServerTools("myserver", []*mcp.MCPTool{{Name: "new"}}, &fakeToolCaller{})

	if _, ok := registry.Get("mcp_myserver_old"); ok {
		t.Fatal("expected the stale tool from the previous connect to be gone")
	}
	if _, ok := registry.Get("mcp_myserver_new"); !ok {
		t.Fatal("expected the new tool to be registered")
	}
}
