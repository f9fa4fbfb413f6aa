package tools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/earchibald/brainbridge/internal/facts"
)

func newTestFactsTool(t *testing.T) *FactsTool {
	t.Helper()
	dir := t.TempDir()
	return NewFactsTool(func(userID string) (*facts.Store, error) {
		return facts.NewStore(dir, userID)
	})
}

func TestFactsToolStoreAndGet(t *testing.T) {
	tool := newTestFactsTool(t)
	ctx := context.Background()

	result, err := tool.Execute(ctx, "u1", map[string]any{
		"operation": "store", "key": "coffee", "value": "oat latte",
	})
	if err != nil || !result.Success {
		t.Fatalf("store Execute() = %+v, err = %v", result, err)
	}
	if !strings.Contains(result.Content, "Stored fact") {
		t.Fatalf("unexpected store content: %q", result.Content)
	}

	result, err = tool.Execute(ctx, "u1", map[string]any{"operation": "get", "key": "coffee"})
	if err != nil || !result.Success {
		t.Fatalf("get Execute() = %+v, err = %v", result, err)
	}
	if !strings.Contains(result.Content, "oat latte") {
		t.Fatalf("expected stored value in get result, got %q", result.Content)
	}
}

func TestFactsToolStoreReportsUpdate(t *testing.T) {
	tool := newTestFactsTool(t)
	ctx := context.Background()
	tool.Execute(ctx, "u1", map[string]any{"operation": "store", "key": "coffee", "value": "drip"})

	result, _ := tool.Execute(ctx, "u1", map[string]any{"operation": "store", "key": "coffee", "value": "oat latte"})
	if !strings.Contains(result.Content, "Updated fact") || !strings.Contains(result.Content, "drip") {
		t.Fatalf("expected an update message naming the previous value, got %q", result.Content)
	}
}

func TestFactsToolStoreMissingKeyOrValueFails(t *testing.T) {
	tool := newTestFactsTool(t)
	result, _ := tool.Execute(context.Background(), "u1", map[string]any{"operation": "store", "key": "coffee"})
	if result.Success {
		t.Fatal("expected failure when value is missing")
	}
}

func TestFactsToolGetMissingReturnsFriendlyMessage(t *testing.T) {
	tool := newTestFactsTool(t)
	result, _ := tool.Execute(context.Background(), "u1", map[string]any{"operation": "get", "key": "ghost"})
	if !result.Success || !strings.Contains(result.Content, "No fact found") {
		t.Fatalf("unexpected result for missing fact: %+v", result)
	}
}

func TestFactsToolListEmptyReportsNoFacts(t *testing.T) {
	tool := newTestFactsTool(t)
	result, _ := tool.Execute(context.Background(), "u1", map[string]any{"operation": "list"})
	if !result.Success || result.Content != "No facts stored." {
		t.Fatalf("unexpected empty-list result: %+v", result)
	}
}

func TestFactsToolListFiltersByCategory(t *testing.T) {
	tool := newTestFactsTool(t)
	ctx := context.Background()
	tool.Execute(ctx, "u1", map[string]any{"operation": "store", "key": "birthday", "value": "June", "category": "personal"})
	tool.Execute(ctx, "u1", map[string]any{"operation": "store", "key": "deadline", "value": "Friday", "category": "work"})

	result, _ := tool.Execute(ctx, "u1", map[string]any{"operation": "list", "category": "work"})
	if !strings.Contains(result.Content, "deadline") || strings.Contains(result.Content, "birthday") {
		t.Fatalf("expected list filtered to work category, got %q", result.Content)
	}
}

func TestFactsToolDeleteAndClearAll(t *testing.T) {
	tool := newTestFactsTool(t)
	ctx := context.Background()
	tool.Execute(ctx, "u1", map[string]any{"operation": "store", "key": "coffee", "value": "oat latte"})

	result, _ := tool.Execute(ctx, "u1", map[string]any{"operation": "delete", "key": "coffee"})
	if !result.Success || !strings.Contains(result.Content, "Deleted fact") {
		t.Fatalf("unexpected delete result: %+v", result)
	}

	tool.Execute(ctx, "u1", map[string]any{"operation": "store", "key": "a", "value": "1"})
	tool.Execute(ctx, "u1", map[string]any{"operation": "store", "key": "b", "value": "2"})
	result, _ = tool.Execute(ctx, "u1", map[string]any{"operation": "clear_all"})
	if !strings.Contains(result.Content, "Cleared 2 facts") {
		t.Fatalf("unexpected clear_all result: %q", result.Content)
	}
}

func TestFactsToolUnknownOperationFails(t *testing.T) {
	tool := newTestFactsTool(t)
	result, _ := tool.Execute(context.Background(), "u1", map[string]any{"operation": "explode"})
	if result.Success {
		t.Fatal("expected failure for an unknown operation")
	}
}

func TestFactsToolSpecAndHealthCheck(t *testing.T) {
	tool := newTestFactsTool(t)
	if tool.Spec().Name != "facts" {
		t.Fatalf("unexpected spec name: %q", tool.Spec().Name)
	}
	if !tool.HealthCheck(context.Background()) {
		t.Fatal("expected the facts tool to always report healthy")
	}
}

func TestFactsToolOpenErrorSurfacesAsFailure(t *testing.T) {
	tool := NewFactsTool(func(userID string) (*facts.Store, error) {
		return facts.NewStore(filepath.Join(string([]byte{0}), "bad"), userID)
	})
	result, err := tool.Execute(context.Background(), "u1", map[string]any{"operation": "list"})
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil Go error", err)
	}
	if result.Success {
		t.Fatal("expected failure when the store can't be opened")
	}
}
