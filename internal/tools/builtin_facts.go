package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/earchibald/brainbridge/internal/facts"
	"github.com/earchibald/brainbridge/internal/models"
)

// FactsStoreOpener opens (or returns a cached) per-user facts.Store. The
// facts tool is user-scoped: each call resolves its own store for the
// calling user rather than holding a single store instance, mirroring
// UserScopedTool in base_tool.py.
type FactsStoreOpener func(userID string) (*facts.Store, error)

// FactsTool exposes Facts Store CRUD to the LLM: store/get/list/delete/
// clear operations selected by an "operation" argument. Grounded on
// facts_tool.py's FactsTool.
type FactsTool struct {
	open FactsStoreOpener
}

// NewFactsTool builds the facts tool over the given store opener.
func NewFactsTool(open FactsStoreOpener) *FactsTool {
	return &FactsTool{open: open}
}

func (t *FactsTool) Spec() models.Tool {
	return models.Tool{
		Name:        "facts",
		DisplayName: "Facts",
		Description: "Store, retrieve, list, or delete personal facts the user has shared (preferences, health notes, goals, etc).",
		Category:    models.ToolCategoryBuiltin,
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operation": map[string]any{
					"type":        "string",
					"description": "One of: store, get, list, delete, clear_all",
				},
				"key":      map[string]any{"type": "string", "description": "Fact key (for store/get/delete)"},
				"value":    map[string]any{"type": "string", "description": "Fact value (for store)"},
				"category": map[string]any{"type": "string", "description": "Category (for store/list): personal, preferences, health, work, family, goals, context, other"},
			},
			"required": []any{"operation"},
		},
	}
}

func (t *FactsTool) Execute(ctx context.Context, userID string, args map[string]any) (models.ToolResult, error) {
	now := time.Now()
	store, err := t.open(userID)
	if err != nil {
		return models.ToolResult{ToolName: "facts", Success: false, Error: err.Error(), ExecutedAt: now}, nil
	}

	op, _ := args["operation"].(string)
	switch op {
	case "store":
		key, _ := args["key"].(string)
		value, _ := args["value"].(string)
		category, _ := args["category"].(string)
		if key == "" || value == "" {
			return fail("facts", "store requires key and value", now), nil
		}
		result, err := store.Store(key, value, category)
		if err != nil {
			return fail("facts", err.Error(), now), nil
		}
		content := fmt.Sprintf("Stored fact %q = %q", facts.Normalize(key), value)
		if result.WasUpdate {
			content = fmt.Sprintf("Updated fact %q from %q to %q", facts.Normalize(key), result.PrevValue, value)
		}
		return models.ToolResult{ToolName: "facts", Success: true, Content: content, ExecutedAt: now}, nil

	case "get":
		key, _ := args["key"].(string)
		fact, err := store.Get(key)
		if err != nil {
			return models.ToolResult{ToolName: "facts", Success: true, Content: fmt.Sprintf("No fact found for %q", key), ExecutedAt: now}, nil
		}
		return models.ToolResult{ToolName: "facts", Success: true, Content: fmt.Sprintf("%s: %s", fact.Key, fact.Value), Raw: fact, ExecutedAt: now}, nil

	case "list":
		var category *models.FactCategory
		if c, ok := args["category"].(string); ok && c != "" {
			normalized := models.NormalizeCategory(c)
			category = &normalized
		}
		list := store.List(category)
		if len(list) == 0 {
			return models.ToolResult{ToolName: "facts", Success: true, Content: "No facts stored.", ExecutedAt: now}, nil
		}
		var b strings.Builder
		for _, f := range list {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", f.Category, f.Key, f.Value)
		}
		return models.ToolResult{ToolName: "facts", Success: true, Content: b.String(), Raw: list, ExecutedAt: now}, nil

	case "delete":
		key, _ := args["key"].(string)
		deleted, err := store.Delete(key)
		if err != nil {
			return fail("facts", err.Error(), now), nil
		}
		if !deleted {
			return models.ToolResult{ToolName: "facts", Success: true, Content: fmt.Sprintf("No fact found for %q", key), ExecutedAt: now}, nil
		}
		return models.ToolResult{ToolName: "facts", Success: true, Content: fmt.Sprintf("Deleted fact %q", facts.Normalize(key)), ExecutedAt: now}, nil

	case "clear_all":
		count, err := store.ClearAll()
		if err != nil {
			return fail("facts", err.Error(), now), nil
		}
		return models.ToolResult{ToolName: "facts", Success: true, Content: fmt.Sprintf("Cleared %d facts", count), ExecutedAt: now}, nil

	default:
		return fail("facts", fmt.Sprintf("unknown operation %q", op), now), nil
	}
}

func (t *FactsTool) HealthCheck(ctx context.Context) bool { return true }

func fail(tool, msg string, at time.Time) models.ToolResult {
	return models.ToolResult{ToolName: tool, Success: false, Error: msg, ExecutedAt: at}
}
