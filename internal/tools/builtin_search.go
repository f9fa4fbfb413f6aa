package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/earchibald/brainbridge/internal/models"
	"github.com/earchibald/brainbridge/internal/sourcetrack"
)

// minRelevanceScore filters out low-confidence semantic-search hits while
// always keeping at least the top result, so a query with only weak
// matches still surfaces something. Grounded on brain_search_tool.py's
// min_relevance_score default (0.7) and spec.md §4.8's filter threshold.
const minRelevanceScore = 0.7

// defaultSearchLimit bounds how many hits a single call requests from the
// collaborator absent an explicit "limit" argument.
const defaultSearchLimit = 5

// BrainSearchTool searches the user's personal knowledge base (notes,
// journal entries, prior brain-dumps) via semantic similarity. Grounded
// on brain_search_tool.py's BrainSearchTool.
type BrainSearchTool struct {
	client SemanticSearchClient
}

// NewBrainSearchTool wraps a SemanticSearchClient as an LLM-callable tool.
func NewBrainSearchTool(client SemanticSearchClient) *BrainSearchTool {
	return &BrainSearchTool{client: client}
}

func (t *BrainSearchTool) Spec() models.Tool {
	return models.Tool{
		Name:        "brain_search",
		DisplayName: "Brain Search",
		Description: "Search the user's personal knowledge base for relevant notes, journal entries, or past brain-dumps.",
		Category:    models.ToolCategoryBuiltin,
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Search query"},
				"limit": map[string]any{"type": "integer", "description": "Max results (default 5)"},
			},
			"required": []any{"query"},
		},
	}
}

func (t *BrainSearchTool) Execute(ctx context.Context, userID string, args map[string]any) (models.ToolResult, error) {
	now := time.Now()
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return fail("brain_search", "query is required", now), nil
	}

	limit := defaultSearchLimit
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	results, err := t.client.Search(ctx, query, limit)
	if err != nil {
		if tracker := sourcetrack.FromContext(ctx); tracker != nil {
			tracker.RecordSource("brain_search", false, nil, nil)
		}
		return fail("brain_search", err.Error(), now), nil
	}

	filtered := filterByRelevance(results)
	if len(filtered) == 0 {
		if tracker := sourcetrack.FromContext(ctx); tracker != nil {
			tracker.RecordSource("brain_search", true, nil, nil)
		}
		return models.ToolResult{ToolName: "brain_search", Success: true, Content: "No matching entries found.", ExecutedAt: now}, nil
	}

	var b strings.Builder
	sources := make([]string, 0, len(filtered))
	snippets := make([]string, 0, len(filtered))
	for _, r := range filtered {
		fmt.Fprintf(&b, "- (%s, score %.2f) %s\n", r.File, r.Score, r.Entry)
		sources = append(sources, r.File)
		snippets = append(snippets, r.Entry)
	}

	if tracker := sourcetrack.FromContext(ctx); tracker != nil {
		tracker.RecordSource("brain_search", true, sources, snippets)
	}

	return models.ToolResult{ToolName: "brain_search", Success: true, Content: b.String(), Raw: filtered, ExecutedAt: now}, nil
}

func (t *BrainSearchTool) HealthCheck(ctx context.Context) bool {
	return t.client.HealthCheck(ctx)
}

// filterByRelevance drops hits below minRelevanceScore, but always keeps
// the single best hit even if it falls short, so a weak-but-best match
// is never silently discarded.
func filterByRelevance(results []BrainSearchResult) []BrainSearchResult {
	if len(results) == 0 {
		return results
	}
	out := make([]BrainSearchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= minRelevanceScore {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		best := results[0]
		for _, r := range results[1:] {
			if r.Score > best.Score {
				best = r
			}
		}
		out = append(out, best)
	}
	return out
}

// webSearchMaxSnippetLength bounds how much of each web result's snippet
// is kept when formatting, matching web_search_tool.py's default.
const webSearchMaxSnippetLength = 500

// WebSearchTool searches the public web. A thin wrapper delegating result
// formatting entirely to the WebSearchClient collaborator, grounded on
// web_search_tool.py's WebSearchTool.
type WebSearchTool struct {
	client WebSearchClient
}

// NewWebSearchTool wraps a WebSearchClient as an LLM-callable tool.
func NewWebSearchTool(client WebSearchClient) *WebSearchTool {
	return &WebSearchTool{client: client}
}

func (t *WebSearchTool) Spec() models.Tool {
	return models.Tool{
		Name:        "web_search",
		DisplayName: "Web Search",
		Description: "Search the public web for current information not available in the conversation or knowledge base.",
		Category:    models.ToolCategoryBuiltin,
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Search query"},
				"limit": map[string]any{"type": "integer", "description": "Max results (default 5)"},
			},
			"required": []any{"query"},
		},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, userID string, args map[string]any) (models.ToolResult, error) {
	now := time.Now()
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return fail("web_search", "query is required", now), nil
	}

	limit := defaultSearchLimit
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	results, err := t.client.Search(ctx, query, limit)
	if err != nil {
		if tracker := sourcetrack.FromContext(ctx); tracker != nil {
			tracker.RecordSource("web_search", false, nil, nil)
		}
		return fail("web_search", err.Error(), now), nil
	}

	if len(results) == 0 {
		if tracker := sourcetrack.FromContext(ctx); tracker != nil {
			tracker.RecordSource("web_search", true, nil, nil)
		}
		return models.ToolResult{ToolName: "web_search", Success: true, Content: "No results found.", ExecutedAt: now}, nil
	}

	content := t.client.FormatResults(results, webSearchMaxSnippetLength)

	if tracker := sourcetrack.FromContext(ctx); tracker != nil {
		sources := make([]string, 0, len(results))
		snippets := make([]string, 0, len(results))
		for _, r := range results {
			sources = append(sources, r.URL)
			snippets = append(snippets, r.Snippet)
		}
		tracker.RecordSource("web_search", true, sources, snippets)
	}

	return models.ToolResult{ToolName: "web_search", Success: true, Content: content, Raw: results, ExecutedAt: now}, nil
}

func (t *WebSearchTool) HealthCheck(ctx context.Context) bool {
	return t.client.HealthCheck(ctx)
}
