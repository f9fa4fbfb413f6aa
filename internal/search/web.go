package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/earchibald/brainbridge/internal/tools"
)

// tavilyEndpoint is the fixed REST endpoint web_search_client.py posts
// to for the Tavily provider.
const tavilyEndpoint = "https://api.tavily.com/search"

// TavilyClient implements tools.WebSearchClient against the Tavily
// search API, grounded on web_search_client.py's _search_tavily branch.
// The sibling "duckduckgo" provider in that file goes through the
// Python-only `ddgs` library, which has no equivalent anywhere in the
// retrieval pack — no Go metasearch library is imported by any example
// repo or other_examples/ file — so only the REST (API-key) provider is
// wired here; WEB_SEARCH_PROVIDER's other value is left unimplemented
// rather than fabricating a dependency.
type TavilyClient struct {
	apiKey     string
	httpClient *http.Client
}

// NewTavilyClient builds a client. apiKey comes from WEB_SEARCH_API_KEY
// (spec §6), typically itself resolved via the Secret collaborator.
func NewTavilyClient(apiKey string, httpClient *http.Client) *TavilyClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TavilyClient{apiKey: apiKey, httpClient: httpClient}
}

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

// Search implements tools.WebSearchClient.
func (c *TavilyClient) Search(ctx context.Context, query string, limit int) ([]tools.WebSearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("tavily search: no api key configured")
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:     c.apiKey,
		Query:      query,
		MaxResults: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("encode tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily search: unexpected status %d", resp.StatusCode)
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	out := make([]tools.WebSearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, tools.WebSearchResult{
			Title:        r.Title,
			URL:          r.URL,
			Snippet:      r.Content,
			SourceDomain: extractDomain(r.URL),
		})
	}
	return out, nil
}

func extractDomain(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}

// FormatResults implements tools.WebSearchClient, ported from
// web_search_client.py's format_results: a numbered list of
// "**title**\n  snippet\n  _Source: domain | Retrieved: date_" blocks.
func (c *TavilyClient) FormatResults(results []tools.WebSearchResult, maxSnippetLength int) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n**Web search results:**\n\n")
	today := time.Now().Format("2006-01-02")
	for i, r := range results {
		snippet := r.Snippet
		if maxSnippetLength > 0 && len(snippet) > maxSnippetLength {
			snippet = strings.TrimRight(snippet[:maxSnippetLength], " \t\n") + "..."
		}
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, r.Title)
		fmt.Fprintf(&b, "   %s\n", snippet)
		fmt.Fprintf(&b, "   _Source: %s | Retrieved: %s_\n\n", r.SourceDomain, today)
	}
	return b.String()
}

// HealthCheck implements tools.WebSearchClient by running a throwaway
// query, mirroring web_search_client.py's health_check.
func (c *TavilyClient) HealthCheck(ctx context.Context) bool {
	results, err := c.Search(ctx, "test", 1)
	return err == nil && len(results) > 0
}
