// Package search implements the concrete outbound HTTP clients for the
// Semantic-search and Web-search collaborators declared as interfaces
// in internal/tools/search.go (spec §6). Grounded on
// original_source/clients/semantic_search_client.py (the `GET
// /api/search?q=&limit=` and `/api/health` endpoints) and
// original_source/clients/web_search_client.py's Tavily REST branch.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/earchibald/brainbridge/internal/tools"
)

// SemanticClient implements tools.SemanticSearchClient against the
// ChromaDB-backed semantic-index service named by spec.md's SEARCH_URL
// environment variable.
type SemanticClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSemanticClient builds a client against baseURL (SEARCH_URL).
func NewSemanticClient(baseURL string, httpClient *http.Client) *SemanticClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &SemanticClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

type searchResultWire struct {
	Entry string  `json:"entry"`
	File  string  `json:"file"`
	Score float64 `json:"score"`
}

// Search implements tools.SemanticSearchClient.
func (c *SemanticClient) Search(ctx context.Context, query string, limit int) ([]tools.BrainSearchResult, error) {
	u := c.baseURL + "/api/search?" + url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(limit)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("semantic search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("semantic search: unexpected status %d", resp.StatusCode)
	}

	var wire []searchResultWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]tools.BrainSearchResult, 0, len(wire))
	for _, w := range wire {
		out = append(out, tools.BrainSearchResult{Entry: w.Entry, File: w.File, Score: w.Score})
	}
	return out, nil
}

// HealthCheck implements tools.SemanticSearchClient.
func (c *SemanticClient) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.Status == "healthy" || body.Status == "degraded"
}
