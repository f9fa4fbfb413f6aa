package tools

import "context"

// BrainSearchResult is one hit from the semantic-search collaborator.
type BrainSearchResult struct {
	Entry string
	File  string
	Score float64
}

// SemanticSearchClient is the outbound interface to the semantic-index
// service (spec §6): `GET /api/search?q=&limit=` → [{entry, file,
// score}]. Indexing/embedding/vector-store internals are out of scope —
// the core only consumes this RPC.
type SemanticSearchClient interface {
	Search(ctx context.Context, query string, limit int) ([]BrainSearchResult, error)
	HealthCheck(ctx context.Context) bool
}

// WebSearchResult is one hit from the web-search collaborator.
type WebSearchResult struct {
	Title        string
	URL          string
	Snippet      string
	SourceDomain string
}

// WebSearchClient is the outbound interface to a web-search provider
// (spec §6): either a metasearch library call or a remote REST provider.
type WebSearchClient interface {
	Search(ctx context.Context, query string, limit int) ([]WebSearchResult, error)
	FormatResults(results []WebSearchResult, maxSnippetLength int) string
	HealthCheck(ctx context.Context) bool
}
