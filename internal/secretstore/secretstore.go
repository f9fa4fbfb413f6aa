// Package secretstore implements the Secret collaborator (C12, spec
// §6): `GetSecret(name) -> string`, resolved at startup for any
// `secret:NAME` value in the Tool Server Configuration (spec §4.1) and
// for provider API keys. Grounded on
// original_source/clients/vaultwarden_client.py's HTTP-call shape
// (Bearer-token GET against a `/ciphers?search=NAME` endpoint, first
// match's login password as the value) and its in-memory TTL cache,
// simplified to the single SECRET_STORE_URL/SECRET_STORE_TOKEN pair
// spec.md's environment-variable table names (no client-credential
// token refresh: that flow isn't part of the distilled env surface).
package secretstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when the backend has no cipher matching name.
var ErrNotFound = errors.New("secretstore: secret not found")

// DefaultCacheTTL matches vaultwarden_client.py's 300-second default.
const DefaultCacheTTL = 5 * time.Minute

// Client is a Secret collaborator backed by a Vaultwarden-compatible
// HTTP API.
type Client struct {
	apiURL      string
	accessToken string
	httpClient  *http.Client
	cacheTTL    time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	value   string
	fetched time.Time
}

// New builds a Client. cacheTTL <= 0 falls back to DefaultCacheTTL.
func New(apiURL, accessToken string, cacheTTL time.Duration) *Client {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Client{
		apiURL:      strings.TrimRight(apiURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		cacheTTL:    cacheTTL,
		cache:       make(map[string]cacheEntry),
	}
}

// GetSecret returns the named secret's value, consulting the in-memory
// cache first. The core consumes this as the Secret collaborator
// interface (spec §6); no environment-variable fallback is offered,
// mirroring the Python client's "Vaultwarden-only, no fallback"
// contract.
func (c *Client) GetSecret(ctx context.Context, name string) (string, error) {
	if v, ok := c.cached(name); ok {
		return v, nil
	}

	value, err := c.fetch(ctx, name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.cache[name] = cacheEntry{value: value, fetched: time.Now()}
	c.mu.Unlock()

	return value, nil
}

func (c *Client) cached(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[name]
	if !ok || time.Since(entry.fetched) >= c.cacheTTL {
		return "", false
	}
	return entry.value, true
}

type ciphersResponse struct {
	Data []cipher `json:"data"`
}

type cipher struct {
	Name  string `json:"name"`
	Login struct {
		Password string `json:"password"`
	} `json:"login"`
}

func (c *Client) fetch(ctx context.Context, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/ciphers", nil)
	if err != nil {
		return "", fmt.Errorf("build secret request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	q := req.URL.Query()
	q.Set("search", name)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch secret %q: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch secret %q: unexpected status %d", name, resp.StatusCode)
	}

	var parsed ciphersResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode secret response: %w", err)
	}

	for _, cph := range parsed.Data {
		if cph.Name == name {
			if cph.Login.Password == "" {
				return "", fmt.Errorf("%w: %q has no password field", ErrNotFound, name)
			}
			return cph.Login.Password, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}

// ResolveSecretRef resolves a Tool Server Configuration value of the
// form "secret:NAME" (spec §4.1) to its stored value; any other string
// passes through unchanged.
func (c *Client) ResolveSecretRef(ctx context.Context, value string) (string, error) {
	const prefix = "secret:"
	if !strings.HasPrefix(value, prefix) {
		return value, nil
	}
	return c.GetSecret(ctx, strings.TrimPrefix(value, prefix))
}
