// Package notify implements the Notify collaborator (C12, spec §6):
// `Notify(title, message, priority)`. Grounded on
// original_source/agent_platform.py's `notify()` method, generalized
// from its `subprocess.run(["/usr/local/bin/notify.sh", ...])` shell-out
// to an HTTP POST against an ntfy-compatible topic endpoint — spec's
// Non-goals keep the Go core free of subprocess shelling out, and
// NOTIFY_TOPIC (spec §6's env var table) names a topic, not a script
// path, so an HTTP publish is the natural fit.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// DefaultPriority matches agent_platform.py's notify() default.
const DefaultPriority = "default"

// Client posts notifications to an ntfy-compatible HTTP topic endpoint.
type Client struct {
	baseURL    string // e.g. https://ntfy.sh or a self-hosted instance
	topic      string
	httpClient *http.Client
}

// New builds a Client. baseURL should not include the topic path.
func New(baseURL, topic string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		topic:      topic,
		httpClient: httpClient,
	}
}

// Notify publishes title/message at DefaultPriority. Failures are
// non-fatal by contract (agent_platform.py wraps its notify() call in a
// bare try/except and logs a warning on failure) — callers should log
// rather than propagate a failure into user-facing control flow.
func (c *Client) Notify(ctx context.Context, title, message string) error {
	return c.NotifyWithPriority(ctx, title, message, DefaultPriority)
}

// NotifyWithPriority publishes with an explicit ntfy priority
// (min/low/default/high/urgent).
func (c *Client) NotifyWithPriority(ctx context.Context, title, message, priority string) error {
	if priority == "" {
		priority = DefaultPriority
	}
	url := fmt.Sprintf("%s/%s", c.baseURL, c.topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build notify request: %w", err)
	}
	req.Header.Set("Title", title)
	req.Header.Set("Priority", priority)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("send notification: unexpected status %d", resp.StatusCode)
	}
	return nil
}
