// Package providers implements the uniform LLM Provider Abstraction (C6):
// one Generate(messages, system?, max_tokens, temperature, tools?) → text
// operation over multiple backends, each also exposing HealthCheck and
// ListModels. Grounded on spec.md §4.6, with per-user model preference
// and quota-exhaustion fallback semantics from
// _examples/original_source/services/model_manager.py's ModelManager
// (discover/set_model/generate) and
// _examples/original_source/providers/gemini_adapter.py's
// QuotaExhaustedError. Concrete adapters wrap the teacher's
// internal/agent/providers (AnthropicProvider, OpenAIProvider) rather
// than re-implementing SDK plumbing — this package only adds the
// non-streaming Generate contract and quota-fallback bookkeeping the
// teacher's streaming agent.LLMProvider doesn't have.
package providers

import (
	"context"
	"errors"
	"fmt"
)

// FunctionSpec mirrors tools.FunctionSpec without importing internal/tools
// (providers must not depend on tools, which may depend on providers via
// toolexec) — duplicated here as the minimal shape a native-function-
// calling backend needs.
type FunctionSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// GenerateRequest is the uniform input to every provider's Generate call.
type GenerateRequest struct {
	Messages    []Message
	System      string
	MaxTokens   int
	Temperature float64
	Tools       []FunctionSpec
	Model       string // empty means "use the provider's default"
}

// Message is a minimal role/content pair; richer turns (tool calls/results)
// are flattened into it: internal/toolexec appends a tool result as a
// Role "system" message whose Content is "[Tool result]\n" plus the
// rendered result, for shim-mode and native-function-calling alike.
type Message struct {
	Role    string
	Content string
}

// GenerateResult is the output of a Generate call, including fallback
// bookkeeping for response-metadata annotation.
type GenerateResult struct {
	Text string

	// FellBackFrom is set when the requested provider/model hit a
	// quota-exhaustion error and Manager silently retried against the
	// configured default instead of erroring, per spec §4.6.
	FellBackFrom string
}

// Provider is one LLM backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	HealthCheck(ctx context.Context) bool
	ListModels() []string
}

// ErrQuotaExhausted is returned (wrapped) by a Provider when the backend
// reports a billing/quota error, distinct from a transient rate limit or
// a hard failure — Manager.Generate treats it as "fall back to default,
// don't error."
var ErrQuotaExhausted = errors.New("provider quota exhausted")

// QuotaError wraps ErrQuotaExhausted with the offending provider/model for
// logging.
type QuotaError struct {
	Provider string
	Model    string
	Cause    error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s (model %s): quota exhausted: %v", e.Provider, e.Model, e.Cause)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExhausted }

// IsQuotaExhausted reports whether err (or anything it wraps) signals
// quota exhaustion.
func IsQuotaExhausted(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}
