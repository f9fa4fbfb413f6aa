package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/earchibald/brainbridge/internal/agent"
	agentproviders "github.com/earchibald/brainbridge/internal/agent/providers"
)

// AnthropicProvider adapts the teacher's streaming
// agentproviders.AnthropicProvider to the uniform non-streaming Generate
// contract: it drains the completion channel and concatenates Text
// chunks, translating a billing/quota ProviderError into ErrQuotaExhausted
// so Manager.Generate can fall back instead of erroring.
type AnthropicProvider struct {
	inner        *agentproviders.AnthropicProvider
	defaultModel string
}

// NewAnthropicProvider builds the adapter. apiKey must be non-empty;
// defaultModel falls back to the teacher provider's own default when empty.
func NewAnthropicProvider(apiKey, defaultModel string) (*AnthropicProvider, error) {
	inner, err := agentproviders.NewAnthropicProvider(agentproviders.AnthropicConfig{
		APIKey:       apiKey,
		DefaultModel: defaultModel,
	})
	if err != nil {
		return nil, err
	}
	return &AnthropicProvider{inner: inner, defaultModel: defaultModel}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	creq := &agent.CompletionRequest{
		Model:     model,
		System:    req.System,
		Messages:  toAgentMessages(req.Messages),
		Tools:     toAgentTools(req.Tools),
		MaxTokens: req.MaxTokens,
	}

	chunks, err := p.inner.Complete(ctx, creq)
	if err != nil {
		return "", classifyQuotaError("anthropic", model, err)
	}

	var b strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", classifyQuotaError("anthropic", model, chunk.Error)
		}
		if chunk.ToolCall != nil {
			b.WriteString(nativeToolCallMarker(chunk.ToolCall))
			continue
		}
		b.WriteString(chunk.Text)
	}
	return b.String(), nil
}

func (p *AnthropicProvider) HealthCheck(ctx context.Context) bool {
	_, err := p.Generate(ctx, GenerateRequest{
		Messages:  []Message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	return err == nil
}

func (p *AnthropicProvider) ListModels() []string {
	models := p.inner.Models()
	out := make([]string, 0, len(models))
	for _, m := range models {
		out = append(out, m.ID)
	}
	return out
}

func toAgentMessages(in []Message) []agent.CompletionMessage {
	out := make([]agent.CompletionMessage, 0, len(in))
	for _, m := range in {
		out = append(out, agent.CompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// classifyQuotaError inspects err for the teacher's ProviderError shape
// (errors.go's FailoverBilling reason, which covers billing and quota
// errors) and wraps it as ErrQuotaExhausted when it signals quota
// exhaustion rather than a transient rate limit or a hard failure, per
// spec §4.6's "fall back to default, do not error" rule.
func classifyQuotaError(providerName, model string, err error) error {
	var perr *agentproviders.ProviderError
	if errors.As(err, &perr) {
		if perr.Reason == agentproviders.FailoverBilling {
			return &QuotaError{Provider: providerName, Model: model, Cause: err}
		}
	}
	return err
}
