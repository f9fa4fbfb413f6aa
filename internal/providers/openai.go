package providers

import (
	"context"
	"strings"

	"github.com/earchibald/brainbridge/internal/agent"
	agentproviders "github.com/earchibald/brainbridge/internal/agent/providers"
)

// OpenAIProvider adapts the teacher's streaming
// agentproviders.OpenAIProvider to the uniform non-streaming Generate
// contract, mirroring AnthropicProvider.
type OpenAIProvider struct {
	inner        *agentproviders.OpenAIProvider
	defaultModel string
}

// NewOpenAIProvider builds the adapter over the given API key.
func NewOpenAIProvider(apiKey, defaultModel string) *OpenAIProvider {
	if defaultModel == "" {
		defaultModel = "gpt-4o"
	}
	return &OpenAIProvider{
		inner:        agentproviders.NewOpenAIProvider(apiKey),
		defaultModel: defaultModel,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
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
		return "", classifyQuotaError("openai", model, err)
	}

	var b strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", classifyQuotaError("openai", model, chunk.Error)
		}
		if chunk.ToolCall != nil {
			b.WriteString(nativeToolCallMarker(chunk.ToolCall))
			continue
		}
		b.WriteString(chunk.Text)
	}
	return b.String(), nil
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) bool {
	_, err := p.Generate(ctx, GenerateRequest{
		Messages:  []Message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	return err == nil
}

func (p *OpenAIProvider) ListModels() []string {
	models := p.inner.Models()
	out := make([]string, 0, len(models))
	for _, m := range models {
		out = append(out, m.ID)
	}
	return out
}
