package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/earchibald/brainbridge/internal/agent"
)

// specTool adapts a FunctionSpec to agent.Tool so native function-calling
// providers can advertise tool schemas. Execute is never invoked: the
// provider's Complete only reads Name/Description/Schema to build the
// API-side tool declarations; actual dispatch happens in
// internal/toolexec's round loop, one Generate call at a time.
type specTool struct {
	spec FunctionSpec
}

func (t specTool) Name() string        { return t.spec.Name }
func (t specTool) Description() string { return t.spec.Description }

func (t specTool) Schema() json.RawMessage {
	params := t.spec.Parameters
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return encoded
}

func (t specTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return nil, fmt.Errorf("specTool %q is schema-only and is never executed directly", t.spec.Name)
}

func toAgentTools(specs []FunctionSpec) []agent.Tool {
	if len(specs) == 0 {
		return nil
	}
	out := make([]agent.Tool, 0, len(specs))
	for _, s := range specs {
		out = append(out, specTool{spec: s})
	}
	return out
}
