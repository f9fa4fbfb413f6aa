package tools

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/earchibald/brainbridge/internal/models"
)

// Registry holds a single mutable name→Tool index. Registration
// overwrites on name collision (how an MCP server's reconnect refreshes
// its tools); the Executor only ever reads. Grounded on
// tool_registry.py's ToolRegistry.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	state  *StateStore
	logger *slog.Logger
}

// NewRegistry creates an empty registry backed by the given per-user
// enable/disable state store.
func NewRegistry(state *StateStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		state:  state,
		logger: logger.With("component", "tool_registry"),
	}
}

// Register adds or replaces a tool by name. A collision is logged, not
// an error — this is how reconnecting tool servers refresh their tools.
func (r *Registry) Register(t Tool) error {
	spec := t.Spec()
	if spec.Name == "" {
		return fmt.Errorf("tool has no name")
	}
	if len(spec.Name) > MaxToolNameLength {
		return fmt.Errorf("tool name %q exceeds max length %d", spec.Name, MaxToolNameLength)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[spec.Name]; exists {
		r.logger.Warn("tool registration overwrites existing entry", "tool", spec.Name)
	}
	r.tools[spec.Name] = t
	return nil
}

// Unregister removes a tool by name. No-op if absent.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools, sorted by name for stable output.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Spec().Name < out[j].Spec().Name
	})
	return out
}

// EnabledForLLM returns the tools a given user's LLM turn may call:
// everything except category=="skill" tools (hidden from user-facing
// enable/disable surfaces but still LLM-callable — see skill handling
// below) and anything explicitly disabled for this user.
//
// Per spec §4.4: skills are LLM-callable but hidden from *enable/disable*
// surfaces; they are NOT excluded from the LLM's tool list. Grounded on
// tool_registry.py's get_enabled_tools_for_llm, which excludes
// category=="skill" from is_enabled lookups (skills are always enabled)
// while still returning them to the LLM.
func (r *Registry) EnabledForLLM(userID string) []Tool {
	all := r.List()
	out := make([]Tool, 0, len(all))
	for _, t := range all {
		spec := t.Spec()
		if spec.Category == models.ToolCategorySkill {
			out = append(out, t)
			continue
		}
		if r.state != nil && !r.state.IsEnabled(userID, spec.Name) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// IsEnabled reports per-user enable state for management UIs (category
// "skill" tools always report enabled, matching EnabledForLLM).
func (r *Registry) IsEnabled(userID, toolName string) bool {
	t, ok := r.Get(toolName)
	if ok && t.Spec().Category == models.ToolCategorySkill {
		return true
	}
	if r.state == nil {
		return true
	}
	return r.state.IsEnabled(userID, toolName)
}

// SetEnabled toggles per-user tool state.
func (r *Registry) SetEnabled(userID, toolName string, enabled bool) error {
	if r.state == nil {
		return fmt.Errorf("registry has no state store")
	}
	return r.state.SetEnabled(userID, toolName, enabled)
}

// FunctionSpec is the OpenAI-function-calling JSON shape for one tool.
type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// FunctionSpecs returns native-function-calling specs for every tool
// enabled for userID.
func (r *Registry) FunctionSpecs(userID string) []FunctionSpec {
	enabled := r.EnabledForLLM(userID)
	out := make([]FunctionSpec, 0, len(enabled))
	for _, t := range enabled {
		spec := t.Spec()
		out = append(out, FunctionSpec{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.ParametersSchema,
		})
	}
	return out
}

// PromptDescriptions renders a human-readable tool block for shim-mode
// providers: one paragraph per tool naming its parameters with
// required/optional markers.
func (r *Registry) PromptDescriptions(userID string) string {
	enabled := r.EnabledForLLM(userID)
	if len(enabled) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Available tools:\n")
	for _, t := range enabled {
		spec := t.Spec()
		fmt.Fprintf(&b, "- %s: %s\n", spec.Name, spec.Description)
		params, _ := spec.ParametersSchema["properties"].(map[string]any)
		required := requiredSet(spec.ParametersSchema)
		for name, def := range params {
			marker := "optional"
			if required[name] {
				marker = "required"
			}
			desc := ""
			if m, ok := def.(map[string]any); ok {
				if d, ok := m["description"].(string); ok {
					desc = d
				}
			}
			fmt.Fprintf(&b, "    %s (%s): %s\n", name, marker, desc)
		}
	}
	return b.String()
}

func requiredSet(schema map[string]any) map[string]bool {
	out := map[string]bool{}
	req, _ := schema["required"].([]any)
	for _, r := range req {
		if s, ok := r.(string); ok {
			out[s] = true
		}
	}
	return out
}
