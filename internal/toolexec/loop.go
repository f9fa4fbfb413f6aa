package toolexec

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/earchibald/brainbridge/internal/providers"
	"github.com/earchibald/brainbridge/internal/tools"
)

// GenerateFn is the single-turn completion call the tool loop drives,
// matching tool_executor.py's generate_fn(messages) -> str contract.
type GenerateFn func(ctx context.Context, messages []providers.Message) (string, error)

// ToolExecutor drives the shim-mode tool loop against a tool Registry,
// grounded on tool_executor.py's ToolExecutor.
type ToolExecutor struct {
	registry *tools.Registry
	logger   *slog.Logger
}

// NewToolExecutor builds a ToolExecutor over the given tool registry.
func NewToolExecutor(registry *tools.Registry, logger *slog.Logger) *ToolExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolExecutor{registry: registry, logger: logger.With("component", "tool_executor")}
}

// BuildShimPrompt returns the shim-mode system-prompt addendum for
// userID, or "" if the user has no enabled tools — matching
// build_shim_system_prompt's empty-descriptions short-circuit.
func (e *ToolExecutor) BuildShimPrompt(userID string) string {
	descriptions := e.registry.PromptDescriptions(userID)
	if descriptions == "" {
		return ""
	}
	return fmt.Sprintf(ShimSystemTemplate, descriptions)
}

// BuildNativeSpecs returns native-function-calling specs for userID,
// delegating to the Registry exactly as tool_executor.py's
// build_native_specs delegates to registry.get_function_specs.
func (e *ToolExecutor) BuildNativeSpecs(userID string) []tools.FunctionSpec {
	return e.registry.FunctionSpecs(userID)
}

// RunShimLoop drives the tool loop: call generate, look for a
// <tool_call> marker, execute it and fold the result back into the
// message list, repeat up to maxRounds; after exhausting rounds make one
// final unconditional generate call. Matches
// tool_executor.py's ToolExecutor.run_tool_loop.
//
// This single loop also drives native-function-calling providers: the
// internal/providers Anthropic/OpenAI adapters render a native ToolCall
// chunk using the identical <tool_call>...</tool_call> marker text that
// shim-mode prompting asks for, so ParseMarker sees the same shape
// either way and the executor never needs a separate native code path.
func (e *ToolExecutor) RunShimLoop(ctx context.Context, messages []providers.Message, userID string, generate GenerateFn, maxRounds int) (string, error) {
	if maxRounds <= 0 {
		maxRounds = MaxToolRounds
	}

	for round := 0; round < maxRounds; round++ {
		response, err := generate(ctx, messages)
		if err != nil {
			return "", err
		}

		call, found := ParseMarker(response)
		if !found {
			return response, nil
		}

		result := ExecuteToolCall(ctx, e.registry, call, userID)

		cleanResponse := strings.TrimSpace(strings.Replace(response, call.RawMarker, "", 1))
		if cleanResponse != "" {
			messages = append(messages, providers.Message{Role: "assistant", Content: cleanResponse})
		}
		messages = append(messages, providers.Message{
			Role:    "system",
			Content: "[Tool result]\n" + result.ToContextString(),
		})
	}

	e.logger.Warn("tool loop hit max rounds without a final answer", "max_rounds", maxRounds)
	return generate(ctx, messages)
}
