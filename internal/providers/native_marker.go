package providers

import (
	"fmt"

	pkgmodels "github.com/earchibald/brainbridge/pkg/models"
)

// nativeToolCallMarker renders a native function-calling ToolCall chunk
// (as emitted by the teacher's streaming agent.LLMProvider) using the
// same <tool_call>{"tool": ..., "arguments": ...}</tool_call> text that
// shim-mode prompting asks the model to emit, so internal/toolexec's
// single marker-parsing loop drives both native and shim providers
// without caring which one produced the call.
func nativeToolCallMarker(call *pkgmodels.ToolCall) string {
	return fmt.Sprintf(`<tool_call>
{"tool": %q, "arguments": %s}
</tool_call>`, call.Name, rawOrEmptyObject(call.Input))
}

func rawOrEmptyObject(raw []byte) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
