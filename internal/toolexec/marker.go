// Package toolexec implements the Tool Executor (C5): parses shim-mode
// tool-call markers from LLM output, executes tools with a timeout
// guard, and drives the multi-round tool loop for both shim-mode (marker
// parsing) and native-function-calling providers. Grounded on
// _examples/original_source/slack_bot/tools/tool_executor.py.
package toolexec

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/earchibald/brainbridge/internal/models"
)

// MaxToolRounds bounds the shim-mode tool loop, matching
// tool_executor.py's MAX_TOOL_ROUNDS.
const MaxToolRounds = 5

// markerPattern matches a well-formed <tool_call>...</tool_call> block,
// tolerating surrounding whitespace.
var markerPattern = regexp.MustCompile(`(?s)<tool_call>\s*(.*?)\s*</tool_call>`)

// markerOpenPattern matches an unterminated <tool_call> block (the LLM
// forgot the closing tag) by taking everything to end of string.
var markerOpenPattern = regexp.MustCompile(`(?s)<tool_call>\s*(.*)`)

// ParseMarker extracts the first <tool_call> marker from text, if any,
// as a models.ToolCall with RawMarker set to the exact matched substring
// (so callers can strip it back out of the display response). Matches
// tool_executor.py's parse_shim_tool_call: malformed JSON or a missing
// tool name both yield (nil, false) rather than an error — a parse
// failure just means "no tool call was made."
func ParseMarker(text string) (*models.ToolCall, bool) {
	match := markerPattern.FindStringSubmatch(text)
	var rawMarker, body string
	if match != nil {
		rawMarker, body = match[0], strings.TrimSpace(match[1])
	} else if openMatch := markerOpenPattern.FindStringSubmatch(text); openMatch != nil {
		rawMarker, body = openMatch[0], strings.TrimSpace(openMatch[1])
	} else {
		return nil, false
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		slog.Default().Warn("failed to parse tool call JSON", "body", truncate(body, 200))
		return nil, false
	}

	toolName, _ := data["tool"].(string)
	if toolName == "" {
		toolName, _ = data["name"].(string)
	}
	if toolName == "" {
		slog.Default().Warn("tool call marker missing tool name", "data", data)
		return nil, false
	}

	arguments, ok := data["arguments"].(map[string]any)
	if !ok {
		arguments, ok = data["params"].(map[string]any)
	}
	if !ok {
		arguments = map[string]any{}
	}

	return &models.ToolCall{ToolName: toolName, Arguments: arguments, RawMarker: rawMarker}, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ShimSystemTemplate is the exact instruction block injected ahead of
// the tool-description list in shim mode, matching
// tool_executor.py's SHIM_SYSTEM_TEMPLATE.
const ShimSystemTemplate = `To use a tool, output EXACTLY this format (one tool per response):
<tool_call>
{"tool": "tool_name", "arguments": {"key": "value"}}
</tool_call>
Only call one tool per response. If no tool is needed, respond normally.

Available tools:
%s`
