package toolexec

import (
	"context"
	"fmt"
	"time"

	"github.com/earchibald/brainbridge/internal/models"
	"github.com/earchibald/brainbridge/internal/tools"
)

// ToolTimeout bounds a single tool call, matching
// tool_executor.py's TOOL_TIMEOUT_SECONDS.
const ToolTimeout = 15 * time.Second

// ExecuteToolCall looks up and runs one parsed tool call, never
// returning a Go error — unknown tools, disabled tools, timeouts, and
// panics/errors from the tool itself all become a failed
// models.ToolResult, matching tool_executor.py's execute_tool_call.
func ExecuteToolCall(ctx context.Context, registry *tools.Registry, call *models.ToolCall, userID string) models.ToolResult {
	t, ok := registry.Get(call.ToolName)
	if !ok {
		return failResult(call.ToolName, fmt.Sprintf("Unknown tool: %s", call.ToolName))
	}
	if !registry.IsEnabled(userID, call.ToolName) {
		return failResult(call.ToolName, fmt.Sprintf("Tool '%s' is disabled", call.ToolName))
	}

	return runWithTimeout(ctx, t, call, userID)
}

func runWithTimeout(ctx context.Context, t tools.Tool, call *models.ToolCall, userID string) models.ToolResult {
	timeoutCtx, cancel := context.WithTimeout(ctx, ToolTimeout)
	defer cancel()

	type outcome struct {
		result models.ToolResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		res, err := t.Execute(timeoutCtx, userID, call.Arguments)
		done <- outcome{result: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return failResult(call.ToolName, o.err.Error())
		}
		return o.result
	case <-timeoutCtx.Done():
		return failResult(call.ToolName, fmt.Sprintf("Tool '%s' timed out after %.0fs", call.ToolName, ToolTimeout.Seconds()))
	}
}

func failResult(toolName, msg string) models.ToolResult {
	return models.ToolResult{
		ToolName:   toolName,
		Success:    false,
		Error:      msg,
		ExecutedAt: time.Now(),
	}
}
