package tools

import "github.com/agentfleet/ghtools/internal/gherr"

// Result is the uniform envelope every operation returns. Exactly one
// of Output/Error is meaningful depending on Success.
type Result struct {
	Success bool           `json:"success"`
	Output  map[string]any `json:"output,omitempty"`
	Error   *gherr.Error   `json:"error,omitempty"`
}

// OK wraps a successful output.
func OK(output map[string]any) Result {
	return Result{Success: true, Output: output}
}

// Fail wraps any error into a failed result, coercing uncoded errors
// into TOOL_EXECUTION_ERROR.
func Fail(err error) Result {
	return Result{Success: false, Error: gherr.From(err)}
}
