// Package gherr defines the error taxonomy shared by the manager and
// the tool layer. Every failure that crosses the tool boundary is one
// of these coded errors; the dispatcher converts them into the uniform
// result envelope instead of letting them escape.
package gherr

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes surfaced to callers.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeMissingParameter   = "MISSING_PARAMETER"
	CodeAuthentication     = "AUTHENTICATION_ERROR"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeRepositoryNotFound = "REPOSITORY_NOT_FOUND"
	CodeRateLimit          = "RATE_LIMIT_EXCEEDED"
	CodeAPIError           = "GITHUB_API_ERROR"
	CodeToolExecution      = "TOOL_EXECUTION_ERROR"
	CodeCannotCancel       = "CANNOT_CANCEL"
	CodeCannotRerun        = "CANNOT_RERUN"
)

// Error is a coded tool error. It marshals directly into the error
// half of the result envelope.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *Error) Error() string {
	return e.Message
}

// Validation reports malformed call-level input.
func Validation(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Code: CodeValidation}
}

// MissingParameter reports absent required parameters.
func MissingParameter(names ...string) *Error {
	suffix := "parameter is required"
	if len(names) > 1 {
		suffix = "parameters are required"
	}
	return &Error{
		Message: fmt.Sprintf("%s %s", strings.Join(names, ", "), suffix),
		Code:    CodeMissingParameter,
	}
}

// Authentication reports a missing or invalid credential.
func Authentication(message string) *Error {
	if message == "" {
		message = "GitHub authentication failed"
	}
	return &Error{Message: message, Code: CodeAuthentication}
}

// Permission reports an operation denied by the allow-list or by the
// API.
func Permission(message string) *Error {
	return &Error{Message: message, Code: CodePermissionDenied}
}

// RepositoryNotFound reports a missing or inaccessible repository.
func RepositoryNotFound(repository string) *Error {
	return &Error{
		Message: fmt.Sprintf("Repository not found or not accessible: %s", repository),
		Code:    CodeRepositoryNotFound,
	}
}

// RateLimit reports API rate-limit exhaustion.
func RateLimit(resetTime string) *Error {
	if resetTime == "" {
		resetTime = "unknown"
	}
	return &Error{
		Message: fmt.Sprintf("GitHub API rate limit exceeded. Resets at: %s", resetTime),
		Code:    CodeRateLimit,
	}
}

// APIError reports an unclassified GitHub API failure.
func APIError(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Code: CodeAPIError}
}

// CannotCancel reports a workflow run whose state rules out
// cancellation.
func CannotCancel(runID int) *Error {
	return &Error{
		Message: fmt.Sprintf("Workflow run %d cannot be cancelled in its current state", runID),
		Code:    CodeCannotCancel,
	}
}

// CannotRerun reports a workflow run whose state rules out a re-run.
func CannotRerun(runID int) *Error {
	return &Error{
		Message: fmt.Sprintf("Workflow run %d cannot be re-run in its current state", runID),
		Code:    CodeCannotRerun,
	}
}

// ToolExecution reports an unexpected failure caught at the dispatch
// boundary.
func ToolExecution(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Code: CodeToolExecution}
}

// From coerces any error into a coded Error. Already-coded errors
// pass through unchanged; everything else becomes a
// TOOL_EXECUTION_ERROR.
func From(err error) *Error {
	var coded *Error
	if errors.As(err, &coded) {
		return coded
	}
	return ToolExecution("Unexpected error: %v", err)
}
