package ghauth

import (
	"context"
	"os/exec"
)

// CommandRunner is an interface for executing system commands.
// This abstraction allows mocking the gh CLI in tests.
type CommandRunner interface {
	// Run executes a command and returns its standard output. The
	// context bounds the process lifetime; on expiry the process is
	// killed and the context error returned.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RealCommandRunner is the production implementation using os/exec.
type RealCommandRunner struct{}

// Run executes a command using exec.CommandContext.
func (r *RealCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}

// MockCommandRunner is a test implementation that returns predefined
// responses and records invocations.
type MockCommandRunner struct {
	// RunFunc is called when Run is invoked
	RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

	// Calls tracks all command invocations
	Calls []MockCall
}

// MockCall represents a single command invocation.
type MockCall struct {
	Name string
	Args []string
}

// Run executes the mock function.
func (m *MockCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.Calls = append(m.Calls, MockCall{Name: name, Args: args})

	if m.RunFunc != nil {
		return m.RunFunc(ctx, name, args...)
	}

	return []byte(""), nil
}

// NewMockCommandRunner creates a new mock with default behavior.
func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{
		Calls: make([]MockCall, 0),
	}
}
