// Package tools turns the GitHub API into a registry of named
// operations behind a single dispatch entry point. Every operation
// takes a parameter bag and returns the uniform Result envelope; the
// unified dispatcher layers validation, @me normalization, allow-list
// enforcement, and cross-repository fan-out on top.
package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool is one named GitHub operation.
type Tool interface {
	Name() string
	Description() string
	InputSchema() *jsonschema.Schema
	Execute(ctx context.Context, params map[string]any) Result
}

// opTool is the single Tool implementation: a registry entry binding
// a name and schema to a handler closure.
type opTool struct {
	name        string
	description string
	schema      *jsonschema.Schema
	run         func(ctx context.Context, params map[string]any) Result
}

func (t *opTool) Name() string                    { return t.name }
func (t *opTool) Description() string             { return t.description }
func (t *opTool) InputSchema() *jsonschema.Schema { return t.schema }
func (t *opTool) Execute(ctx context.Context, params map[string]any) Result {
	return t.run(ctx, params)
}

// repositoryScoped reports whether the operation declares a
// repository parameter, which is what subjects it to the allow-list.
func repositoryScoped(t Tool) bool {
	schema := t.InputSchema()
	if schema == nil || schema.Properties == nil {
		return false
	}
	_, ok := schema.Properties["repository"]
	return ok
}
