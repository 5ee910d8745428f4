package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentfleet/ghtools/internal/tools"
)

// GitHubParams defines the input parameters for the unified tool.
type GitHubParams struct {
	Operation  string         `json:"operation" jsonschema:"The GitHub operation to perform"`
	Parameters map[string]any `json:"parameters" jsonschema:"Parameters for the specific operation (schema varies by operation)"`
}

// NewGitHubHandler returns the MCP tool handler bound to the
// dispatcher.
func NewGitHubHandler(unified *tools.Unified) func(context.Context, *mcp.CallToolRequest, GitHubParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, params GitHubParams) (*mcp.CallToolResult, any, error) {
		log.Printf("[MCP GitHub Server] Received operation: %s", params.Operation)

		result := unified.Execute(ctx, tools.Request{
			Operation:  params.Operation,
			Parameters: params.Parameters,
		})

		payload, err := json.Marshal(result)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode result: %w", err)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: string(payload)},
			},
			IsError: !result.Success,
		}, nil, nil
	}
}

// toolDescription renders the tool description with the operation
// catalog appended so agents can discover the surface.
func toolDescription(unified *tools.Unified) string {
	var b strings.Builder
	b.WriteString("Interact with GitHub repositories and resources. When repositories are configured, ")
	b.WriteString("list operations can query across ALL configured repos automatically. Otherwise, specify a ")
	b.WriteString("repository parameter to target a specific repo. Supports operations for issues, PRs, ")
	b.WriteString("commits, branches, workflows, releases, and more.\n\nOperations:\n")
	for _, op := range unified.Registry().Operations() {
		fmt.Fprintf(&b, "- %s\n", op)
	}
	return b.String()
}
