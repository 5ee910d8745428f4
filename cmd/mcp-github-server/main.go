package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentfleet/ghtools/internal/config"
	"github.com/agentfleet/ghtools/internal/ghauth"
	"github.com/agentfleet/ghtools/internal/manager"
	"github.com/agentfleet/ghtools/internal/tools"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[MCP GitHub Server] Failed to load configuration: %v", err)
	}

	// An MCP server owns stdio; never prompt on it.
	cfg.PromptIfMissing = false

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := manager.New(cfg, ghauth.NewResolver())
	if err := m.Start(ctx); err != nil {
		log.Fatalf("[MCP GitHub Server] Failed to start GitHub session: %v", err)
	}
	defer m.Stop()

	unified := tools.NewUnified(m)

	log.Println("[MCP GitHub Server] Starting GitHub MCP Server v1.0.0")
	log.Printf("[MCP GitHub Server] Authenticated: %t", m.Authenticated())
	log.Printf("[MCP GitHub Server] Operations: %d", len(unified.Registry().Operations()))

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "github-tools-server",
		Version: "v1.0.0",
	}, nil)

	tool := &mcp.Tool{
		Name:        "github",
		Description: toolDescription(unified),
	}
	mcp.AddTool(server, tool, NewGitHubHandler(unified))
	log.Println("[MCP GitHub Server] Registered tool: github")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[MCP GitHub Server] Received shutdown signal")
		cancel()
	}()

	log.Println("[MCP GitHub Server] Starting on stdio transport...")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatalf("[MCP GitHub Server] Server error: %v", err)
	}
	log.Println("[MCP GitHub Server] Server stopped gracefully")
}
