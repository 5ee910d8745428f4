package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/agentfleet/ghtools/internal/config"
	"github.com/agentfleet/ghtools/internal/ghauth"
	"github.com/agentfleet/ghtools/internal/manager"
	"github.com/agentfleet/ghtools/internal/tools"
	"github.com/agentfleet/ghtools/internal/web"
)

var (
	loadDotEnv         = godotenv.Load
	defaultListenServe = http.ListenAndServe
)

func main() {
	if err := run(context.Background(), defaultListenServe); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(ctx context.Context, serve func(string, http.Handler) error) error {
	// Load .env file (ignore error if file doesn't exist)
	_ = loadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log.Printf("Starting GitHub tools server...")
	log.Printf("Port: %d", cfg.Port)
	log.Printf("Base URL: %s", cfg.BaseURL)
	if len(cfg.Repositories) > 0 {
		log.Printf("Configured repositories: %d", len(cfg.Repositories))
	}

	m := manager.New(cfg, ghauth.NewResolver())
	if err := m.Start(ctx); err != nil {
		return fmt.Errorf("failed to start GitHub session: %w", err)
	}
	defer m.Stop()

	unified := tools.NewUnified(m)
	log.Printf("Registered %d operations", len(unified.Registry().Operations()))

	handler := web.NewHandler(unified, m)

	r := mux.NewRouter()
	handler.RegisterRoutes(r)

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Root endpoint with info
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"service":"ghtools","status":"running","authenticated":%t}`, m.Authenticated())
	}).Methods("GET")

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Server listening on %s", addr)
	log.Printf("Execute endpoint: http://localhost%s/v1/execute", addr)
	log.Printf("Operations list: http://localhost%s/v1/operations", addr)

	if err := serve(addr, r); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}
