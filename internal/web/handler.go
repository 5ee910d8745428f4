// Package web exposes the tool dispatcher over HTTP for hosts that
// integrate via REST instead of MCP.
package web

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/agentfleet/ghtools/internal/gherr"
	"github.com/agentfleet/ghtools/internal/manager"
	"github.com/agentfleet/ghtools/internal/tools"
)

// Handler handles tool execution requests.
type Handler struct {
	unified *tools.Unified
	m       *manager.Manager
}

// NewHandler creates a new web handler.
func NewHandler(unified *tools.Unified, m *manager.Manager) *Handler {
	return &Handler{unified: unified, m: m}
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/execute", h.handleExecute).Methods("POST")
	r.HandleFunc("/v1/operations", h.handleOperations).Methods("GET")
	r.HandleFunc("/v1/operations/{name}/schema", h.handleSchema).Methods("GET")
	r.HandleFunc("/v1/ratelimit", h.handleRateLimit).Methods("GET")
}

// rawRequest defers parameter decoding so a non-object parameters
// field can be reported as a validation error instead of a bare 400.
type rawRequest struct {
	Operation  string          `json:"operation"`
	Parameters json.RawMessage `json:"parameters"`
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	var raw rawRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeResult(w, tools.Fail(gherr.Validation("Invalid request body: %v", err)))
		return
	}

	req := tools.Request{Operation: raw.Operation}
	if len(raw.Parameters) > 0 {
		if err := json.Unmarshal(raw.Parameters, &req.Parameters); err != nil {
			writeResult(w, tools.Fail(gherr.Validation("parameters must be an object")))
			return
		}
	}

	writeResult(w, h.unified.Execute(r.Context(), req))
}

func (h *Handler) handleOperations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"operations": h.unified.Registry().Describe(),
	})
}

func (h *Handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	schema := h.unified.Registry().Schema(name)
	if schema == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown operation: " + name})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"operation": name,
		"schema":    schema,
	})
}

func (h *Handler) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	info, err := h.m.RateLimit(r.Context())
	if err != nil {
		writeResult(w, tools.Fail(err))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// writeResult always answers 200: success/failure travels in the
// envelope, not the HTTP status.
func writeResult(w http.ResponseWriter, result tools.Result) {
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[Web] Failed to encode response: %v", err)
	}
}
