package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/agentfleet/ghtools/internal/gherr"
)

func TestListIssuesSkipsPullRequests(t *testing.T) {
	m := newTestManager(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/octocat/hello-world/issues" {
			w.Header().Set("Content-Type", "application/json")
			// The issues endpoint mixes pull requests into the listing.
			w.Write([]byte(`[
				{"number": 1, "title": "real issue", "state": "open"},
				{"number": 2, "title": "a PR", "state": "open", "pull_request": {"url": "https://example.com"}},
				{"number": 3, "title": "another issue", "state": "open"}
			]`))
			return
		}
		http.NotFound(w, r)
	})
	u := NewUnified(m)

	res := u.Execute(context.Background(), Request{
		Operation:  "list_issues",
		Parameters: map[string]any{"repository": "octocat/hello-world"},
	})

	if !res.Success {
		t.Fatalf("list_issues failed: %v", res.Error)
	}
	issues, _ := res.Output["issues"].([]map[string]any)
	if len(issues) != 2 {
		t.Fatalf("returned %d issues, want 2 (pull request filtered)", len(issues))
	}
	if issues[0]["number"] != 1 || issues[1]["number"] != 3 {
		t.Errorf("issues = %v, want numbers 1 and 3", issues)
	}
	if res.Output["state"] != "open" {
		t.Errorf("state = %v, want open default", res.Output["state"])
	}
}

func TestListIssuesFilterForwarding(t *testing.T) {
	var sawQuery atomic.Value
	m := newTestManager(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/octocat/hello-world/issues" {
			sawQuery.Store(r.URL.Query().Encode())
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[]`))
			return
		}
		http.NotFound(w, r)
	})
	u := NewUnified(m)

	res := u.Execute(context.Background(), Request{
		Operation: "list_issues",
		Parameters: map[string]any{
			"repository": "octocat/hello-world",
			"state":      "closed",
			"labels":     []any{"bug", "p1"},
			"creator":    "hubot",
			"sort":       "updated",
			"direction":  "asc",
			"limit":      5,
		},
	})

	if !res.Success {
		t.Fatalf("list_issues failed: %v", res.Error)
	}
	query, _ := sawQuery.Load().(string)
	for _, want := range []string{"state=closed", "labels=bug%2Cp1", "creator=hubot", "sort=updated", "direction=asc", "per_page=5"} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %q", query, want)
		}
	}
}

func TestGetIssueIncludesBody(t *testing.T) {
	m := newTestManager(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/octocat/hello-world/issues/42" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"number": 42, "title": "t", "body": "full text", "state": "open"}`))
			return
		}
		http.NotFound(w, r)
	})
	u := NewUnified(m)

	res := u.Execute(context.Background(), Request{
		Operation:  "get_issue",
		Parameters: map[string]any{"repository": "octocat/hello-world", "issue_number": 42},
	})

	if !res.Success {
		t.Fatalf("get_issue failed: %v", res.Error)
	}
	issue, _ := res.Output["issue"].(map[string]any)
	if issue["body"] != "full text" {
		t.Errorf("body = %v, want full text", issue["body"])
	}
}

func TestUpdateIssueRequiresChanges(t *testing.T) {
	m := newTestManager(t, nil, nil)
	u := NewUnified(m)

	res := u.Execute(context.Background(), Request{
		Operation:  "update_issue",
		Parameters: map[string]any{"repository": "octocat/hello-world", "issue_number": 1},
	})

	e := requireFailure(t, res, gherr.CodeValidation)
	if e.Message != "No fields to update" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestUpdateIssueClearsBody(t *testing.T) {
	var sawBody atomic.Value
	m := newTestManager(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch && r.URL.Path == "/repos/octocat/hello-world/issues/1" {
			raw, _ := io.ReadAll(r.Body)
			sawBody.Store(string(raw))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"number": 1, "title": "t", "state": "open"}`))
			return
		}
		http.NotFound(w, r)
	})
	u := NewUnified(m)

	// An explicitly empty body means "clear it", distinct from absent.
	res := u.Execute(context.Background(), Request{
		Operation:  "update_issue",
		Parameters: map[string]any{"repository": "octocat/hello-world", "issue_number": 1, "body": ""},
	})

	if !res.Success {
		t.Fatalf("update_issue failed: %v", res.Error)
	}
	var payload map[string]any
	raw, _ := sawBody.Load().(string)
	json.Unmarshal([]byte(raw), &payload)
	if body, present := payload["body"]; !present || body != "" {
		t.Errorf("request payload = %v, want explicit empty body", payload)
	}
}

func TestIssueParameterValidation(t *testing.T) {
	m := newTestManager(t, nil, nil)
	u := NewUnified(m)

	tests := []struct {
		name      string
		operation string
		params    map[string]any
		wantCode  string
	}{
		{
			name:      "missing repository",
			operation: "get_issue",
			params:    map[string]any{"issue_number": 1},
			wantCode:  gherr.CodeMissingParameter,
		},
		{
			name:      "malformed repository",
			operation: "get_issue",
			params:    map[string]any{"repository": "no-slash", "issue_number": 1},
			wantCode:  gherr.CodeValidation,
		},
		{
			name:      "missing issue number",
			operation: "get_issue",
			params:    map[string]any{"repository": "octocat/hello-world"},
			wantCode:  gherr.CodeMissingParameter,
		},
		{
			name:      "missing title on create",
			operation: "create_issue",
			params:    map[string]any{"repository": "octocat/hello-world"},
			wantCode:  gherr.CodeMissingParameter,
		},
		{
			name:      "missing comment body",
			operation: "comment_issue",
			params:    map[string]any{"repository": "octocat/hello-world", "issue_number": 1},
			wantCode:  gherr.CodeMissingParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := u.Execute(context.Background(), Request{Operation: tt.operation, Parameters: tt.params})
			requireFailure(t, res, tt.wantCode)
		})
	}
}
