package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/agentfleet/ghtools/internal/config"
	"github.com/agentfleet/ghtools/internal/gherr"
	"github.com/agentfleet/ghtools/internal/ghauth"
	"github.com/agentfleet/ghtools/internal/manager"
)

// newTestManager starts an authenticated manager against a fake GitHub
// API. The handler sees paths with the /api/v3 enterprise prefix
// stripped; /user is answered automatically.
func newTestManager(t *testing.T, repositories []string, handler func(w http.ResponseWriter, r *http.Request)) *manager.Manager {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = strings.TrimPrefix(r.URL.Path, "/api/v3")
		if r.URL.Path == "/user" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"login":"octocat"}`))
			return
		}
		if handler == nil {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Port:         8000,
		Token:        "ghp_test",
		BaseURL:      server.URL,
		Repositories: repositories,
	}
	m := manager.New(cfg, &ghauth.Resolver{Runner: ghauth.NewMockCommandRunner()})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("manager start failed: %v", err)
	}
	t.Cleanup(m.Stop)
	return m
}

func newUnauthenticatedManager(t *testing.T) *manager.Manager {
	t.Helper()
	for _, name := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	cfg := &config.Config{Port: 8000, BaseURL: "https://api.github.com"}
	m := manager.New(cfg, &ghauth.Resolver{Runner: ghauth.NewMockCommandRunner()})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("manager start failed: %v", err)
	}
	return m
}

func requireFailure(t *testing.T, res Result, code string) *gherr.Error {
	t.Helper()
	if res.Success {
		t.Fatalf("expected failure, got success with output %v", res.Output)
	}
	if res.Error == nil {
		t.Fatal("failure result carries no error")
	}
	if res.Error.Code != code {
		t.Fatalf("error code = %s, want %s (message: %s)", res.Error.Code, code, res.Error.Message)
	}
	return res.Error
}

func TestExecuteMissingOperation(t *testing.T) {
	u := NewUnified(newUnauthenticatedManager(t))

	res := u.Execute(context.Background(), Request{})

	e := requireFailure(t, res, gherr.CodeValidation)
	if e.Message != "Missing required field: operation" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestExecuteUnknownOperation(t *testing.T) {
	u := NewUnified(newUnauthenticatedManager(t))

	res := u.Execute(context.Background(), Request{Operation: "frobnicate"})

	e := requireFailure(t, res, gherr.CodeValidation)
	if !strings.Contains(e.Message, "Unknown operation: frobnicate") {
		t.Errorf("message = %q, want unknown-operation text", e.Message)
	}
	// The catalog is embedded so agents can self-correct.
	if !strings.Contains(e.Message, "list_issues") || !strings.Contains(e.Message, "trigger_workflow") {
		t.Errorf("message = %q, want available operations listed", e.Message)
	}
}

func TestExecuteAllowListDenied(t *testing.T) {
	var apiCalls int32
	m := newTestManager(t, []string{"octocat/hello-world"}, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		http.NotFound(w, r)
	})
	u := NewUnified(m)

	res := u.Execute(context.Background(), Request{
		Operation:  "get_issue",
		Parameters: map[string]any{"repository": "evil/repo", "issue_number": 1},
	})

	e := requireFailure(t, res, gherr.CodePermissionDenied)
	if !strings.Contains(e.Message, "evil/repo") || !strings.Contains(e.Message, "octocat/hello-world") {
		t.Errorf("message = %q, want denied repo and configured list", e.Message)
	}
	if n := atomic.LoadInt32(&apiCalls); n != 0 {
		t.Errorf("handler reached the API %d times, want 0", n)
	}
}

func TestExecuteAllowListUnrestricted(t *testing.T) {
	m := newTestManager(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/any/repo/issues" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[]`))
			return
		}
		http.NotFound(w, r)
	})
	u := NewUnified(m)

	res := u.Execute(context.Background(), Request{
		Operation:  "list_issues",
		Parameters: map[string]any{"repository": "any/repo"},
	})

	if !res.Success {
		t.Fatalf("expected success, got %v", res.Error)
	}
}

func TestExecuteSelfScalarResolution(t *testing.T) {
	var sawAssignee atomic.Value
	m := newTestManager(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/octocat/hello-world/issues" {
			sawAssignee.Store(r.URL.Query().Get("assignee"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[]`))
			return
		}
		http.NotFound(w, r)
	})
	u := NewUnified(m)

	params := map[string]any{"repository": "octocat/hello-world", "assignee": "@me"}
	res := u.Execute(context.Background(), Request{Operation: "list_issues", Parameters: params})

	if !res.Success {
		t.Fatalf("expected success, got %v", res.Error)
	}
	if got := sawAssignee.Load(); got != "octocat" {
		t.Errorf("API saw assignee %v, want octocat", got)
	}
	// The caller's parameter bag must not be mutated.
	if params["assignee"] != "@me" {
		t.Errorf("caller params mutated: assignee = %v", params["assignee"])
	}
}

func TestExecuteSelfSliceResolution(t *testing.T) {
	var sawAssignees atomic.Value
	m := newTestManager(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/repos/octocat/hello-world/issues" {
			body, _ := io.ReadAll(r.Body)
			var req struct {
				Assignees []string `json:"assignees"`
			}
			json.Unmarshal(body, &req)
			sawAssignees.Store(req.Assignees)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"number": 7, "title": "t"}`))
			return
		}
		http.NotFound(w, r)
	})
	u := NewUnified(m)

	res := u.Execute(context.Background(), Request{
		Operation: "create_issue",
		Parameters: map[string]any{
			"repository": "octocat/hello-world",
			"title":      "t",
			"assignees":  []any{"@me", "hubot"},
		},
	})

	if !res.Success {
		t.Fatalf("expected success, got %v", res.Error)
	}
	got, _ := sawAssignees.Load().([]string)
	if len(got) != 2 || got[0] != "octocat" || got[1] != "hubot" {
		t.Errorf("API saw assignees %v, want [octocat hubot]", got)
	}
}

func TestExecuteSelfResolutionUnauthenticated(t *testing.T) {
	u := NewUnified(newUnauthenticatedManager(t))

	res := u.Execute(context.Background(), Request{
		Operation:  "list_issues",
		Parameters: map[string]any{"repository": "octocat/hello-world", "assignee": "@me"},
	})

	e := requireFailure(t, res, gherr.CodeAuthentication)
	if !strings.Contains(e.Message, "Cannot resolve '@me'") {
		t.Errorf("message = %q", e.Message)
	}
}

func TestExecuteFanOut(t *testing.T) {
	m := newTestManager(t, []string{"zeta/two", "alpha/one"}, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/alpha/one/issues":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"number": 1, "title": "first"}, {"number": 2, "title": "second"}]`))
		case "/repos/zeta/two/issues":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Not Found"}`))
		default:
			http.NotFound(w, r)
		}
	})
	u := NewUnified(m)

	res := u.Execute(context.Background(), Request{Operation: "list_issues"})

	if !res.Success {
		t.Fatalf("fan-out failed: %v", res.Error)
	}

	queried, _ := res.Output["repositories_queried"].([]string)
	if len(queried) != 2 || queried[0] != "alpha/one" || queried[1] != "zeta/two" {
		t.Errorf("repositories_queried = %v, want sorted both", queried)
	}

	issues, _ := res.Output["issues"].([]map[string]any)
	if len(issues) != 2 {
		t.Fatalf("merged %d issues, want 2", len(issues))
	}
	if res.Output["count"] != 2 {
		t.Errorf("count = %v, want 2", res.Output["count"])
	}

	failures, _ := res.Output["errors"].([]map[string]any)
	if len(failures) != 1 {
		t.Fatalf("errors = %v, want one entry", res.Output["errors"])
	}
	if failures[0]["repository"] != "zeta/two" || failures[0]["code"] != gherr.CodeRepositoryNotFound {
		t.Errorf("failure entry = %v", failures[0])
	}
}

func TestExecuteFanOutCap(t *testing.T) {
	// Each repository returns 60 issues; the merged total stops at 100.
	issueList := make([]map[string]any, 60)
	for i := range issueList {
		issueList[i] = map[string]any{"number": i + 1, "title": "t"}
	}
	payload, _ := json.Marshal(issueList)

	m := newTestManager(t, []string{"alpha/one", "beta/two", "gamma/three"}, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/issues") {
			w.Header().Set("Content-Type", "application/json")
			w.Write(payload)
			return
		}
		http.NotFound(w, r)
	})
	u := NewUnified(m)

	res := u.Execute(context.Background(), Request{
		Operation:  "list_issues",
		Parameters: map[string]any{"limit": 60},
	})

	if !res.Success {
		t.Fatalf("fan-out failed: %v", res.Error)
	}
	issues, _ := res.Output["issues"].([]map[string]any)
	if len(issues) != 100 {
		t.Errorf("merged %d issues, want cap of 100", len(issues))
	}
	queried, _ := res.Output["repositories_queried"].([]string)
	if len(queried) != 2 {
		t.Errorf("queried %d repositories, want 2 (cap reached before the third)", len(queried))
	}
}

func TestExecuteNoFanOutWhenUnrestricted(t *testing.T) {
	m := newTestManager(t, nil, nil)
	u := NewUnified(m)

	// Without an allow-list there is nothing to fan out over; the
	// operation fails on the missing repository parameter instead.
	res := u.Execute(context.Background(), Request{Operation: "list_issues"})

	requireFailure(t, res, gherr.CodeMissingParameter)
}

func TestExecuteNoFanOutForSingleRepoOperations(t *testing.T) {
	m := newTestManager(t, []string{"octocat/hello-world"}, nil)
	u := NewUnified(m)

	// get_issue is repository-scoped but never fans out.
	res := u.Execute(context.Background(), Request{
		Operation:  "get_issue",
		Parameters: map[string]any{"issue_number": 1},
	})

	requireFailure(t, res, gherr.CodeMissingParameter)
}

func TestExecutePanicRecovered(t *testing.T) {
	m := newUnauthenticatedManager(t)
	boom := &opTool{
		name:   "boom",
		schema: objectSchema(map[string]*jsonschema.Schema{}),
		run: func(ctx context.Context, params map[string]any) Result {
			panic("handler exploded")
		},
	}
	u := &Unified{m: m, registry: &Registry{tools: map[string]Tool{"boom": boom}}}

	res := u.Execute(context.Background(), Request{Operation: "boom"})

	e := requireFailure(t, res, gherr.CodeToolExecution)
	if !strings.Contains(e.Message, "handler exploded") {
		t.Errorf("message = %q", e.Message)
	}
}

func TestRegistryCatalog(t *testing.T) {
	u := NewUnified(newUnauthenticatedManager(t))
	ops := u.Registry().Operations()

	if len(ops) != 34 {
		t.Errorf("registry holds %d operations, want 34", len(ops))
	}
	for i := 1; i < len(ops); i++ {
		if ops[i-1] >= ops[i] {
			t.Errorf("operations not sorted: %s before %s", ops[i-1], ops[i])
		}
	}

	for _, want := range []string{
		"list_issues", "create_pull_request", "merge_pull_request",
		"get_repository", "list_commits", "create_branch",
		"create_release", "trigger_workflow", "rerun_workflow",
	} {
		if _, ok := u.Registry().Get(want); !ok {
			t.Errorf("operation %s missing from registry", want)
		}
	}

	if schema := u.Registry().Schema("list_issues"); schema == nil {
		t.Error("Schema(list_issues) = nil")
	}
	if schema := u.Registry().Schema("nope"); schema != nil {
		t.Error("Schema(nope) != nil")
	}

	described := u.Registry().Describe()
	if len(described) != len(ops) {
		t.Errorf("Describe returned %d entries, want %d", len(described), len(ops))
	}
	for _, entry := range described {
		if entry["operation"] == "" || entry["description"] == "" {
			t.Errorf("incomplete catalog entry: %v", entry)
		}
	}
}
