package tools

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/agentfleet/ghtools/internal/gherr"
	"github.com/agentfleet/ghtools/internal/manager"
)

// Request is a generic operation call.
type Request struct {
	Operation  string         `json:"operation"`
	Parameters map[string]any `json:"parameters"`
}

// Parameter names whose "@me" placeholder is replaced with the
// authenticated username.
var (
	selfScalarParams = []string{"assignee", "creator", "mentioned", "author"}
	selfSliceParams  = []string{"assignees", "reviewers", "add_reviewers", "remove_reviewers"}
)

// Operations that fan out across the configured allow-list when no
// repository parameter is given, keyed by the output field their
// per-repository results are merged under.
var fanOutOperations = map[string]string{
	"list_issues":        "issues",
	"list_pull_requests": "pull_requests",
}

// fanOutCap bounds the total number of results accumulated across
// repositories.
const fanOutCap = 100

// Unified is the single dispatch entry point. It is stateless between
// calls; the authenticated-username cache lives on the manager.
type Unified struct {
	m        *manager.Manager
	registry *Registry
}

// NewUnified builds the dispatcher and its operation registry.
func NewUnified(m *manager.Manager) *Unified {
	return &Unified{m: m, registry: NewRegistry(m)}
}

// Registry exposes the operation registry for enumeration.
func (u *Unified) Registry() *Registry {
	return u.registry
}

// Execute runs one operation call through the pipeline: validate,
// normalize @me, look up the handler, enforce the allow-list, invoke.
// Nothing escapes as an error: every failure becomes a Result.
func (u *Unified) Execute(ctx context.Context, req Request) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Dispatcher] Panic in operation %s: %v", req.Operation, r)
			result = Fail(gherr.ToolExecution("Unexpected error: %v", r))
		}
	}()

	if req.Operation == "" {
		return Fail(gherr.Validation("Missing required field: operation"))
	}

	params := req.Parameters
	if params == nil {
		params = map[string]any{}
	}

	params, err := u.resolveSelf(ctx, params)
	if err != nil {
		return Fail(err)
	}

	tool, ok := u.registry.Get(req.Operation)
	if !ok {
		available := strings.Join(u.registry.Operations(), ", ")
		return Fail(gherr.Validation("Unknown operation: %s. Available operations: %s", req.Operation, available))
	}

	if repositoryScoped(tool) {
		repository := stringParam(params, "repository")

		if repository == "" {
			if itemsKey, ok := fanOutOperations[req.Operation]; ok && u.m.AllowList().Restricted() {
				return u.fanOut(ctx, tool, params, itemsKey)
			}
		} else if !u.m.AllowList().Allowed(repository) {
			configured := strings.Join(u.m.AllowList().Repositories(), ", ")
			return Fail(gherr.Permission(fmt.Sprintf(
				"Access to repository '%s' is not allowed. Configured repositories: %s",
				repository, configured)))
		}
	}

	log.Printf("[Dispatcher] Executing operation: %s", req.Operation)
	return tool.Execute(ctx, params)
}

// resolveSelf replaces the "@me" placeholder in the known parameter
// names with the authenticated username. The identity lookup runs at
// most once per call and only when a placeholder is present; a failed
// lookup aborts the call rather than partially resolving.
func (u *Unified) resolveSelf(ctx context.Context, params map[string]any) (map[string]any, error) {
	if !hasSelfPlaceholder(params) {
		return params, nil
	}

	login, err := u.m.CurrentLogin(ctx)
	if err != nil {
		return nil, gherr.Authentication(fmt.Sprintf("Cannot resolve '@me': %v", err))
	}

	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}

	for _, key := range selfScalarParams {
		if out[key] == "@me" {
			out[key] = login
		}
	}
	for _, key := range selfSliceParams {
		values := stringSliceParam(out, key)
		if values == nil {
			continue
		}
		replaced := make([]string, len(values))
		for i, v := range values {
			if v == "@me" {
				replaced[i] = login
			} else {
				replaced[i] = v
			}
		}
		out[key] = replaced
	}

	return out, nil
}

func hasSelfPlaceholder(params map[string]any) bool {
	for _, key := range selfScalarParams {
		if params[key] == "@me" {
			return true
		}
	}
	for _, key := range selfSliceParams {
		for _, v := range stringSliceParam(params, key) {
			if v == "@me" {
				return true
			}
		}
	}
	return false
}

// fanOut invokes the tool once per configured repository, merging
// successes and collecting per-repository failures. One repository's
// failure never suppresses results from the others.
func (u *Unified) fanOut(ctx context.Context, tool Tool, params map[string]any, itemsKey string) Result {
	repos := u.m.AllowList().Repositories()
	log.Printf("[Dispatcher] Fanning out %s across %d configured repositories", tool.Name(), len(repos))

	merged := make([]map[string]any, 0)
	failures := make([]map[string]any, 0)
	queried := make([]string, 0, len(repos))

	for _, repo := range repos {
		if len(merged) >= fanOutCap {
			break
		}

		perRepo := make(map[string]any, len(params)+1)
		for k, v := range params {
			perRepo[k] = v
		}
		perRepo["repository"] = repo

		res := tool.Execute(ctx, perRepo)
		queried = append(queried, repo)

		if !res.Success {
			failures = append(failures, map[string]any{
				"repository": repo,
				"message":    res.Error.Message,
				"code":       res.Error.Code,
			})
			continue
		}

		items, _ := res.Output[itemsKey].([]map[string]any)
		for _, item := range items {
			if len(merged) >= fanOutCap {
				break
			}
			merged = append(merged, item)
		}
	}

	output := map[string]any{
		"repositories_queried": queried,
		itemsKey:               merged,
		"count":                len(merged),
	}
	if len(failures) > 0 {
		output["errors"] = failures
	}
	return OK(output)
}
