package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/go-github/v66/github"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/agentfleet/ghtools/internal/gherr"
	"github.com/agentfleet/ghtools/internal/manager"
)

func workflowSummary(workflow *github.Workflow) map[string]any {
	return map[string]any{
		"id":    workflow.GetID(),
		"name":  workflow.GetName(),
		"path":  workflow.GetPath(),
		"state": workflow.GetState(),
		"url":   workflow.GetHTMLURL(),
	}
}

func runSummary(run *github.WorkflowRun) map[string]any {
	return map[string]any{
		"id":         run.GetID(),
		"name":       run.GetName(),
		"run_number": run.GetRunNumber(),
		"event":      run.GetEvent(),
		"status":     run.GetStatus(),
		"conclusion": run.GetConclusion(),
		"branch":     run.GetHeadBranch(),
		"created_at": timeField(run.GetCreatedAt()),
		"updated_at": timeField(run.GetUpdatedAt()),
		"url":        run.GetHTMLURL(),
	}
}

// isAccepted reports whether the API answered 202 Accepted, which
// go-github surfaces as an error even though the request succeeded.
func isAccepted(err error) bool {
	var accepted *github.AcceptedError
	return errors.As(err, &accepted)
}

// isConflict reports a 409, which the runs API uses for state-based
// refusals (cancelling a finished run, re-running an active one).
func isConflict(err error) bool {
	var respErr *github.ErrorResponse
	return errors.As(err, &respErr) && respErr.Response != nil &&
		respErr.Response.StatusCode == http.StatusConflict
}

// workflowRef accepts either a numeric workflow ID or a workflow file
// name like "ci.yml".
func workflowRef(params map[string]any) (int64, string, error) {
	raw := stringParam(params, "workflow")
	if raw == "" {
		if id := intParam(params, "workflow", 0); id > 0 {
			return int64(id), "", nil
		}
		return 0, "", gherr.MissingParameter("workflow")
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, "", nil
	}
	return 0, raw, nil
}

func (s *toolset) actionTools() []*opTool {
	workflowProp := stringProp("Workflow ID or workflow file name (e.g., 'ci.yml')")

	return []*opTool{
		{
			name:        "list_workflows",
			description: "List GitHub Actions workflows defined in a repository.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"limit":      intProp("Maximum number of workflows to return (default: 30, max: 100)"),
			}, "repository"),
			run: s.listWorkflows,
		},
		{
			name:        "get_workflow",
			description: "Get a single workflow by ID or file name.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"workflow":   workflowProp,
			}, "repository", "workflow"),
			run: s.getWorkflow,
		},
		{
			name:        "trigger_workflow",
			description: "Trigger a workflow_dispatch event for a workflow on a given ref, with optional inputs.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"workflow":   workflowProp,
				"ref":        stringProp("The branch or tag to run the workflow on (required)"),
				"inputs": {
					Type:        "object",
					Description: "Workflow dispatch inputs (string values)",
				},
			}, "repository", "workflow", "ref"),
			run: s.triggerWorkflow,
		},
		{
			name:        "list_workflow_runs",
			description: "List workflow runs, optionally scoped to one workflow and filtered by branch or status.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"workflow":   workflowProp,
				"branch":     stringProp("Filter by branch name"),
				"status":     enumProp("Filter by run status", "queued", "in_progress", "completed"),
				"limit":      intProp("Maximum number of runs to return (default: 30, max: 100)"),
			}, "repository"),
			run: s.listWorkflowRuns,
		},
		{
			name:        "get_workflow_run",
			description: "Get a single workflow run by its run ID.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"run_id":     intProp("The workflow run ID (required)"),
			}, "repository", "run_id"),
			run: s.getWorkflowRun,
		},
		{
			name:        "cancel_workflow_run",
			description: "Cancel an in-progress workflow run.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"run_id":     intProp("The workflow run ID (required)"),
			}, "repository", "run_id"),
			run: s.cancelWorkflowRun,
		},
		{
			name:        "rerun_workflow",
			description: "Re-run a completed workflow run, either in full or only its failed jobs.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository":       repositoryProp(),
				"run_id":           intProp("The workflow run ID (required)"),
				"failed_jobs_only": boolProp("Re-run only the jobs that failed (default: false)"),
			}, "repository", "run_id"),
			run: s.rerunWorkflow,
		},
	}
}

func (s *toolset) listWorkflows(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	limit := intParam(params, "limit", 30)
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	workflows, _, err := call.client.Actions.ListWorkflows(ctx, call.owner, call.name,
		&github.ListOptions{PerPage: limit})
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	list := make([]map[string]any, 0, len(workflows.Workflows))
	for _, workflow := range workflows.Workflows {
		if len(list) >= limit {
			break
		}
		list = append(list, workflowSummary(workflow))
	}

	return OK(map[string]any{
		"repository": call.repository,
		"total":      workflows.GetTotalCount(),
		"count":      len(list),
		"workflows":  list,
	})
}

func (s *toolset) getWorkflow(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	id, file, err := workflowRef(params)
	if err != nil {
		return Fail(err)
	}

	var workflow *github.Workflow
	if file != "" {
		workflow, _, err = call.client.Actions.GetWorkflowByFileName(ctx, call.owner, call.name, file)
	} else {
		workflow, _, err = call.client.Actions.GetWorkflowByID(ctx, call.owner, call.name, id)
	}
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	return OK(map[string]any{
		"repository": call.repository,
		"workflow":   workflowSummary(workflow),
	})
}

func (s *toolset) triggerWorkflow(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	id, file, err := workflowRef(params)
	if err != nil {
		return Fail(err)
	}
	ref := stringParam(params, "ref")
	if ref == "" {
		return Fail(gherr.MissingParameter("ref"))
	}

	event := github.CreateWorkflowDispatchEventRequest{Ref: ref}
	if inputs, ok := params["inputs"].(map[string]any); ok && len(inputs) > 0 {
		event.Inputs = inputs
	}

	if file != "" {
		_, err = call.client.Actions.CreateWorkflowDispatchEventByFileName(ctx, call.owner, call.name, file, event)
	} else {
		_, err = call.client.Actions.CreateWorkflowDispatchEventByID(ctx, call.owner, call.name, id, event)
	}
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	workflow := file
	if workflow == "" {
		workflow = strconv.FormatInt(id, 10)
	}
	return OK(map[string]any{
		"repository": call.repository,
		"workflow":   workflow,
		"ref":        ref,
		"message":    fmt.Sprintf("Workflow %s triggered on %s", workflow, ref),
	})
}

func (s *toolset) listWorkflowRuns(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	limit := intParam(params, "limit", 30)
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	opts := &github.ListWorkflowRunsOptions{
		Branch:      stringParam(params, "branch"),
		Status:      stringParam(params, "status"),
		ListOptions: github.ListOptions{PerPage: limit},
	}

	var runs *github.WorkflowRuns
	if _, hasWorkflow := params["workflow"]; hasWorkflow {
		id, file, err := workflowRef(params)
		if err != nil {
			return Fail(err)
		}
		if file != "" {
			runs, _, err = call.client.Actions.ListWorkflowRunsByFileName(ctx, call.owner, call.name, file, opts)
		} else {
			runs, _, err = call.client.Actions.ListWorkflowRunsByID(ctx, call.owner, call.name, id, opts)
		}
		if err != nil {
			return Fail(manager.MapAPIError(err, call.repository))
		}
	} else {
		runs, _, err = call.client.Actions.ListRepositoryWorkflowRuns(ctx, call.owner, call.name, opts)
		if err != nil {
			return Fail(manager.MapAPIError(err, call.repository))
		}
	}

	list := make([]map[string]any, 0, len(runs.WorkflowRuns))
	for _, run := range runs.WorkflowRuns {
		if len(list) >= limit {
			break
		}
		list = append(list, runSummary(run))
	}

	return OK(map[string]any{
		"repository": call.repository,
		"total":      runs.GetTotalCount(),
		"count":      len(list),
		"runs":       list,
	})
}

func (s *toolset) getWorkflowRun(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	runID := intParam(params, "run_id", 0)
	if runID <= 0 {
		return Fail(gherr.MissingParameter("run_id"))
	}

	run, _, err := call.client.Actions.GetWorkflowRunByID(ctx, call.owner, call.name, int64(runID))
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	return OK(map[string]any{
		"repository": call.repository,
		"run":        runSummary(run),
	})
}

func (s *toolset) cancelWorkflowRun(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	runID := intParam(params, "run_id", 0)
	if runID <= 0 {
		return Fail(gherr.MissingParameter("run_id"))
	}

	// Cancellation is answered with 202 Accepted, which go-github
	// reports as an AcceptedError.
	if _, err := call.client.Actions.CancelWorkflowRunByID(ctx, call.owner, call.name, int64(runID)); err != nil && !isAccepted(err) {
		if isConflict(err) {
			return Fail(gherr.CannotCancel(runID))
		}
		return Fail(manager.MapAPIError(err, call.repository))
	}

	return OK(map[string]any{
		"repository": call.repository,
		"run_id":     runID,
		"message":    fmt.Sprintf("Cancellation requested for run %d", runID),
	})
}

func (s *toolset) rerunWorkflow(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	runID := intParam(params, "run_id", 0)
	if runID <= 0 {
		return Fail(gherr.MissingParameter("run_id"))
	}

	failedOnly := boolParam(params, "failed_jobs_only", false)
	if failedOnly {
		_, err = call.client.Actions.RerunFailedJobsByID(ctx, call.owner, call.name, int64(runID))
	} else {
		_, err = call.client.Actions.RerunWorkflowByID(ctx, call.owner, call.name, int64(runID))
	}
	if err != nil && !isAccepted(err) {
		if isConflict(err) {
			return Fail(gherr.CannotRerun(runID))
		}
		return Fail(manager.MapAPIError(err, call.repository))
	}

	scope := "run"
	if failedOnly {
		scope = "failed jobs of run"
	}
	return OK(map[string]any{
		"repository":       call.repository,
		"run_id":           runID,
		"failed_jobs_only": failedOnly,
		"message":          fmt.Sprintf("Re-run requested for %s %d", scope, runID),
	})
}
