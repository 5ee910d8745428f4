package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/agentfleet/ghtools/internal/gherr"
	"github.com/agentfleet/ghtools/internal/manager"
)

// repoCall is the prologue shared by every repository-scoped
// operation: required parameter, owner/repo split, authenticated
// client, limiter admission.
type repoCall struct {
	client     *github.Client
	owner      string
	name       string
	repository string
}

func (s *toolset) beginRepoCall(ctx context.Context, params map[string]any) (*repoCall, error) {
	repository := stringParam(params, "repository")
	if repository == "" {
		return nil, gherr.MissingParameter("repository")
	}
	owner, name, err := manager.SplitRepo(repository)
	if err != nil {
		return nil, err
	}
	client, err := s.m.Client()
	if err != nil {
		return nil, err
	}
	if err := s.m.Limit(ctx); err != nil {
		return nil, err
	}
	return &repoCall{client: client, owner: owner, name: name, repository: repository}, nil
}

// timeField renders a timestamp for output, or nil when unset.
func timeField(ts github.Timestamp) any {
	if ts.IsZero() {
		return nil
	}
	return ts.Format(time.RFC3339)
}

func issueSummary(issue *github.Issue) map[string]any {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	assignees := make([]string, 0, len(issue.Assignees))
	for _, a := range issue.Assignees {
		assignees = append(assignees, a.GetLogin())
	}
	return map[string]any{
		"number":     issue.GetNumber(),
		"title":      issue.GetTitle(),
		"state":      issue.GetState(),
		"author":     issue.GetUser().GetLogin(),
		"created_at": timeField(issue.GetCreatedAt()),
		"updated_at": timeField(issue.GetUpdatedAt()),
		"closed_at":  timeField(issue.GetClosedAt()),
		"labels":     labels,
		"assignees":  assignees,
		"comments":   issue.GetComments(),
		"url":        issue.GetHTMLURL(),
	}
}

func (s *toolset) issueTools() []*opTool {
	return []*opTool{
		{
			name: "list_issues",
			description: "List issues in a GitHub repository. Supports filtering by state, " +
				"labels, assignee, creator, and mentioned user. When repositories are " +
				"configured and no repository is given, queries all configured repositories.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"state":      enumProp("Filter by issue state (default: open)", "open", "closed", "all"),
				"labels":     stringArrayProp("Filter by labels (must have all specified labels)"),
				"assignee":   stringProp("Filter by assignee username ('none' for unassigned, '*' for any)"),
				"creator":    stringProp("Filter by issue creator username"),
				"mentioned":  stringProp("Filter by username mentioned in the issue"),
				"sort":       enumProp("Sort field (default: created)", "created", "updated", "comments"),
				"direction":  enumProp("Sort direction (default: desc)", "asc", "desc"),
				"limit":      intProp("Maximum number of issues to return (default: 30, max: 100)"),
			}),
			run: s.listIssues,
		},
		{
			name:        "get_issue",
			description: "Get detailed information about a specific issue, including its body.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository":   repositoryProp(),
				"issue_number": intProp("The issue number"),
			}, "repository", "issue_number"),
			run: s.getIssue,
		},
		{
			name:        "create_issue",
			description: "Create a new issue in a GitHub repository. Requires write access.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"title":      stringProp("Issue title (required)"),
				"body":       stringProp("Issue body (supports Markdown)"),
				"labels":     stringArrayProp("Labels to add to the issue"),
				"assignees":  stringArrayProp("Usernames to assign to the issue"),
			}, "repository", "title"),
			run: s.createIssue,
		},
		{
			name:        "update_issue",
			description: "Update an existing issue's title, body, state, labels, or assignees.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository":   repositoryProp(),
				"issue_number": intProp("The issue number"),
				"title":        stringProp("New issue title"),
				"body":         stringProp("New issue body"),
				"state":        enumProp("New issue state", "open", "closed"),
				"labels":       stringArrayProp("Replacement labels"),
				"assignees":    stringArrayProp("Replacement assignees"),
			}, "repository", "issue_number"),
			run: s.updateIssue,
		},
		{
			name:        "comment_issue",
			description: "Add a comment to an issue or pull request.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository":   repositoryProp(),
				"issue_number": intProp("The issue or pull request number"),
				"body":         stringProp("Comment body (supports Markdown)"),
			}, "repository", "issue_number", "body"),
			run: s.commentIssue,
		},
	}
}

func (s *toolset) listIssues(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	state := stringParamDefault(params, "state", "open")
	limit := intParam(params, "limit", 30)
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	opts := &github.IssueListByRepoOptions{
		State:       state,
		Labels:      stringSliceParam(params, "labels"),
		Assignee:    stringParam(params, "assignee"),
		Creator:     stringParam(params, "creator"),
		Mentioned:   stringParam(params, "mentioned"),
		Sort:        stringParamDefault(params, "sort", "created"),
		Direction:   stringParamDefault(params, "direction", "desc"),
		ListOptions: github.ListOptions{PerPage: limit},
	}

	issues, _, err := call.client.Issues.ListByRepo(ctx, call.owner, call.name, opts)
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	list := make([]map[string]any, 0, len(issues))
	for _, issue := range issues {
		if len(list) >= limit {
			break
		}
		// The issues API returns pull requests too; skip them.
		if issue.IsPullRequest() {
			continue
		}
		list = append(list, issueSummary(issue))
	}

	return OK(map[string]any{
		"repository": call.repository,
		"state":      state,
		"count":      len(list),
		"issues":     list,
	})
}

func (s *toolset) getIssue(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	number := intParam(params, "issue_number", 0)
	if number <= 0 {
		return Fail(gherr.MissingParameter("issue_number"))
	}

	issue, _, err := call.client.Issues.Get(ctx, call.owner, call.name, number)
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	detail := issueSummary(issue)
	detail["body"] = issue.GetBody()

	return OK(map[string]any{
		"repository": call.repository,
		"issue":      detail,
	})
}

func (s *toolset) createIssue(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	title := stringParam(params, "title")
	if title == "" {
		return Fail(gherr.MissingParameter("title"))
	}

	req := &github.IssueRequest{
		Title: github.String(title),
		Body:  github.String(stringParam(params, "body")),
	}
	if labels := stringSliceParam(params, "labels"); len(labels) > 0 {
		req.Labels = &labels
	}
	if assignees := stringSliceParam(params, "assignees"); len(assignees) > 0 {
		req.Assignees = &assignees
	}

	issue, _, err := call.client.Issues.Create(ctx, call.owner, call.name, req)
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	return OK(map[string]any{
		"repository": call.repository,
		"issue":      issueSummary(issue),
		"message":    fmt.Sprintf("Issue #%d created successfully", issue.GetNumber()),
	})
}

func (s *toolset) updateIssue(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	number := intParam(params, "issue_number", 0)
	if number <= 0 {
		return Fail(gherr.MissingParameter("issue_number"))
	}

	req := &github.IssueRequest{}
	changed := false
	if title := stringParam(params, "title"); title != "" {
		req.Title = github.String(title)
		changed = true
	}
	if _, ok := params["body"]; ok {
		req.Body = github.String(stringParam(params, "body"))
		changed = true
	}
	if state := stringParam(params, "state"); state != "" {
		req.State = github.String(state)
		changed = true
	}
	if _, ok := params["labels"]; ok {
		labels := stringSliceParam(params, "labels")
		req.Labels = &labels
		changed = true
	}
	if _, ok := params["assignees"]; ok {
		assignees := stringSliceParam(params, "assignees")
		req.Assignees = &assignees
		changed = true
	}
	if !changed {
		return Fail(gherr.Validation("No fields to update"))
	}

	issue, _, err := call.client.Issues.Edit(ctx, call.owner, call.name, number, req)
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	return OK(map[string]any{
		"repository": call.repository,
		"issue":      issueSummary(issue),
		"message":    fmt.Sprintf("Issue #%d updated successfully", issue.GetNumber()),
	})
}

func (s *toolset) commentIssue(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	number := intParam(params, "issue_number", 0)
	body := stringParam(params, "body")
	if number <= 0 || body == "" {
		return Fail(gherr.MissingParameter("issue_number", "body"))
	}

	comment, _, err := call.client.Issues.CreateComment(ctx, call.owner, call.name, number,
		&github.IssueComment{Body: github.String(body)})
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	return OK(map[string]any{
		"repository":   call.repository,
		"issue_number": number,
		"comment": map[string]any{
			"id":         comment.GetID(),
			"author":     comment.GetUser().GetLogin(),
			"created_at": timeField(comment.GetCreatedAt()),
			"url":        comment.GetHTMLURL(),
		},
		"message": fmt.Sprintf("Comment added to #%d", number),
	})
}
