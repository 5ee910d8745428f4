package tools

import (
	"context"
	"fmt"
	"log"

	"github.com/google/go-github/v66/github"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/agentfleet/ghtools/internal/gherr"
	"github.com/agentfleet/ghtools/internal/manager"
)

func pullSummary(pr *github.PullRequest) map[string]any {
	return map[string]any{
		"number":     pr.GetNumber(),
		"title":      pr.GetTitle(),
		"state":      pr.GetState(),
		"draft":      pr.GetDraft(),
		"author":     pr.GetUser().GetLogin(),
		"head":       pr.GetHead().GetRef(),
		"base":       pr.GetBase().GetRef(),
		"merged":     pr.GetMerged(),
		"created_at": timeField(pr.GetCreatedAt()),
		"updated_at": timeField(pr.GetUpdatedAt()),
		"url":        pr.GetHTMLURL(),
	}
}

func (s *toolset) pullRequestTools() []*opTool {
	return []*opTool{
		{
			name: "list_pull_requests",
			description: "List pull requests in a GitHub repository. Supports filtering by " +
				"state, head, and base branch. When repositories are configured and no " +
				"repository is given, queries all configured repositories.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"state":      enumProp("Filter by state (default: open)", "open", "closed", "all"),
				"head":       stringProp("Filter by head branch ('user:ref-name' or 'ref-name')"),
				"base":       stringProp("Filter by base branch name"),
				"sort":       enumProp("Sort field (default: created)", "created", "updated", "popularity", "long-running"),
				"direction":  enumProp("Sort direction (default: desc)", "asc", "desc"),
				"limit":      intProp("Maximum number of pull requests to return (default: 30, max: 100)"),
			}),
			run: s.listPullRequests,
		},
		{
			name:        "get_pull_request",
			description: "Get detailed information about a specific pull request.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository":  repositoryProp(),
				"pull_number": intProp("The pull request number"),
			}, "repository", "pull_number"),
			run: s.getPullRequest,
		},
		{
			name: "create_pull_request",
			description: "Create a new pull request. Requires write access. Labels, " +
				"assignees, and reviewers are attached best-effort after creation.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository":            repositoryProp(),
				"title":                 stringProp("Pull request title (required)"),
				"head":                  stringProp("The branch where changes are (required)"),
				"base":                  stringProp("The branch to merge into (required)"),
				"body":                  stringProp("Pull request body (supports Markdown)"),
				"draft":                 boolProp("Create as draft PR (default: false)"),
				"maintainer_can_modify": boolProp("Allow maintainers to modify the PR (default: true)"),
				"labels":                stringArrayProp("Labels to add to the PR"),
				"assignees":             stringArrayProp("Usernames to assign to the PR"),
				"reviewers":             stringArrayProp("Usernames to request reviews from"),
				"team_reviewers":        stringArrayProp("Team slugs to request reviews from"),
			}, "repository", "title", "head", "base"),
			run: s.createPullRequest,
		},
		{
			name:        "update_pull_request",
			description: "Update a pull request's title, body, state, base branch, or requested reviewers.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository":       repositoryProp(),
				"pull_number":      intProp("The pull request number"),
				"title":            stringProp("New title"),
				"body":             stringProp("New body"),
				"state":            enumProp("New state", "open", "closed"),
				"base":             stringProp("New base branch"),
				"add_reviewers":    stringArrayProp("Usernames to request reviews from"),
				"remove_reviewers": stringArrayProp("Usernames whose review requests to remove"),
			}, "repository", "pull_number"),
			run: s.updatePullRequest,
		},
		{
			name:        "merge_pull_request",
			description: "Merge a pull request using the merge, squash, or rebase method.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository":     repositoryProp(),
				"pull_number":    intProp("The pull request number"),
				"merge_method":   enumProp("Merge method (default: merge)", "merge", "squash", "rebase"),
				"commit_title":   stringProp("Title for the merge commit"),
				"commit_message": stringProp("Message for the merge commit"),
			}, "repository", "pull_number"),
			run: s.mergePullRequest,
		},
		{
			name:        "review_pull_request",
			description: "Submit a review on a pull request: approve, request changes, or comment.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository":  repositoryProp(),
				"pull_number": intProp("The pull request number"),
				"event":       enumProp("Review action", "APPROVE", "REQUEST_CHANGES", "COMMENT"),
				"body":        stringProp("Review body (required for REQUEST_CHANGES and COMMENT)"),
			}, "repository", "pull_number", "event"),
			run: s.reviewPullRequest,
		},
	}
}

func (s *toolset) listPullRequests(ctx context.Context, params map[string]any) Result {
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

	opts := &github.PullRequestListOptions{
		State:       state,
		Head:        stringParam(params, "head"),
		Base:        stringParam(params, "base"),
		Sort:        stringParamDefault(params, "sort", "created"),
		Direction:   stringParamDefault(params, "direction", "desc"),
		ListOptions: github.ListOptions{PerPage: limit},
	}

	pulls, _, err := call.client.PullRequests.List(ctx, call.owner, call.name, opts)
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	list := make([]map[string]any, 0, len(pulls))
	for _, pr := range pulls {
		if len(list) >= limit {
			break
		}
		list = append(list, pullSummary(pr))
	}

	return OK(map[string]any{
		"repository":    call.repository,
		"state":         state,
		"count":         len(list),
		"pull_requests": list,
	})
}

func (s *toolset) getPullRequest(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	number := intParam(params, "pull_number", 0)
	if number <= 0 {
		return Fail(gherr.MissingParameter("pull_number"))
	}

	pr, _, err := call.client.PullRequests.Get(ctx, call.owner, call.name, number)
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	detail := pullSummary(pr)
	detail["body"] = pr.GetBody()
	detail["mergeable"] = pr.GetMergeable()
	detail["additions"] = pr.GetAdditions()
	detail["deletions"] = pr.GetDeletions()
	detail["changed_files"] = pr.GetChangedFiles()

	return OK(map[string]any{
		"repository":   call.repository,
		"pull_request": detail,
	})
}

func (s *toolset) createPullRequest(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	title := stringParam(params, "title")
	head := stringParam(params, "head")
	base := stringParam(params, "base")
	if title == "" || head == "" || base == "" {
		return Fail(gherr.MissingParameter("title", "head", "base"))
	}

	req := &github.NewPullRequest{
		Title:               github.String(title),
		Head:                github.String(head),
		Base:                github.String(base),
		Body:                github.String(stringParam(params, "body")),
		Draft:               github.Bool(boolParam(params, "draft", false)),
		MaintainerCanModify: github.Bool(boolParam(params, "maintainer_can_modify", true)),
	}

	pr, _, err := call.client.PullRequests.Create(ctx, call.owner, call.name, req)
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}
	number := pr.GetNumber()

	// Post-creation attachments are best-effort: a label or reviewer
	// failure does not fail the call.
	if labels := stringSliceParam(params, "labels"); len(labels) > 0 {
		if _, _, err := call.client.Issues.AddLabelsToIssue(ctx, call.owner, call.name, number, labels); err != nil {
			log.Printf("[Tools] Failed to add labels to PR #%d: %v", number, err)
		}
	}
	if assignees := stringSliceParam(params, "assignees"); len(assignees) > 0 {
		if _, _, err := call.client.Issues.AddAssignees(ctx, call.owner, call.name, number, assignees); err != nil {
			log.Printf("[Tools] Failed to add assignees to PR #%d: %v", number, err)
		}
	}
	reviewers := stringSliceParam(params, "reviewers")
	teamReviewers := stringSliceParam(params, "team_reviewers")
	if len(reviewers) > 0 || len(teamReviewers) > 0 {
		reviewReq := github.ReviewersRequest{Reviewers: reviewers, TeamReviewers: teamReviewers}
		if _, _, err := call.client.PullRequests.RequestReviewers(ctx, call.owner, call.name, number, reviewReq); err != nil {
			log.Printf("[Tools] Failed to request reviewers on PR #%d: %v", number, err)
		}
	}

	return OK(map[string]any{
		"repository":   call.repository,
		"pull_request": pullSummary(pr),
		"message":      fmt.Sprintf("Pull request #%d created successfully", number),
	})
}

func (s *toolset) updatePullRequest(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	number := intParam(params, "pull_number", 0)
	if number <= 0 {
		return Fail(gherr.MissingParameter("pull_number"))
	}

	update := &github.PullRequest{}
	changed := false
	if title := stringParam(params, "title"); title != "" {
		update.Title = github.String(title)
		changed = true
	}
	if _, ok := params["body"]; ok {
		update.Body = github.String(stringParam(params, "body"))
		changed = true
	}
	if state := stringParam(params, "state"); state != "" {
		update.State = github.String(state)
		changed = true
	}
	if base := stringParam(params, "base"); base != "" {
		update.Base = &github.PullRequestBranch{Ref: github.String(base)}
		changed = true
	}

	addReviewers := stringSliceParam(params, "add_reviewers")
	removeReviewers := stringSliceParam(params, "remove_reviewers")
	if !changed && len(addReviewers) == 0 && len(removeReviewers) == 0 {
		return Fail(gherr.Validation("No fields to update"))
	}

	var pr *github.PullRequest
	if changed {
		pr, _, err = call.client.PullRequests.Edit(ctx, call.owner, call.name, number, update)
		if err != nil {
			return Fail(manager.MapAPIError(err, call.repository))
		}
	} else {
		pr, _, err = call.client.PullRequests.Get(ctx, call.owner, call.name, number)
		if err != nil {
			return Fail(manager.MapAPIError(err, call.repository))
		}
	}

	if len(addReviewers) > 0 {
		if _, _, err := call.client.PullRequests.RequestReviewers(ctx, call.owner, call.name, number,
			github.ReviewersRequest{Reviewers: addReviewers}); err != nil {
			log.Printf("[Tools] Failed to request reviewers on PR #%d: %v", number, err)
		}
	}
	if len(removeReviewers) > 0 {
		if _, err := call.client.PullRequests.RemoveReviewers(ctx, call.owner, call.name, number,
			github.ReviewersRequest{Reviewers: removeReviewers}); err != nil {
			log.Printf("[Tools] Failed to remove reviewers on PR #%d: %v", number, err)
		}
	}

	return OK(map[string]any{
		"repository":   call.repository,
		"pull_request": pullSummary(pr),
		"message":      fmt.Sprintf("Pull request #%d updated successfully", number),
	})
}

func (s *toolset) mergePullRequest(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	number := intParam(params, "pull_number", 0)
	if number <= 0 {
		return Fail(gherr.MissingParameter("pull_number"))
	}

	opts := &github.PullRequestOptions{
		MergeMethod: stringParamDefault(params, "merge_method", "merge"),
		CommitTitle: stringParam(params, "commit_title"),
	}

	result, _, err := call.client.PullRequests.Merge(ctx, call.owner, call.name, number,
		stringParam(params, "commit_message"), opts)
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	return OK(map[string]any{
		"repository":  call.repository,
		"pull_number": number,
		"merged":      result.GetMerged(),
		"sha":         result.GetSHA(),
		"message":     result.GetMessage(),
	})
}

func (s *toolset) reviewPullRequest(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	number := intParam(params, "pull_number", 0)
	event := stringParam(params, "event")
	if number <= 0 || event == "" {
		return Fail(gherr.MissingParameter("pull_number", "event"))
	}
	body := stringParam(params, "body")
	if body == "" && event != "APPROVE" {
		return Fail(gherr.Validation("body is required for %s reviews", event))
	}

	review, _, err := call.client.PullRequests.CreateReview(ctx, call.owner, call.name, number,
		&github.PullRequestReviewRequest{
			Body:  github.String(body),
			Event: github.String(event),
		})
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	return OK(map[string]any{
		"repository":  call.repository,
		"pull_number": number,
		"review": map[string]any{
			"id":    review.GetID(),
			"state": review.GetState(),
			"url":   review.GetHTMLURL(),
		},
		"message": fmt.Sprintf("Review submitted on #%d", number),
	})
}
