package tools

import (
	"context"
	"fmt"

	"github.com/google/go-github/v66/github"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/agentfleet/ghtools/internal/gherr"
	"github.com/agentfleet/ghtools/internal/manager"
)

func (s *toolset) branchTools() []*opTool {
	return []*opTool{
		{
			name:        "list_branches",
			description: "List branches in a repository.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"protected":  boolProp("Only protected branches"),
				"limit":      intProp("Maximum number of branches to return (default: 30, max: 100)"),
			}, "repository"),
			run: s.listBranches,
		},
		{
			name:        "get_branch",
			description: "Get a branch with its head commit and protection status.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"branch":     stringProp("The branch name (required)"),
			}, "repository", "branch"),
			run: s.getBranch,
		},
		{
			name:        "create_branch",
			description: "Create a new branch from an existing branch or commit SHA.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"branch":     stringProp("Name of the new branch (required)"),
				"from":       stringProp("Source branch or commit SHA (default: default branch)"),
			}, "repository", "branch"),
			run: s.createBranch,
		},
		{
			name:        "compare_branches",
			description: "Compare two branches or commits, returning ahead/behind counts and the commit list.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"base":       stringProp("The base branch or commit (required)"),
				"head":       stringProp("The head branch or commit (required)"),
			}, "repository", "base", "head"),
			run: s.compareBranches,
		},
	}
}

func (s *toolset) listBranches(ctx context.Context, params map[string]any) Result {
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

	opts := &github.BranchListOptions{
		ListOptions: github.ListOptions{PerPage: limit},
	}
	if protected, ok := params["protected"].(bool); ok {
		opts.Protected = github.Bool(protected)
	}

	branches, _, err := call.client.Repositories.ListBranches(ctx, call.owner, call.name, opts)
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	list := make([]map[string]any, 0, len(branches))
	for _, branch := range branches {
		if len(list) >= limit {
			break
		}
		list = append(list, map[string]any{
			"name":      branch.GetName(),
			"sha":       branch.GetCommit().GetSHA(),
			"protected": branch.GetProtected(),
		})
	}

	return OK(map[string]any{
		"repository": call.repository,
		"count":      len(list),
		"branches":   list,
	})
}

func (s *toolset) getBranch(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	name := stringParam(params, "branch")
	if name == "" {
		return Fail(gherr.MissingParameter("branch"))
	}

	branch, _, err := call.client.Repositories.GetBranch(ctx, call.owner, call.name, name, 3)
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	return OK(map[string]any{
		"repository": call.repository,
		"branch": map[string]any{
			"name":      branch.GetName(),
			"sha":       branch.GetCommit().GetSHA(),
			"protected": branch.GetProtected(),
		},
	})
}

func (s *toolset) createBranch(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	name := stringParam(params, "branch")
	if name == "" {
		return Fail(gherr.MissingParameter("branch"))
	}

	source := stringParam(params, "from")
	if source == "" {
		repo, err := s.m.Repository(ctx, call.repository)
		if err != nil {
			return Fail(err)
		}
		source = repo.GetDefaultBranch()
	}

	// Resolve the source to a SHA. A 40-char hex string is taken as a
	// commit directly; anything else is treated as a branch name.
	sha := source
	if !isCommitSHA(source) {
		ref, _, err := call.client.Git.GetRef(ctx, call.owner, call.name, "refs/heads/"+source)
		if err != nil {
			return Fail(manager.MapAPIError(err, call.repository))
		}
		sha = ref.GetObject().GetSHA()
	}

	created, _, err := call.client.Git.CreateRef(ctx, call.owner, call.name, &github.Reference{
		Ref:    github.String("refs/heads/" + name),
		Object: &github.GitObject{SHA: github.String(sha)},
	})
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	return OK(map[string]any{
		"repository": call.repository,
		"branch":     name,
		"sha":        created.GetObject().GetSHA(),
		"message":    fmt.Sprintf("Branch %s created from %s", name, source),
	})
}

func isCommitSHA(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

func (s *toolset) compareBranches(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	base := stringParam(params, "base")
	head := stringParam(params, "head")
	if base == "" || head == "" {
		return Fail(gherr.MissingParameter("base", "head"))
	}

	comparison, _, err := call.client.Repositories.CompareCommits(ctx, call.owner, call.name, base, head, nil)
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	commits := make([]map[string]any, 0, len(comparison.Commits))
	for _, commit := range comparison.Commits {
		commits = append(commits, commitSummary(commit))
	}

	return OK(map[string]any{
		"repository":    call.repository,
		"base":          base,
		"head":          head,
		"status":        comparison.GetStatus(),
		"ahead_by":      comparison.GetAheadBy(),
		"behind_by":     comparison.GetBehindBy(),
		"total_commits": comparison.GetTotalCommits(),
		"commits":       commits,
		"url":           comparison.GetHTMLURL(),
	})
}
