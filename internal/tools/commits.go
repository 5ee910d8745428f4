package tools

import (
	"context"

	"github.com/google/go-github/v66/github"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/agentfleet/ghtools/internal/gherr"
	"github.com/agentfleet/ghtools/internal/manager"
)

func commitSummary(commit *github.RepositoryCommit) map[string]any {
	out := map[string]any{
		"sha":     commit.GetSHA(),
		"message": commit.GetCommit().GetMessage(),
		"author":  commit.GetCommit().GetAuthor().GetName(),
		"date":    timeField(commit.GetCommit().GetAuthor().GetDate()),
		"url":     commit.GetHTMLURL(),
	}
	if login := commit.GetAuthor().GetLogin(); login != "" {
		out["author_login"] = login
	}
	return out
}

func (s *toolset) commitTools() []*opTool {
	return []*opTool{
		{
			name:        "list_commits",
			description: "List commits in a repository, optionally filtered by branch, path, or author.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"sha":        stringProp("Branch name or commit SHA to start listing from (default: default branch)"),
				"path":       stringProp("Only commits touching this path"),
				"author":     stringProp("Filter by author username or email"),
				"limit":      intProp("Maximum number of commits to return (default: 30, max: 100)"),
			}, "repository"),
			run: s.listCommits,
		},
		{
			name:        "get_commit",
			description: "Get a single commit with its stats and changed files.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"sha":        stringProp("The commit SHA (required)"),
			}, "repository", "sha"),
			run: s.getCommit,
		},
	}
}

func (s *toolset) listCommits(ctx context.Context, params map[string]any) Result {
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

	opts := &github.CommitsListOptions{
		SHA:         stringParam(params, "sha"),
		Path:        stringParam(params, "path"),
		Author:      stringParam(params, "author"),
		ListOptions: github.ListOptions{PerPage: limit},
	}

	commits, _, err := call.client.Repositories.ListCommits(ctx, call.owner, call.name, opts)
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	list := make([]map[string]any, 0, len(commits))
	for _, commit := range commits {
		if len(list) >= limit {
			break
		}
		list = append(list, commitSummary(commit))
	}

	return OK(map[string]any{
		"repository": call.repository,
		"count":      len(list),
		"commits":    list,
	})
}

func (s *toolset) getCommit(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	sha := stringParam(params, "sha")
	if sha == "" {
		return Fail(gherr.MissingParameter("sha"))
	}

	commit, _, err := call.client.Repositories.GetCommit(ctx, call.owner, call.name, sha, nil)
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	detail := commitSummary(commit)
	detail["additions"] = commit.GetStats().GetAdditions()
	detail["deletions"] = commit.GetStats().GetDeletions()

	files := make([]map[string]any, 0, len(commit.Files))
	for _, f := range commit.Files {
		files = append(files, map[string]any{
			"filename":  f.GetFilename(),
			"status":    f.GetStatus(),
			"additions": f.GetAdditions(),
			"deletions": f.GetDeletions(),
		})
	}
	detail["files"] = files

	return OK(map[string]any{
		"repository": call.repository,
		"commit":     detail,
	})
}
