package tools

import (
	"context"
	"fmt"

	"github.com/google/go-github/v66/github"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/agentfleet/ghtools/internal/gherr"
	"github.com/agentfleet/ghtools/internal/manager"
)

func repoSummary(repo *github.Repository) map[string]any {
	return map[string]any{
		"full_name":      repo.GetFullName(),
		"description":    repo.GetDescription(),
		"private":        repo.GetPrivate(),
		"fork":           repo.GetFork(),
		"default_branch": repo.GetDefaultBranch(),
		"language":       repo.GetLanguage(),
		"stars":          repo.GetStargazersCount(),
		"forks":          repo.GetForksCount(),
		"open_issues":    repo.GetOpenIssuesCount(),
		"url":            repo.GetHTMLURL(),
		"created_at":     timeField(repo.GetCreatedAt()),
		"updated_at":     timeField(repo.GetUpdatedAt()),
	}
}

func (s *toolset) repositoryTools() []*opTool {
	return []*opTool{
		{
			name:        "get_repository",
			description: "Get metadata about a repository: description, default branch, language, star and fork counts.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
			}, "repository"),
			run: s.getRepository,
		},
		{
			name:        "list_repositories",
			description: "List repositories for a user or organization, or for the authenticated user when no user is given.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"user":      stringProp("Username or organization to list repositories for (default: authenticated user)"),
				"type":      enumProp("Repository type filter (default: owner)", "all", "owner", "member"),
				"sort":      enumProp("Sort field (default: updated)", "created", "updated", "pushed", "full_name"),
				"direction": enumProp("Sort direction (default: desc)", "asc", "desc"),
				"limit":     intProp("Maximum number of repositories to return (default: 30, max: 100)"),
			}),
			run: s.listRepositories,
		},
		{
			name:        "create_repository",
			description: "Create a new repository for the authenticated user or an organization. Requires appropriate scopes.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"name":         stringProp("Repository name (required)"),
				"organization": stringProp("Organization to create the repository in (default: authenticated user)"),
				"description":  stringProp("Repository description"),
				"private":      boolProp("Create as private repository (default: false)"),
				"auto_init":    boolProp("Initialize with an empty README (default: false)"),
			}, "name"),
			run: s.createRepository,
		},
		{
			name:        "get_file_content",
			description: "Get the decoded content of a file in a repository at an optional ref.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"path":       stringProp("File path within the repository (required)"),
				"ref":        stringProp("Branch, tag, or commit SHA (default: default branch)"),
			}, "repository", "path"),
			run: s.getFileContent,
		},
		{
			name:        "list_repository_contents",
			description: "List the entries of a directory in a repository at an optional ref.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"path":       stringProp("Directory path within the repository (default: repository root)"),
				"ref":        stringProp("Branch, tag, or commit SHA (default: default branch)"),
			}, "repository"),
			run: s.listRepositoryContents,
		},
	}
}

func (s *toolset) getRepository(ctx context.Context, params map[string]any) Result {
	repository := stringParam(params, "repository")
	if repository == "" {
		return Fail(gherr.MissingParameter("repository"))
	}

	repo, err := s.m.Repository(ctx, repository)
	if err != nil {
		return Fail(err)
	}

	return OK(map[string]any{
		"repository": repoSummary(repo),
	})
}

func (s *toolset) listRepositories(ctx context.Context, params map[string]any) Result {
	client, err := s.m.Client()
	if err != nil {
		return Fail(err)
	}
	if err := s.m.Limit(ctx); err != nil {
		return Fail(err)
	}

	limit := intParam(params, "limit", 30)
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	sort := stringParamDefault(params, "sort", "updated")
	direction := stringParamDefault(params, "direction", "desc")

	var repos []*github.Repository
	user := stringParam(params, "user")
	if user == "" {
		opts := &github.RepositoryListByAuthenticatedUserOptions{
			Type:        stringParamDefault(params, "type", "owner"),
			Sort:        sort,
			Direction:   direction,
			ListOptions: github.ListOptions{PerPage: limit},
		}
		repos, _, err = client.Repositories.ListByAuthenticatedUser(ctx, opts)
	} else {
		opts := &github.RepositoryListByUserOptions{
			Type:        stringParamDefault(params, "type", "owner"),
			Sort:        sort,
			Direction:   direction,
			ListOptions: github.ListOptions{PerPage: limit},
		}
		repos, _, err = client.Repositories.ListByUser(ctx, user, opts)
	}
	if err != nil {
		return Fail(manager.MapAPIError(err, ""))
	}

	list := make([]map[string]any, 0, len(repos))
	for _, repo := range repos {
		if len(list) >= limit {
			break
		}
		list = append(list, repoSummary(repo))
	}

	return OK(map[string]any{
		"count":        len(list),
		"repositories": list,
	})
}

func (s *toolset) createRepository(ctx context.Context, params map[string]any) Result {
	client, err := s.m.Client()
	if err != nil {
		return Fail(err)
	}
	if err := s.m.Limit(ctx); err != nil {
		return Fail(err)
	}

	name := stringParam(params, "name")
	if name == "" {
		return Fail(gherr.MissingParameter("name"))
	}

	repo := &github.Repository{
		Name:        github.String(name),
		Description: github.String(stringParam(params, "description")),
		Private:     github.Bool(boolParam(params, "private", false)),
		AutoInit:    github.Bool(boolParam(params, "auto_init", false)),
	}

	created, _, err := client.Repositories.Create(ctx, stringParam(params, "organization"), repo)
	if err != nil {
		return Fail(manager.MapAPIError(err, ""))
	}

	return OK(map[string]any{
		"repository": repoSummary(created),
		"message":    fmt.Sprintf("Repository %s created successfully", created.GetFullName()),
	})
}

func (s *toolset) getFileContent(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	path := stringParam(params, "path")
	if path == "" {
		return Fail(gherr.MissingParameter("path"))
	}
	opts := &github.RepositoryContentGetOptions{Ref: stringParam(params, "ref")}

	file, _, _, err := call.client.Repositories.GetContents(ctx, call.owner, call.name, path, opts)
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}
	if file == nil {
		return Fail(gherr.Validation("Path %q is a directory; use list_repository_contents", path))
	}

	content, err := file.GetContent()
	if err != nil {
		return Fail(gherr.ToolExecution("Failed to decode file content: %v", err))
	}

	return OK(map[string]any{
		"repository": call.repository,
		"path":       path,
		"sha":        file.GetSHA(),
		"size":       file.GetSize(),
		"encoding":   "utf-8",
		"content":    content,
		"url":        file.GetHTMLURL(),
	})
}

func (s *toolset) listRepositoryContents(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	path := stringParam(params, "path")
	opts := &github.RepositoryContentGetOptions{Ref: stringParam(params, "ref")}

	file, entries, _, err := call.client.Repositories.GetContents(ctx, call.owner, call.name, path, opts)
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}
	if entries == nil && file != nil {
		return Fail(gherr.Validation("Path %q is a file; use get_file_content", path))
	}

	list := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		list = append(list, map[string]any{
			"name": entry.GetName(),
			"path": entry.GetPath(),
			"type": entry.GetType(),
			"size": entry.GetSize(),
			"sha":  entry.GetSHA(),
		})
	}

	return OK(map[string]any{
		"repository": call.repository,
		"path":       path,
		"count":      len(list),
		"entries":    list,
	})
}
