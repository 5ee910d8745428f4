package tools

import (
	"context"
	"fmt"

	"github.com/google/go-github/v66/github"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/agentfleet/ghtools/internal/gherr"
	"github.com/agentfleet/ghtools/internal/manager"
)

func releaseSummary(release *github.RepositoryRelease) map[string]any {
	return map[string]any{
		"id":           release.GetID(),
		"tag":          release.GetTagName(),
		"name":         release.GetName(),
		"draft":        release.GetDraft(),
		"prerelease":   release.GetPrerelease(),
		"author":       release.GetAuthor().GetLogin(),
		"created_at":   timeField(release.GetCreatedAt()),
		"published_at": timeField(release.GetPublishedAt()),
		"url":          release.GetHTMLURL(),
	}
}

func (s *toolset) releaseTools() []*opTool {
	return []*opTool{
		{
			name:        "list_releases",
			description: "List releases in a repository.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"limit":      intProp("Maximum number of releases to return (default: 30, max: 100)"),
			}, "repository"),
			run: s.listReleases,
		},
		{
			name:        "get_release",
			description: "Get a release by tag, or the latest release when no tag is given.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"tag":        stringProp("The release tag (default: latest release)"),
			}, "repository"),
			run: s.getRelease,
		},
		{
			name:        "create_release",
			description: "Create a release from an existing tag, or create the tag at a target commitish.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository":       repositoryProp(),
				"tag":              stringProp("The release tag (required)"),
				"name":             stringProp("Release title (default: the tag)"),
				"body":             stringProp("Release notes (supports Markdown)"),
				"draft":            boolProp("Create as draft (default: false)"),
				"prerelease":       boolProp("Mark as prerelease (default: false)"),
				"target_commitish": stringProp("Commitish to tag when the tag does not yet exist"),
			}, "repository", "tag"),
			run: s.createRelease,
		},
		{
			name:        "list_tags",
			description: "List tags in a repository.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"limit":      intProp("Maximum number of tags to return (default: 30, max: 100)"),
			}, "repository"),
			run: s.listTags,
		},
		{
			name:        "create_tag",
			description: "Create a tag at a commit SHA. With a message an annotated tag object is created; otherwise a lightweight tag.",
			schema: objectSchema(map[string]*jsonschema.Schema{
				"repository": repositoryProp(),
				"tag":        stringProp("The tag name (required)"),
				"sha":        stringProp("The commit SHA to tag (required)"),
				"message":    stringProp("Tag message; creates an annotated tag when present"),
			}, "repository", "tag", "sha"),
			run: s.createTag,
		},
	}
}

func (s *toolset) listReleases(ctx context.Context, params map[string]any) Result {
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

	releases, _, err := call.client.Repositories.ListReleases(ctx, call.owner, call.name,
		&github.ListOptions{PerPage: limit})
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	list := make([]map[string]any, 0, len(releases))
	for _, release := range releases {
		if len(list) >= limit {
			break
		}
		list = append(list, releaseSummary(release))
	}

	return OK(map[string]any{
		"repository": call.repository,
		"count":      len(list),
		"releases":   list,
	})
}

func (s *toolset) getRelease(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	var release *github.RepositoryRelease
	if tag := stringParam(params, "tag"); tag != "" {
		release, _, err = call.client.Repositories.GetReleaseByTag(ctx, call.owner, call.name, tag)
	} else {
		release, _, err = call.client.Repositories.GetLatestRelease(ctx, call.owner, call.name)
	}
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	detail := releaseSummary(release)
	detail["body"] = release.GetBody()

	return OK(map[string]any{
		"repository": call.repository,
		"release":    detail,
	})
}

func (s *toolset) createRelease(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	tag := stringParam(params, "tag")
	if tag == "" {
		return Fail(gherr.MissingParameter("tag"))
	}

	release := &github.RepositoryRelease{
		TagName:    github.String(tag),
		Name:       github.String(stringParamDefault(params, "name", tag)),
		Body:       github.String(stringParam(params, "body")),
		Draft:      github.Bool(boolParam(params, "draft", false)),
		Prerelease: github.Bool(boolParam(params, "prerelease", false)),
	}
	if target := stringParam(params, "target_commitish"); target != "" {
		release.TargetCommitish = github.String(target)
	}

	created, _, err := call.client.Repositories.CreateRelease(ctx, call.owner, call.name, release)
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	return OK(map[string]any{
		"repository": call.repository,
		"release":    releaseSummary(created),
		"message":    fmt.Sprintf("Release %s created successfully", created.GetTagName()),
	})
}

func (s *toolset) listTags(ctx context.Context, params map[string]any) Result {
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

	tags, _, err := call.client.Repositories.ListTags(ctx, call.owner, call.name,
		&github.ListOptions{PerPage: limit})
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	list := make([]map[string]any, 0, len(tags))
	for _, tag := range tags {
		if len(list) >= limit {
			break
		}
		list = append(list, map[string]any{
			"name": tag.GetName(),
			"sha":  tag.GetCommit().GetSHA(),
		})
	}

	return OK(map[string]any{
		"repository": call.repository,
		"count":      len(list),
		"tags":       list,
	})
}

func (s *toolset) createTag(ctx context.Context, params map[string]any) Result {
	call, err := s.beginRepoCall(ctx, params)
	if err != nil {
		return Fail(err)
	}

	tag := stringParam(params, "tag")
	sha := stringParam(params, "sha")
	if tag == "" || sha == "" {
		return Fail(gherr.MissingParameter("tag", "sha"))
	}

	target := sha
	annotated := false
	if message := stringParam(params, "message"); message != "" {
		tagObj, _, err := call.client.Git.CreateTag(ctx, call.owner, call.name, &github.Tag{
			Tag:     github.String(tag),
			Message: github.String(message),
			Object:  &github.GitObject{SHA: github.String(sha), Type: github.String("commit")},
		})
		if err != nil {
			return Fail(manager.MapAPIError(err, call.repository))
		}
		target = tagObj.GetSHA()
		annotated = true
	}

	_, _, err = call.client.Git.CreateRef(ctx, call.owner, call.name, &github.Reference{
		Ref:    github.String("refs/tags/" + tag),
		Object: &github.GitObject{SHA: github.String(target)},
	})
	if err != nil {
		return Fail(manager.MapAPIError(err, call.repository))
	}

	return OK(map[string]any{
		"repository": call.repository,
		"tag":        tag,
		"sha":        sha,
		"annotated":  annotated,
		"message":    fmt.Sprintf("Tag %s created successfully", tag),
	})
}
