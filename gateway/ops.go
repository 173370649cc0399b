/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gateway

import (
	"context"
	"fmt"

	"github.com/google/go-github/v84/github"
)

// Result maps are shaped for model consumption: flat keys, string-heavy,
// truncated lists. per page caps keep tool results inside the context window.
const perPage = 50

// SearchRepositories searches repositories matching the query.
func (c *Client) SearchRepositories(ctx context.Context, query string) (map[string]any, error) {
	if err := c.check(OpSearchRepositories); err != nil {
		return nil, err
	}
	result, _, err := c.gh.Search.Repositories(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search repositories: %w", err)
	}
	repos := make([]map[string]any, 0, len(result.Repositories))
	for _, repo := range result.Repositories {
		repos = append(repos, map[string]any{
			"full_name":      repo.GetFullName(),
			"description":    repo.GetDescription(),
			"default_branch": repo.GetDefaultBranch(),
			"language":       repo.GetLanguage(),
			"open_issues":    repo.GetOpenIssuesCount(),
		})
	}
	return map[string]any{
		"total_count":  result.GetTotal(),
		"repositories": repos,
	}, nil
}

// GetFileContents fetches a file or directory listing at path. An empty ref
// reads the default branch.
func (c *Client) GetFileContents(ctx context.Context, owner, repo, path, ref string) (map[string]any, error) {
	if err := c.check(OpGetFileContents); err != nil {
		return nil, err
	}
	file, dir, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", path, err)
	}
	if file != nil {
		content, err := file.GetContent()
		if err != nil {
			return nil, fmt.Errorf("failed to decode contents of %s: %w", path, err)
		}
		return map[string]any{
			"type":    "file",
			"path":    file.GetPath(),
			"sha":     file.GetSHA(),
			"size":    file.GetSize(),
			"content": content,
		}, nil
	}
	entries := make([]map[string]any, 0, len(dir))
	for _, entry := range dir {
		entries = append(entries, map[string]any{
			"type": entry.GetType(),
			"path": entry.GetPath(),
			"size": entry.GetSize(),
		})
	}
	return map[string]any{
		"type":    "dir",
		"path":    path,
		"entries": entries,
	}, nil
}

// ListCommits lists recent commits on a ref. An empty ref lists the default
// branch.
func (c *Client) ListCommits(ctx context.Context, owner, repo, ref string) (map[string]any, error) {
	if err := c.check(OpListCommits); err != nil {
		return nil, err
	}
	commits, _, err := c.gh.Repositories.ListCommits(ctx, owner, repo, &github.CommitsListOptions{
		SHA:         ref,
		ListOptions: github.ListOptions{PerPage: perPage},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}
	summaries := make([]map[string]any, 0, len(commits))
	for _, commit := range commits {
		summaries = append(summaries, map[string]any{
			"sha":     commit.GetSHA(),
			"message": commit.GetCommit().GetMessage(),
			"author":  commit.GetCommit().GetAuthor().GetName(),
			"date":    commit.GetCommit().GetAuthor().GetDate().String(),
		})
	}
	return map[string]any{"commits": summaries}, nil
}

// GetCommit fetches one commit including its changed files.
func (c *Client) GetCommit(ctx context.Context, owner, repo, sha string) (map[string]any, error) {
	if err := c.check(OpGetCommit); err != nil {
		return nil, err
	}
	commit, _, err := c.gh.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", sha, err)
	}
	files := make([]map[string]any, 0, len(commit.Files))
	for _, f := range commit.Files {
		files = append(files, map[string]any{
			"filename":  f.GetFilename(),
			"status":    f.GetStatus(),
			"additions": f.GetAdditions(),
			"deletions": f.GetDeletions(),
			"patch":     f.GetPatch(),
		})
	}
	return map[string]any{
		"sha":     commit.GetSHA(),
		"message": commit.GetCommit().GetMessage(),
		"author":  commit.GetCommit().GetAuthor().GetName(),
		"files":   files,
	}, nil
}

// ListIssues lists issues on a repository. The state filter accepts open,
// closed, or all; empty means open.
func (c *Client) ListIssues(ctx context.Context, owner, repo, state string) (map[string]any, error) {
	if err := c.check(OpListIssues); err != nil {
		return nil, err
	}
	issues, _, err := c.gh.Issues.ListByRepo(ctx, owner, repo, &github.IssueListByRepoOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: perPage},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	summaries := make([]map[string]any, 0, len(issues))
	for _, issue := range issues {
		// The issues API returns pull requests too.
		if issue.IsPullRequest() {
			continue
		}
		summaries = append(summaries, map[string]any{
			"number": issue.GetNumber(),
			"title":  issue.GetTitle(),
			"body":   issue.GetBody(),
			"state":  issue.GetState(),
			"labels": labelNames(issue.Labels),
		})
	}
	return map[string]any{"issues": summaries}, nil
}

// ListPullRequests lists pull requests on a repository.
func (c *Client) ListPullRequests(ctx context.Context, owner, repo, state string) (map[string]any, error) {
	if err := c.check(OpListPullRequests); err != nil {
		return nil, err
	}
	prs, _, err := c.gh.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: perPage},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests: %w", err)
	}
	summaries := make([]map[string]any, 0, len(prs))
	for _, pr := range prs {
		summaries = append(summaries, map[string]any{
			"number": pr.GetNumber(),
			"title":  pr.GetTitle(),
			"state":  pr.GetState(),
			"head":   pr.GetHead().GetRef(),
			"base":   pr.GetBase().GetRef(),
		})
	}
	return map[string]any{"pull_requests": summaries}, nil
}

// GetMe returns the authenticated user.
func (c *Client) GetMe(ctx context.Context) (map[string]any, error) {
	if err := c.check(OpGetMe); err != nil {
		return nil, err
	}
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated user: %w", err)
	}
	return map[string]any{
		"login": user.GetLogin(),
		"name":  user.GetName(),
	}, nil
}

// CreateOrUpdateFile writes content to a path on a branch, creating the file
// when absent and updating it when present.
func (c *Client) CreateOrUpdateFile(ctx context.Context, owner, repo, path, branch, message, content string) (map[string]any, error) {
	if err := c.check(OpCreateOrUpdateFile); err != nil {
		return nil, err
	}
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: []byte(content),
		Branch:  github.Ptr(branch),
	}
	// Updates need the current blob SHA; absence means create.
	existing, _, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: branch})
	if err == nil && existing != nil {
		opts.SHA = github.Ptr(existing.GetSHA())
	}
	resp, _, err := c.gh.Repositories.CreateFile(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return map[string]any{
		"path":       path,
		"branch":     branch,
		"commit_sha": resp.GetSHA(),
	}, nil
}

// CreateBranch creates a branch pointing at the head of fromBranch.
func (c *Client) CreateBranch(ctx context.Context, owner, repo, branch, fromBranch string) (map[string]any, error) {
	if err := c.check(OpCreateBranch); err != nil {
		return nil, err
	}
	base, _, err := c.gh.Git.GetRef(ctx, owner, repo, "refs/heads/"+fromBranch)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve branch %s: %w", fromBranch, err)
	}
	ref, _, err := c.gh.Git.CreateRef(ctx, owner, repo, github.CreateRef{
		Ref: "refs/heads/" + branch,
		SHA: base.GetObject().GetSHA(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create branch %s: %w", branch, err)
	}
	return map[string]any{
		"branch": branch,
		"sha":    ref.GetObject().GetSHA(),
	}, nil
}

// DeleteFile removes a file from a branch.
func (c *Client) DeleteFile(ctx context.Context, owner, repo, path, branch, message string) (map[string]any, error) {
	if err := c.check(OpDeleteFile); err != nil {
		return nil, err
	}
	existing, _, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s for deletion: %w", path, err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}
	resp, _, err := c.gh.Repositories.DeleteFile(ctx, owner, repo, path, &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		SHA:     github.Ptr(existing.GetSHA()),
		Branch:  github.Ptr(branch),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return map[string]any{
		"path":       path,
		"branch":     branch,
		"commit_sha": resp.GetSHA(),
	}, nil
}

// CreatePullRequest opens a pull request from head into base.
func (c *Client) CreatePullRequest(ctx context.Context, owner, repo, title, body, head, base string) (map[string]any, error) {
	if err := c.check(OpCreatePullRequest); err != nil {
		return nil, err
	}
	pr, _, err := c.gh.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pull request: %w", err)
	}
	return map[string]any{
		"number": pr.GetNumber(),
		"url":    pr.GetHTMLURL(),
	}, nil
}

// UpdatePullRequest edits an existing pull request. Empty fields are left
// unchanged.
func (c *Client) UpdatePullRequest(ctx context.Context, owner, repo string, number int, title, body, state string) (map[string]any, error) {
	if err := c.check(OpUpdatePullRequest); err != nil {
		return nil, err
	}
	edit := &github.PullRequest{}
	if title != "" {
		edit.Title = github.Ptr(title)
	}
	if body != "" {
		edit.Body = github.Ptr(body)
	}
	if state != "" {
		edit.State = github.Ptr(state)
	}
	pr, _, err := c.gh.PullRequests.Edit(ctx, owner, repo, number, edit)
	if err != nil {
		return nil, fmt.Errorf("failed to update pull request #%d: %w", number, err)
	}
	return map[string]any{
		"number": pr.GetNumber(),
		"state":  pr.GetState(),
		"title":  pr.GetTitle(),
	}, nil
}

func labelNames(labels []*github.Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.GetName())
	}
	return names
}
