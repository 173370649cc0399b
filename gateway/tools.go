/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gateway

import (
	"context"

	"chainguard.dev/triagent/llm"
	"chainguard.dev/triagent/llm/params"
	"chainguard.dev/triagent/trace"
	"github.com/chainguard-dev/clog"
)

// Tools returns the model-facing tool set for this client. Only operations
// the client's scope allows are exposed, so a read-only client never even
// advertises mutation tools to the model.
func (c *Client) Tools() map[string]llm.Tool {
	all := map[string]llm.Tool{
		OpSearchRepositories: c.searchRepositoriesTool(),
		OpGetFileContents:    c.getFileContentsTool(),
		OpListCommits:        c.listCommitsTool(),
		OpGetCommit:          c.getCommitTool(),
		OpListIssues:         c.listIssuesTool(),
		OpListPullRequests:   c.listPullRequestsTool(),
		OpGetMe:              c.getMeTool(),
		OpCreateOrUpdateFile: c.createOrUpdateFileTool(),
		OpCreateBranch:       c.createBranchTool(),
		OpDeleteFile:         c.deleteFileTool(),
		OpCreatePullRequest:  c.createPullRequestTool(),
		OpUpdatePullRequest:  c.updatePullRequestTool(),
	}
	tools := make(map[string]llm.Tool, len(all))
	for name, tool := range all {
		if c.scope.Allows(name) {
			tools[name] = tool
		}
	}
	return tools
}

// run executes one gateway operation under a tool-call trace, converting
// errors into error result maps the model can react to.
func run(ctx context.Context, tr *trace.Trace, call llm.ToolCall, args map[string]any, op func(context.Context) (map[string]any, error)) map[string]any {
	tc := tr.StartToolCall(call.ID, call.Name, args)
	result, err := op(ctx)
	if err != nil {
		clog.FromContext(ctx).With("tool", call.Name).With("error", err).Warn("Gateway operation failed")
		result = params.ErrorWithContext(err, nil)
	}
	tc.Complete(result, err)
	return result
}

// required extracts a required string argument, recording the failure on the
// trace when absent.
func required(tr *trace.Trace, call llm.ToolCall, name string) (string, map[string]any) {
	value, err := params.Extract[string](call.Args, name)
	if err != nil {
		tr.BadToolCall(call.ID, call.Name, call.Args, err)
		return "", params.Error("%s", err)
	}
	return value, nil
}

func (c *Client) searchRepositoriesTool() llm.Tool {
	return llm.Tool{
		Name:        OpSearchRepositories,
		Description: "Search GitHub repositories. Accepts GitHub search syntax, e.g. 'booking-app user:alice'.",
		Parameters: []llm.Parameter{
			{Name: "query", Type: "string", Description: "GitHub repository search query", Required: true},
		},
		Handler: func(ctx context.Context, call llm.ToolCall, tr *trace.Trace) map[string]any {
			query, errResp := required(tr, call, "query")
			if errResp != nil {
				return errResp
			}
			return run(ctx, tr, call, map[string]any{"query": query}, func(ctx context.Context) (map[string]any, error) {
				return c.SearchRepositories(ctx, query)
			})
		},
	}
}

func (c *Client) getFileContentsTool() llm.Tool {
	return llm.Tool{
		Name:        OpGetFileContents,
		Description: "Read a file or list a directory in a repository. Returns decoded file content.",
		Parameters: []llm.Parameter{
			{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
			{Name: "repo", Type: "string", Description: "Repository name", Required: true},
			{Name: "path", Type: "string", Description: "File or directory path; empty lists the repository root", Required: false},
			{Name: "ref", Type: "string", Description: "Branch, tag, or commit SHA; empty uses the default branch", Required: false},
		},
		Handler: func(ctx context.Context, call llm.ToolCall, tr *trace.Trace) map[string]any {
			owner, errResp := required(tr, call, "owner")
			if errResp != nil {
				return errResp
			}
			repo, errResp := required(tr, call, "repo")
			if errResp != nil {
				return errResp
			}
			path, _ := params.ExtractOptional(call.Args, "path", "")
			ref, _ := params.ExtractOptional(call.Args, "ref", "")
			return run(ctx, tr, call, map[string]any{"owner": owner, "repo": repo, "path": path, "ref": ref}, func(ctx context.Context) (map[string]any, error) {
				return c.GetFileContents(ctx, owner, repo, path, ref)
			})
		},
	}
}

func (c *Client) listCommitsTool() llm.Tool {
	return llm.Tool{
		Name:        OpListCommits,
		Description: "List recent commits on a branch.",
		Parameters: []llm.Parameter{
			{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
			{Name: "repo", Type: "string", Description: "Repository name", Required: true},
			{Name: "ref", Type: "string", Description: "Branch or SHA to list from; empty uses the default branch", Required: false},
		},
		Handler: func(ctx context.Context, call llm.ToolCall, tr *trace.Trace) map[string]any {
			owner, errResp := required(tr, call, "owner")
			if errResp != nil {
				return errResp
			}
			repo, errResp := required(tr, call, "repo")
			if errResp != nil {
				return errResp
			}
			ref, _ := params.ExtractOptional(call.Args, "ref", "")
			return run(ctx, tr, call, map[string]any{"owner": owner, "repo": repo, "ref": ref}, func(ctx context.Context) (map[string]any, error) {
				return c.ListCommits(ctx, owner, repo, ref)
			})
		},
	}
}

func (c *Client) getCommitTool() llm.Tool {
	return llm.Tool{
		Name:        OpGetCommit,
		Description: "Fetch one commit including its changed files and patches.",
		Parameters: []llm.Parameter{
			{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
			{Name: "repo", Type: "string", Description: "Repository name", Required: true},
			{Name: "sha", Type: "string", Description: "Commit SHA", Required: true},
		},
		Handler: func(ctx context.Context, call llm.ToolCall, tr *trace.Trace) map[string]any {
			owner, errResp := required(tr, call, "owner")
			if errResp != nil {
				return errResp
			}
			repo, errResp := required(tr, call, "repo")
			if errResp != nil {
				return errResp
			}
			sha, errResp := required(tr, call, "sha")
			if errResp != nil {
				return errResp
			}
			return run(ctx, tr, call, map[string]any{"owner": owner, "repo": repo, "sha": sha}, func(ctx context.Context) (map[string]any, error) {
				return c.GetCommit(ctx, owner, repo, sha)
			})
		},
	}
}

func (c *Client) listIssuesTool() llm.Tool {
	return llm.Tool{
		Name:        OpListIssues,
		Description: "List issues on a repository.",
		Parameters: []llm.Parameter{
			{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
			{Name: "repo", Type: "string", Description: "Repository name", Required: true},
			{Name: "state", Type: "string", Description: "open, closed, or all; empty means open", Required: false},
		},
		Handler: func(ctx context.Context, call llm.ToolCall, tr *trace.Trace) map[string]any {
			owner, errResp := required(tr, call, "owner")
			if errResp != nil {
				return errResp
			}
			repo, errResp := required(tr, call, "repo")
			if errResp != nil {
				return errResp
			}
			state, _ := params.ExtractOptional(call.Args, "state", "")
			return run(ctx, tr, call, map[string]any{"owner": owner, "repo": repo, "state": state}, func(ctx context.Context) (map[string]any, error) {
				return c.ListIssues(ctx, owner, repo, state)
			})
		},
	}
}

func (c *Client) listPullRequestsTool() llm.Tool {
	return llm.Tool{
		Name:        OpListPullRequests,
		Description: "List pull requests on a repository.",
		Parameters: []llm.Parameter{
			{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
			{Name: "repo", Type: "string", Description: "Repository name", Required: true},
			{Name: "state", Type: "string", Description: "open, closed, or all; empty means open", Required: false},
		},
		Handler: func(ctx context.Context, call llm.ToolCall, tr *trace.Trace) map[string]any {
			owner, errResp := required(tr, call, "owner")
			if errResp != nil {
				return errResp
			}
			repo, errResp := required(tr, call, "repo")
			if errResp != nil {
				return errResp
			}
			state, _ := params.ExtractOptional(call.Args, "state", "")
			return run(ctx, tr, call, map[string]any{"owner": owner, "repo": repo, "state": state}, func(ctx context.Context) (map[string]any, error) {
				return c.ListPullRequests(ctx, owner, repo, state)
			})
		},
	}
}

func (c *Client) getMeTool() llm.Tool {
	return llm.Tool{
		Name:        OpGetMe,
		Description: "Fetch the authenticated GitHub user.",
		Handler: func(ctx context.Context, call llm.ToolCall, tr *trace.Trace) map[string]any {
			return run(ctx, tr, call, nil, func(ctx context.Context) (map[string]any, error) {
				return c.GetMe(ctx)
			})
		},
	}
}

func (c *Client) createOrUpdateFileTool() llm.Tool {
	return llm.Tool{
		Name:        OpCreateOrUpdateFile,
		Description: "Create a file or overwrite an existing one on a branch with a commit.",
		Parameters: []llm.Parameter{
			{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
			{Name: "repo", Type: "string", Description: "Repository name", Required: true},
			{Name: "path", Type: "string", Description: "File path to write", Required: true},
			{Name: "branch", Type: "string", Description: "Branch to commit to", Required: true},
			{Name: "message", Type: "string", Description: "Commit message", Required: true},
			{Name: "content", Type: "string", Description: "Full new file content", Required: true},
		},
		Handler: func(ctx context.Context, call llm.ToolCall, tr *trace.Trace) map[string]any {
			var owner, repo, path, branch, message, content string
			for _, p := range []struct {
				name string
				dst  *string
			}{
				{"owner", &owner}, {"repo", &repo}, {"path", &path},
				{"branch", &branch}, {"message", &message}, {"content", &content},
			} {
				value, errResp := required(tr, call, p.name)
				if errResp != nil {
					return errResp
				}
				*p.dst = value
			}
			args := map[string]any{"owner": owner, "repo": repo, "path": path, "branch": branch, "message": message}
			return run(ctx, tr, call, args, func(ctx context.Context) (map[string]any, error) {
				return c.CreateOrUpdateFile(ctx, owner, repo, path, branch, message, content)
			})
		},
	}
}

func (c *Client) createBranchTool() llm.Tool {
	return llm.Tool{
		Name:        OpCreateBranch,
		Description: "Create a branch from the head of another branch.",
		Parameters: []llm.Parameter{
			{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
			{Name: "repo", Type: "string", Description: "Repository name", Required: true},
			{Name: "branch", Type: "string", Description: "New branch name", Required: true},
			{Name: "from_branch", Type: "string", Description: "Branch to fork from", Required: true},
		},
		Handler: func(ctx context.Context, call llm.ToolCall, tr *trace.Trace) map[string]any {
			owner, errResp := required(tr, call, "owner")
			if errResp != nil {
				return errResp
			}
			repo, errResp := required(tr, call, "repo")
			if errResp != nil {
				return errResp
			}
			branch, errResp := required(tr, call, "branch")
			if errResp != nil {
				return errResp
			}
			from, errResp := required(tr, call, "from_branch")
			if errResp != nil {
				return errResp
			}
			args := map[string]any{"owner": owner, "repo": repo, "branch": branch, "from_branch": from}
			return run(ctx, tr, call, args, func(ctx context.Context) (map[string]any, error) {
				return c.CreateBranch(ctx, owner, repo, branch, from)
			})
		},
	}
}

func (c *Client) deleteFileTool() llm.Tool {
	return llm.Tool{
		Name:        OpDeleteFile,
		Description: "Delete a file from a branch with a commit.",
		Parameters: []llm.Parameter{
			{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
			{Name: "repo", Type: "string", Description: "Repository name", Required: true},
			{Name: "path", Type: "string", Description: "File path to delete", Required: true},
			{Name: "branch", Type: "string", Description: "Branch to commit to", Required: true},
			{Name: "message", Type: "string", Description: "Commit message", Required: true},
		},
		Handler: func(ctx context.Context, call llm.ToolCall, tr *trace.Trace) map[string]any {
			owner, errResp := required(tr, call, "owner")
			if errResp != nil {
				return errResp
			}
			repo, errResp := required(tr, call, "repo")
			if errResp != nil {
				return errResp
			}
			path, errResp := required(tr, call, "path")
			if errResp != nil {
				return errResp
			}
			branch, errResp := required(tr, call, "branch")
			if errResp != nil {
				return errResp
			}
			message, errResp := required(tr, call, "message")
			if errResp != nil {
				return errResp
			}
			args := map[string]any{"owner": owner, "repo": repo, "path": path, "branch": branch}
			return run(ctx, tr, call, args, func(ctx context.Context) (map[string]any, error) {
				return c.DeleteFile(ctx, owner, repo, path, branch, message)
			})
		},
	}
}

func (c *Client) createPullRequestTool() llm.Tool {
	return llm.Tool{
		Name:        OpCreatePullRequest,
		Description: "Open a pull request from one branch into another.",
		Parameters: []llm.Parameter{
			{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
			{Name: "repo", Type: "string", Description: "Repository name", Required: true},
			{Name: "title", Type: "string", Description: "Pull request title", Required: true},
			{Name: "body", Type: "string", Description: "Pull request description", Required: false},
			{Name: "head", Type: "string", Description: "Branch with the changes", Required: true},
			{Name: "base", Type: "string", Description: "Branch to merge into", Required: true},
		},
		Handler: func(ctx context.Context, call llm.ToolCall, tr *trace.Trace) map[string]any {
			owner, errResp := required(tr, call, "owner")
			if errResp != nil {
				return errResp
			}
			repo, errResp := required(tr, call, "repo")
			if errResp != nil {
				return errResp
			}
			title, errResp := required(tr, call, "title")
			if errResp != nil {
				return errResp
			}
			head, errResp := required(tr, call, "head")
			if errResp != nil {
				return errResp
			}
			base, errResp := required(tr, call, "base")
			if errResp != nil {
				return errResp
			}
			body, _ := params.ExtractOptional(call.Args, "body", "")
			args := map[string]any{"owner": owner, "repo": repo, "title": title, "head": head, "base": base}
			return run(ctx, tr, call, args, func(ctx context.Context) (map[string]any, error) {
				return c.CreatePullRequest(ctx, owner, repo, title, body, head, base)
			})
		},
	}
}

func (c *Client) updatePullRequestTool() llm.Tool {
	return llm.Tool{
		Name:        OpUpdatePullRequest,
		Description: "Edit the title, body, or state of an existing pull request.",
		Parameters: []llm.Parameter{
			{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
			{Name: "repo", Type: "string", Description: "Repository name", Required: true},
			{Name: "number", Type: "integer", Description: "Pull request number", Required: true},
			{Name: "title", Type: "string", Description: "New title; empty leaves it unchanged", Required: false},
			{Name: "body", Type: "string", Description: "New body; empty leaves it unchanged", Required: false},
			{Name: "state", Type: "string", Description: "open or closed; empty leaves it unchanged", Required: false},
		},
		Handler: func(ctx context.Context, call llm.ToolCall, tr *trace.Trace) map[string]any {
			owner, errResp := required(tr, call, "owner")
			if errResp != nil {
				return errResp
			}
			repo, errResp := required(tr, call, "repo")
			if errResp != nil {
				return errResp
			}
			number, err := params.Extract[int](call.Args, "number")
			if err != nil {
				tr.BadToolCall(call.ID, call.Name, call.Args, err)
				return params.Error("%s", err)
			}
			title, _ := params.ExtractOptional(call.Args, "title", "")
			body, _ := params.ExtractOptional(call.Args, "body", "")
			state, _ := params.ExtractOptional(call.Args, "state", "")
			args := map[string]any{"owner": owner, "repo": repo, "number": number}
			return run(ctx, tr, call, args, func(ctx context.Context) (map[string]any, error) {
				return c.UpdatePullRequest(ctx, owner, repo, number, title, body, state)
			})
		},
	}
}
