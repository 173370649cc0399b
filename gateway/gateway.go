/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
)

// Operation names exposed by the gateway. These are the only GitHub
// operations the triage pipeline can reach.
const (
	OpSearchRepositories = "search_repositories"
	OpGetFileContents    = "get_file_contents"
	OpListCommits        = "list_commits"
	OpGetCommit          = "get_commit"
	OpListIssues         = "list_issues"
	OpListPullRequests   = "list_pull_requests"
	OpGetMe              = "get_me"

	OpCreateOrUpdateFile = "create_or_update_file"
	OpCreateBranch       = "create_branch"
	OpDeleteFile         = "delete_file"
	OpCreatePullRequest  = "create_pull_request"
	OpUpdatePullRequest  = "update_pull_request"
)

// writeOperations mutate repository state and are denied to read-only
// clients.
var writeOperations = map[string]bool{
	OpCreateOrUpdateFile: true,
	OpCreateBranch:       true,
	OpDeleteFile:         true,
	OpCreatePullRequest:  true,
	OpUpdatePullRequest:  true,
}

// Scope bounds what a gateway client may do against GitHub.
type Scope int

const (
	// ScopeReadOnly permits only operations that cannot mutate repository
	// state.
	ScopeReadOnly Scope = iota
	// ScopeReadWrite additionally permits file, branch, and pull request
	// mutation.
	ScopeReadWrite
)

// String implements fmt.Stringer.
func (s Scope) String() string {
	switch s {
	case ScopeReadOnly:
		return "read-only"
	case ScopeReadWrite:
		return "read-write"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// Allows reports whether an operation is permitted under this scope.
// Unknown operations are never allowed.
func (s Scope) Allows(operation string) bool {
	if !knownOperations[operation] {
		return false
	}
	if writeOperations[operation] {
		return s == ScopeReadWrite
	}
	return true
}

var knownOperations = map[string]bool{
	OpSearchRepositories: true,
	OpGetFileContents:    true,
	OpListCommits:        true,
	OpGetCommit:          true,
	OpListIssues:         true,
	OpListPullRequests:   true,
	OpGetMe:              true,
	OpCreateOrUpdateFile: true,
	OpCreateBranch:       true,
	OpDeleteFile:         true,
	OpCreatePullRequest:  true,
	OpUpdatePullRequest:  true,
}

// Operations returns the sorted operation names permitted under scope.
func Operations(scope Scope) []string {
	var ops []string
	for op := range knownOperations {
		if scope.Allows(op) {
			ops = append(ops, op)
		}
	}
	sort.Strings(ops)
	return ops
}

// ErrScopeViolation is returned when an operation is attempted outside the
// client's scope.
var ErrScopeViolation = errors.New("operation not permitted by gateway scope")

// Client is a capability-scoped GitHub client. Calls outside the client's
// scope fail with ErrScopeViolation before any network traffic happens.
type Client struct {
	gh    *github.Client
	scope Scope
}

type options struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes client construction.
type Option func(*options)

// WithBaseURL points the client at an alternate GitHub API endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHTTPClient overrides the HTTP client. Token authentication is skipped
// when set, so the provided client must handle it.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// New builds a gateway client authenticated with a personal access token and
// bounded to the given scope.
func New(ctx context.Context, token string, scope Scope, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.httpClient
	if hc == nil {
		if token == "" {
			return nil, errors.New("gateway token must not be empty")
		}
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(ctx, ts)
	}

	gh := github.NewClient(hc)
	if o.baseURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(o.baseURL, o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to set gateway base URL: %w", err)
		}
	}

	return &Client{gh: gh, scope: scope}, nil
}

// Scope returns the scope the client was constructed with.
func (c *Client) Scope() Scope { return c.scope }

// check gates an operation on the client's scope.
func (c *Client) check(operation string) error {
	if !c.scope.Allows(operation) {
		return fmt.Errorf("%w: %s requires more than %s", ErrScopeViolation, operation, c.scope)
	}
	return nil
}
