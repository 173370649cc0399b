/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gateway

import (
	"context"
	"fmt"
	"sync"

	"chainguard.dev/triagent/llm"
	"chainguard.dev/triagent/trace"
	"github.com/chainguard-dev/clog"
)

// StateKeyUser is the session state key holding the authenticated GitHub
// login.
const StateKeyUser = "github_user"

// Resolver resolves the authenticated GitHub login once and caches it for
// the life of the process. Every turn needs the owner, but the token's
// identity does not change between turns.
type Resolver struct {
	client *Client

	mu    sync.Mutex
	login string
}

// NewResolver builds a resolver over an authenticated gateway client.
func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client}
}

// Owner returns the authenticated login, hitting the API only on the first
// call. Failed lookups are not cached.
func (r *Resolver) Owner(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.login != "" {
		return r.login, nil
	}

	me, err := r.client.GetMe(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve GitHub owner: %w", err)
	}
	login, ok := me["login"].(string)
	if !ok || login == "" {
		return "", fmt.Errorf("authenticated user has no login")
	}

	clog.FromContext(ctx).With("login", login).Info("Resolved GitHub owner")
	r.login = login
	return login, nil
}

// Tool exposes the resolver as the get_github_owner tool. When putState is
// non-nil the resolved login is also written to session state under
// StateKeyUser, mirroring the direct resolution path.
func (r *Resolver) Tool(putState func(ctx context.Context, key string, value any)) llm.Tool {
	return llm.Tool{
		Name:        "get_github_owner",
		Description: "Fetch the authenticated GitHub username.",
		Handler: func(ctx context.Context, call llm.ToolCall, tr *trace.Trace) map[string]any {
			tc := tr.StartToolCall(call.ID, call.Name, nil)
			login, err := r.Owner(ctx)
			if err != nil {
				result := map[string]any{"error": err.Error()}
				tc.Complete(result, err)
				return result
			}
			if putState != nil {
				putState(ctx, StateKeyUser, login)
			}
			result := map[string]any{"owner": login}
			tc.Complete(result, nil)
			return result
		},
	}
}
