/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package session

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a session ID does not exist in the store.
var ErrNotFound = errors.New("session not found")

// Scope names the application and user a session belongs to. Every store
// operation is keyed on (app, user, id), so one database serves multiple
// applications and users without their sessions bleeding together.
type Scope struct {
	App  string
	User string
}

// Store persists triage sessions and their state.
type Store interface {
	// Create makes a new session with the given ID and initial state.
	Create(ctx context.Context, scope Scope, id string, state map[string]any) (*Session, error)
	// Get loads an existing session. Returns ErrNotFound when absent.
	Get(ctx context.Context, scope Scope, id string) (*Session, error)
	// List returns the scope's session IDs, oldest first.
	List(ctx context.Context, scope Scope) ([]string, error)

	// persist write-through hook for Session.PutState.
	persist(ctx context.Context, scope Scope, sessionID, key string, value any) error
}

// NewID mints a fresh session ID.
func NewID() string {
	return uuid.NewString()
}

// Session is one conversation's identity and its key-value state. State
// writes go through the owning store, so a session survives restarts when
// the store does.
type Session struct {
	ID        string
	Scope     Scope
	CreatedAt time.Time

	store Store

	mu    sync.RWMutex
	state map[string]any
}

func newSession(store Store, scope Scope, id string, createdAt time.Time, state map[string]any) *Session {
	s := &Session{
		ID:        id,
		Scope:     scope,
		CreatedAt: createdAt,
		store:     store,
		state:     make(map[string]any, len(state)),
	}
	maps.Copy(s.state, state)
	return s
}

// State returns the value stored under key.
func (s *Session) State(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.state[key]
	return value, ok
}

// StateString returns the value under key as a string, or empty when absent
// or not a string.
func (s *Session) StateString(key string) string {
	value, ok := s.State(key)
	if !ok {
		return ""
	}
	str, _ := value.(string)
	return str
}

// PutState writes a state key through to the store.
func (s *Session) PutState(ctx context.Context, key string, value any) error {
	if err := s.store.persist(ctx, s.Scope, s.ID, key, value); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[key] = value
	return nil
}

// Snapshot returns a copy of the current state map.
func (s *Session) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]any, len(s.state))
	maps.Copy(snapshot, s.state)
	return snapshot
}
