/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. State does not survive a
// restart; use the SQLite store for that.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[Scope]map[string]*Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[Scope]map[string]*Session)}
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, scope Scope, id string, state map[string]any) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[scope][id]; exists {
		return nil, fmt.Errorf("session %q already exists", id)
	}
	s := newSession(m, scope, id, time.Now(), state)
	if m.sessions[scope] == nil {
		m.sessions[scope] = make(map[string]*Session)
	}
	m.sessions[scope][id] = s
	return s, nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, scope Scope, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[scope][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, scope Scope) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]*Session, 0, len(m.sessions[scope]))
	for _, s := range m.sessions[scope] {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// persist is a no-op: the session's own map is the source of truth.
func (m *MemoryStore) persist(context.Context, Scope, string, string, any) error {
	return nil
}
