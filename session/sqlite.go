/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	app_name   TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	id         TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (app_name, user_id, id)
);

CREATE TABLE IF NOT EXISTS session_state (
	app_name   TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	session_id TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (app_name, user_id, session_id, key),
	FOREIGN KEY (app_name, user_id, session_id)
		REFERENCES sessions(app_name, user_id, id) ON DELETE CASCADE
);
`

// SQLiteStore persists sessions to a SQLite database so state survives
// restarts. State values round-trip through JSON.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) a session database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping session database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	clog.FromContext(ctx).With("path", path).Info("Opened session database")
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, scope Scope, id string, state map[string]any) (*Session, error) {
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (app_name, user_id, id, created_at) VALUES (?, ?, ?, ?)`,
		scope.App, scope.User, id, now); err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", id, err)
	}
	for key, value := range state {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode state %q: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_state (app_name, user_id, session_id, key, value) VALUES (?, ?, ?, ?, ?)`,
			scope.App, scope.User, id, key, string(encoded)); err != nil {
			return nil, fmt.Errorf("failed to write state %q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session %s: %w", id, err)
	}
	return newSession(s, scope, id, now, state), nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, scope Scope, id string) (*Session, error) {
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM sessions WHERE app_name = ? AND user_id = ? AND id = ?`,
		scope.App, scope.User, id).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM session_state WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		scope.App, scope.User, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load state for session %s: %w", id, err)
	}
	defer rows.Close()

	state := map[string]any{}
	for rows.Next() {
		var key, encoded string
		if err := rows.Scan(&key, &encoded); err != nil {
			return nil, fmt.Errorf("failed to scan state row: %w", err)
		}
		var value any
		if err := json.Unmarshal([]byte(encoded), &value); err != nil {
			return nil, fmt.Errorf("failed to decode state %q: %w", key, err)
		}
		state[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read state rows: %w", err)
	}
	return newSession(s, scope, id, createdAt, state), nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, scope Scope) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE app_name = ? AND user_id = ? ORDER BY created_at, id`,
		scope.App, scope.User)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// persist upserts one state key.
func (s *SQLiteStore) persist(ctx context.Context, scope Scope, sessionID, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode state %q: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_state (app_name, user_id, session_id, key, value, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (app_name, user_id, session_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		scope.App, scope.User, sessionID, key, string(encoded))
	if err != nil {
		return fmt.Errorf("failed to persist state %q: %w", key, err)
	}
	return nil
}
