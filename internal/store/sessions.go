// ABOUTME: Conversation session persistence for SQLiteStore
// ABOUTME: Stores opaque serialized session blobs keyed by chat and user

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveSessionState stores or replaces the serialized state for a session key.
func (s *SQLiteStore) SaveSessionState(ctx context.Context, key string, state []byte) error {
	query := `
		INSERT INTO sessions (session_key, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, key, state, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("saving session state: %w", err)
	}

	s.logger.Debug("saved session state", "session", key, "size", len(state))
	return nil
}

// GetSessionState retrieves the serialized state for a session key.
// Returns ErrNotFound if no state has been saved.
func (s *SQLiteStore) GetSessionState(ctx context.Context, key string) ([]byte, error) {
	var state []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM sessions WHERE session_key = ?`, key).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session state: %w", err)
	}
	return state, nil
}

// DeleteSessionState removes a session. Deleting a missing session is not an error.
func (s *SQLiteStore) DeleteSessionState(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_key = ?`, key); err != nil {
		return fmt.Errorf("deleting session state: %w", err)
	}
	return nil
}

// ListStaleSessions returns the keys of sessions last saved before the cutoff,
// oldest first.
func (s *SQLiteStore) ListStaleSessions(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_key FROM sessions WHERE updated_at < ? ORDER BY updated_at`,
		before.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("querying stale sessions: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning session key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stale sessions: %w", err)
	}
	return keys, nil
}
