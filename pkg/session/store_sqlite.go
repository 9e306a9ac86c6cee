// Package session persists chat sessions and their message history in
// SQLite.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sidlabs/docchat/pkg/providers"
)

// Session is one conversation thread. Summary holds the rolling
// conversation summary maintained by the chat service.
type Session struct {
	Key          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	Summary      string
}

// Store is the canonical persistent session storage.
type Store struct {
	db *sql.DB
}

// NewStore creates/opens the session database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single-process store. One shared connection avoids writer lock
	// contention with SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_key TEXT PRIMARY KEY,
			created_at_ms INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 0,
			summary TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_key TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_call_id TEXT NOT NULL DEFAULT '',
			tool_calls_json TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS messages_session_idx ON messages(session_key, seq);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init session schema: %w", err)
		}
	}
	return nil
}

// ensureSession creates the session row if it does not exist.
func (s *Store) ensureSession(ctx context.Context, key string) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_key, created_at_ms, updated_at_ms) VALUES (?, ?, ?)
		 ON CONFLICT(session_key) DO NOTHING`, key, now, now)
	return err
}

// Append stores one message at the end of the session's history.
func (s *Store) Append(ctx context.Context, key string, msg providers.Message) error {
	if key == "" {
		return fmt.Errorf("session key is required")
	}
	if err := s.ensureSession(ctx, key); err != nil {
		return fmt.Errorf("ensure session %s: %w", key, err)
	}

	toolCallsJSON := ""
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("encode tool calls: %w", err)
		}
		toolCallsJSON = string(data)
	}

	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_key, seq, role, content, tool_call_id, tool_calls_json, created_at_ms)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_key = ?), ?, ?, ?, ?, ?)`,
		uuid.NewString(), key, key, msg.Role, msg.Content, msg.ToolCallID, toolCallsJSON, now)
	if err != nil {
		return fmt.Errorf("append message to %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET message_count = message_count + 1, updated_at_ms = ? WHERE session_key = ?`,
		now, key)
	if err != nil {
		return fmt.Errorf("touch session %s: %w", key, err)
	}
	return nil
}

// History returns the session's messages in insertion order.
func (s *Store) History(ctx context.Context, key string) ([]providers.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, tool_call_id, tool_calls_json FROM messages WHERE session_key = ? ORDER BY seq`,
		key)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", key, err)
	}
	defer rows.Close()

	var history []providers.Message
	for rows.Next() {
		var msg providers.Message
		var toolCallsJSON string
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.ToolCallID, &toolCallsJSON); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if toolCallsJSON != "" {
			if err := json.Unmarshal([]byte(toolCallsJSON), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls: %w", err)
			}
		}
		history = append(history, msg)
	}
	return history, rows.Err()
}

// Get returns the session row, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, key string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_key, created_at_ms, updated_at_ms, message_count, summary FROM sessions WHERE session_key = ?`,
		key)

	var sess Session
	var createdMs, updatedMs int64
	err := row.Scan(&sess.Key, &createdMs, &updatedMs, &sess.MessageCount, &sess.Summary)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", key, err)
	}
	sess.CreatedAt = time.UnixMilli(createdMs)
	sess.UpdatedAt = time.UnixMilli(updatedMs)
	return &sess, nil
}

// SetSummary stores the rolling summary for the session.
func (s *Store) SetSummary(ctx context.Context, key, summary string) error {
	if err := s.ensureSession(ctx, key); err != nil {
		return fmt.Errorf("ensure session %s: %w", key, err)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET summary = ?, updated_at_ms = ? WHERE session_key = ?`,
		summary, time.Now().UnixMilli(), key)
	if err != nil {
		return fmt.Errorf("set summary for %s: %w", key, err)
	}
	return nil
}

// Clear removes the session's messages and resets its summary. The
// session row survives so the key stays valid.
func (s *Store) Clear(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_key = ?`, key); err != nil {
		return fmt.Errorf("clear messages for %s: %w", key, err)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET message_count = 0, summary = '', updated_at_ms = ? WHERE session_key = ?`,
		time.Now().UnixMilli(), key)
	if err != nil {
		return fmt.Errorf("reset session %s: %w", key, err)
	}
	return nil
}

// List returns all sessions, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_key, created_at_ms, updated_at_ms, message_count, summary FROM sessions ORDER BY updated_at_ms DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var createdMs, updatedMs int64
		if err := rows.Scan(&sess.Key, &createdMs, &updatedMs, &sess.MessageCount, &sess.Summary); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.CreatedAt = time.UnixMilli(createdMs)
		sess.UpdatedAt = time.UnixMilli(updatedMs)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
