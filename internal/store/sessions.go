package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"omnichat/internal/logging"
)

// =============================================================================
// SESSIONS AND MESSAGES
// =============================================================================

// Session kinds. Every assistant mode persists into the same tables.
const (
	KindChat     = "chat"
	KindResearch = "research"
	KindYouTube  = "youtube"
	KindLive     = "live"
)

// Message roles, matching the Gemini wire values.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Session is one conversation (or research run, summary, live transcript).
type Session struct {
	ID        string
	Title     string
	Kind      string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one turn in a session. Attachments holds staged media
// paths or uploaded file URIs for multimodal turns.
type Message struct {
	SessionID     string
	Seq           int
	Role          string
	Content       string
	Attachments   []string
	TokenEstimate int
	CreatedAt     time.Time
}

// CreateSession inserts a new session row.
func (s *Store) CreateSession(id, title, kind, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kind == "" {
		kind = KindChat
	}

	logging.StoreDebug("Creating session: id=%s kind=%s model=%s", id, kind, model)

	_, err := s.db.Exec(
		"INSERT INTO sessions (id, title, kind, model) VALUES (?, ?, ?, ?)",
		id, title, kind, model,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to create session %s: %v", id, err)
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// TouchSession refreshes updated_at and optionally the title. An empty
// title leaves the existing one in place.
func (s *Store) TouchSession(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if title != "" {
		_, err = s.db.Exec(
			"UPDATE sessions SET title = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
			title, id,
		)
	} else {
		_, err = s.db.Exec(
			"UPDATE sessions SET updated_at = CURRENT_TIMESTAMP WHERE id = ?",
			id,
		)
	}
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to touch session %s: %v", id, err)
	}
	return err
}

// SetSessionModel records the model a session is pinned to.
func (s *Store) SetSessionModel(id, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"UPDATE sessions SET model = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		model, id,
	)
	return err
}

// GetSession loads one session by ID.
func (s *Store) GetSession(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sess Session
	err := s.db.QueryRow(
		"SELECT id, title, kind, model, created_at, updated_at FROM sessions WHERE id = ?",
		id,
	).Scan(&sess.ID, &sess.Title, &sess.Kind, &sess.Model, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session not found: %s", id)
		}
		return nil, err
	}
	return &sess, nil
}

// ListSessions returns sessions newest-first, optionally filtered by kind.
func (s *Store) ListSessions(kind string, limit int) ([]Session, error) {
	timer := logging.StartTimer(logging.CategoryStore, "ListSessions")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	var (
		rows *sql.Rows
		err  error
	)
	if kind != "" {
		rows, err = s.db.Query(
			`SELECT id, title, kind, model, created_at, updated_at
			 FROM sessions WHERE kind = ?
			 ORDER BY updated_at DESC LIMIT ?`,
			kind, limit,
		)
	} else {
		rows, err = s.db.Query(
			`SELECT id, title, kind, model, created_at, updated_at
			 FROM sessions
			 ORDER BY updated_at DESC LIMIT ?`,
			limit,
		)
	}
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to list sessions: %v", err)
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.Kind, &sess.Model, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}

	logging.StoreDebug("Listed %d sessions (kind=%q)", len(sessions), kind)
	return sessions, nil
}

// DeleteSession removes a session with its messages and recall entries.
func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.Store("Deleting session %s", id)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM messages WHERE session_id = ?",
		"DELETE FROM recall WHERE session_id = ?",
		"DELETE FROM sessions WHERE id = ?",
	} {
		if _, err := tx.Exec(stmt, id); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to delete session %s: %v", id, err)
			return err
		}
	}

	return tx.Commit()
}

// AppendMessage records one turn. INSERT OR IGNORE keeps replays
// idempotent: a duplicate (session, seq) pair is silently skipped.
func (s *Store) AppendMessage(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Appending message: session=%s seq=%d role=%s len=%d",
		msg.SessionID, msg.Seq, msg.Role, len(msg.Content))

	attachJSON := ""
	if len(msg.Attachments) > 0 {
		b, err := json.Marshal(msg.Attachments)
		if err != nil {
			return fmt.Errorf("failed to encode attachments: %w", err)
		}
		attachJSON = string(b)
	}

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO messages (session_id, seq, role, content, attachments, token_estimate)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.SessionID, msg.Seq, msg.Role, msg.Content, attachJSON, msg.TokenEstimate,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to append message: session=%s seq=%d: %v",
			msg.SessionID, msg.Seq, err)
		return err
	}
	return nil
}

// Messages loads all turns for a session in order.
func (s *Store) Messages(sessionID string) ([]Message, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Messages")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT seq, role, content, attachments, token_estimate, created_at
		 FROM messages WHERE session_id = ?
		 ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to query messages for %s: %v", sessionID, err)
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var attachJSON sql.NullString
		if err := rows.Scan(&msg.Seq, &msg.Role, &msg.Content, &attachJSON, &msg.TokenEstimate, &msg.CreatedAt); err != nil {
			continue
		}
		msg.SessionID = sessionID
		if attachJSON.Valid && attachJSON.String != "" {
			json.Unmarshal([]byte(attachJSON.String), &msg.Attachments)
		}
		messages = append(messages, msg)
	}

	logging.StoreDebug("Loaded %d messages for session=%s", len(messages), sessionID)
	return messages, nil
}

// NextSeq returns the next free sequence number for a session.
func (s *Store) NextSeq(sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max sql.NullInt64
	err := s.db.QueryRow(
		"SELECT MAX(seq) FROM messages WHERE session_id = ?",
		sessionID,
	).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

// ReplaceMessages swaps a session's full history in one transaction.
// The compactor uses this to install a summarized history.
func (s *Store) ReplaceMessages(sessionID string, messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.Store("Replacing history: session=%s new_len=%d", sessionID, len(messages))

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO messages (session_id, seq, role, content, attachments, token_estimate)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, msg := range messages {
		attachJSON := ""
		if len(msg.Attachments) > 0 {
			b, err := json.Marshal(msg.Attachments)
			if err != nil {
				return fmt.Errorf("failed to encode attachments: %w", err)
			}
			attachJSON = string(b)
		}
		seq := i + 1
		if _, err := stmt.Exec(sessionID, seq, msg.Role, msg.Content, attachJSON, msg.TokenEstimate); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to replace message seq=%d: %v", seq, err)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	logging.StoreDebug("History replaced: session=%s", sessionID)
	return nil
}
