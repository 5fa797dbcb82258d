package store

import "database/sql"

// metaLastSession remembers which session `omni` resumes by default.
const metaLastSession = "last_session_id"

// SetMeta upserts one key/value pair.
func (s *Store) SetMeta(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO meta (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	return err
}

// GetMeta returns the value for a key, or "" when unset.
func (s *Store) GetMeta(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// LastSessionID returns the most recently active session, or "".
func (s *Store) LastSessionID() (string, error) {
	return s.GetMeta(metaLastSession)
}

// SetLastSessionID records the session to resume next launch.
func (s *Store) SetLastSessionID(id string) error {
	return s.SetMeta(metaLastSession, id)
}
