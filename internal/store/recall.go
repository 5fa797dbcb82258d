package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"omnichat/internal/embedding"
	"omnichat/internal/logging"
)

// =============================================================================
// SEMANTIC RECALL
// =============================================================================

// RecallEntry is one remembered snippet: a compaction summary, a pinned
// fact, or anything the user asked the assistant to remember.
type RecallEntry struct {
	ID        int64
	SessionID string
	Content   string
	Metadata  map[string]interface{}
	CreatedAt time.Time

	// Similarity is populated by SemanticRecall.
	Similarity float64
}

// AddRecall stores a snippet, embedding it when an engine is configured.
func (s *Store) AddRecall(ctx context.Context, sessionID, content string, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metaJSON := ""
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		metaJSON = string(b)
	}

	if s.engine == nil {
		_, err := s.db.Exec(
			"INSERT INTO recall (session_id, content, metadata) VALUES (?, ?, ?)",
			sessionID, content, metaJSON,
		)
		return err
	}

	vec, err := s.engine.Embed(ctx, content)
	if err != nil {
		// Store without the embedding rather than losing the snippet.
		logging.Get(logging.CategoryStore).Warn("Recall embed failed, storing keyword-only: %v", err)
		_, err := s.db.Exec(
			"INSERT INTO recall (session_id, content, metadata) VALUES (?, ?, ?)",
			sessionID, content, metaJSON,
		)
		return err
	}

	vecJSON, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to serialize embedding: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT INTO recall (session_id, content, embedding, metadata) VALUES (?, ?, ?, ?)",
		sessionID, content, string(vecJSON), metaJSON,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to store recall entry: %v", err)
		return err
	}

	logging.StoreDebug("Recall entry stored: session=%s len=%d dims=%d", sessionID, len(content), len(vec))
	return nil
}

// SemanticRecall returns the snippets most similar to the query.
// Without an embedding engine it degrades to keyword search.
func (s *Store) SemanticRecall(ctx context.Context, query string, limit int) ([]RecallEntry, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SemanticRecall")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	if s.engine == nil {
		return s.keywordRecall(query, limit)
	}

	queryVec, err := s.engine.Embed(ctx, query)
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("Query embed failed, falling back to keyword recall: %v", err)
		return s.keywordRecall(query, limit)
	}

	rows, err := s.db.Query(
		"SELECT id, session_id, content, embedding, metadata, created_at FROM recall WHERE embedding IS NOT NULL",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []RecallEntry
	for rows.Next() {
		var entry RecallEntry
		var vecJSON, metaJSON string
		if err := rows.Scan(&entry.ID, &entry.SessionID, &entry.Content, &vecJSON, &metaJSON, &entry.CreatedAt); err != nil {
			continue
		}

		var vec []float32
		if err := json.Unmarshal([]byte(vecJSON), &vec); err != nil {
			continue
		}

		similarity, err := embedding.CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}
		entry.Similarity = similarity

		if metaJSON != "" {
			json.Unmarshal([]byte(metaJSON), &entry.Metadata)
		}
		candidates = append(candidates, entry)
	}

	// Sort by similarity descending
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if candidates[j].Similarity > candidates[i].Similarity {
				candidates[i], candidates[j] = candidates[j], candidates[i]
			}
		}
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	logging.StoreDebug("Semantic recall: query_len=%d hits=%d", len(query), len(candidates))
	return candidates, nil
}

// keywordRecall is the LIKE-based fallback.
func (s *Store) keywordRecall(query string, limit int) ([]RecallEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, content, metadata, created_at
		 FROM recall WHERE content LIKE ?
		 ORDER BY created_at DESC LIMIT ?`,
		"%"+query+"%", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []RecallEntry
	for rows.Next() {
		var entry RecallEntry
		var metaJSON string
		if err := rows.Scan(&entry.ID, &entry.SessionID, &entry.Content, &metaJSON, &entry.CreatedAt); err != nil {
			continue
		}
		if metaJSON != "" {
			json.Unmarshal([]byte(metaJSON), &entry.Metadata)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// RecallStats reports how much of the recall table is embedded.
func (s *Store) RecallStats() (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]interface{})

	var total int64
	s.db.QueryRow("SELECT COUNT(*) FROM recall").Scan(&total)
	stats["total"] = total

	var embedded int64
	s.db.QueryRow("SELECT COUNT(*) FROM recall WHERE embedding IS NOT NULL").Scan(&embedded)
	stats["embedded"] = embedded

	if s.engine != nil {
		stats["engine"] = s.engine.Name()
		stats["dimensions"] = s.engine.Dimensions()
	} else {
		stats["engine"] = "none (keyword search)"
	}

	return stats, nil
}

// ReembedRecall backfills embeddings for entries stored without one.
func (s *Store) ReembedRecall(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return fmt.Errorf("no embedding engine configured")
	}

	rows, err := s.db.Query("SELECT id, content FROM recall WHERE embedding IS NULL")
	if err != nil {
		return err
	}
	defer rows.Close()

	type pending struct {
		id      int64
		content string
	}
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.content); err != nil {
			continue
		}
		todo = append(todo, p)
	}
	if len(todo) == 0 {
		return nil
	}

	const batchSize = 32
	for i := 0; i < len(todo); i += batchSize {
		end := i + batchSize
		if end > len(todo) {
			end = len(todo)
		}
		batch := todo[i:end]

		texts := make([]string, len(batch))
		for j, p := range batch {
			texts[j] = p.content
		}

		vecs, err := s.engine.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate batch embeddings: %w", err)
		}

		for j, p := range batch {
			vecJSON, _ := json.Marshal(vecs[j])
			if _, err := s.db.Exec(
				"UPDATE recall SET embedding = ? WHERE id = ?",
				string(vecJSON), p.id,
			); err != nil {
				return fmt.Errorf("failed to update recall entry %d: %w", p.id, err)
			}
		}
	}

	logging.Store("Reembedded %d recall entries", len(todo))
	return nil
}
