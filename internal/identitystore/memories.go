package identitystore

import (
	"database/sql"
	"encoding/json"
	"errors"

	"wfsync/entity"
)

// UpsertMemory inserts or replaces the entry for (agent_id, key), matching
// spec §4.D's upsert-on-key semantics. The embedding is marshaled as a JSON
// array of float64 into a TEXT column — reproducing the same on-disk shape
// the original's Postgres vector store used before migrating to pgvector,
// kept here deliberately since SQLite has no native vector type.
func (s *Store) UpsertMemory(m *entity.MemoryEntry) error {
	emb, err := json.Marshal(m.Embedding)
	if err != nil {
		return err
	}
	return s.withLock(func() error {
		_, err := s.db.Exec(`
			INSERT INTO memories (id, agent_id, key, content, category, embedding, session_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(agent_id, key) DO UPDATE SET
				content = excluded.content,
				category = excluded.category,
				embedding = excluded.embedding,
				session_id = excluded.session_id,
				created_at = excluded.created_at`,
			m.ID, m.AgentID, m.Key, m.Content, m.Category.String(), string(emb), m.SessionID, m.CreatedAt)
		return err
	})
}

func scanMemory(scan func(...interface{}) error) (*entity.MemoryEntry, error) {
	var m entity.MemoryEntry
	var category string
	var emb string
	if err := scan(&m.ID, &m.AgentID, &m.Key, &m.Content, &category, &emb, &m.SessionID, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Category = entity.ParseMemoryCategory(category)
	if err := json.Unmarshal([]byte(emb), &m.Embedding); err != nil {
		return nil, err
	}
	return &m, nil
}

const memoryCols = `id, agent_id, key, content, category, embedding, session_id, created_at`

func (s *Store) GetMemory(agentID, key string) (*entity.MemoryEntry, error) {
	row := s.db.QueryRow(`SELECT `+memoryCols+` FROM memories WHERE agent_id = ? AND key = ?`, agentID, key)
	m, err := scanMemory(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// ListMemories returns every memory entry for an agent, optionally filtered
// by category (pass "" for all). The hybrid scorer in internal/memory scans
// this full set in process — fine at the per-agent scale the spec targets,
// and avoids needing a real vector index for cosine similarity.
func (s *Store) ListMemories(agentID string, category string) ([]entity.MemoryEntry, error) {
	var rows *sql.Rows
	var err error
	if category == "" {
		rows, err = s.db.Query(`SELECT `+memoryCols+` FROM memories WHERE agent_id = ? ORDER BY created_at`, agentID)
	} else {
		rows, err = s.db.Query(`SELECT `+memoryCols+` FROM memories WHERE agent_id = ? AND category = ? ORDER BY created_at`,
			agentID, category)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.MemoryEntry
	for rows.Next() {
		m, err := scanMemory(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Store) DeleteMemory(agentID, key string) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(`DELETE FROM memories WHERE agent_id = ? AND key = ?`, agentID, key)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *Store) CountMemories(agentID string) (int, error) {
	var n int
	row := s.db.QueryRow(`SELECT COUNT(*) FROM memories WHERE agent_id = ?`, agentID)
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
