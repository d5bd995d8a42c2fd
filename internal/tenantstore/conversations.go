package tenantstore

import (
	"wfsync/entity"
)

// AppendMessage inserts a conversation turn and returns its assigned id.
func (t *TenantStore) AppendMessage(m *entity.ConversationMessage) (int64, error) {
	var id int64
	err := t.withLock(func() error {
		res, err := t.db.Exec(`
			INSERT INTO conversation_messages (role, content, tokens, provider, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			m.Role, m.Content, m.Tokens, m.Provider, m.CreatedAt)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// RecentMessages returns the last limit messages in chronological order,
// for feeding into the orchestrator's history window.
func (t *TenantStore) RecentMessages(limit int) ([]entity.ConversationMessage, error) {
	rows, err := t.db.Query(`
		SELECT id, role, content, tokens, provider, created_at
		FROM conversation_messages ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.ConversationMessage
	for rows.Next() {
		var m entity.ConversationMessage
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.Tokens, &m.Provider, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
