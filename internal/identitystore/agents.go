package identitystore

import (
	"database/sql"
	"errors"

	"wfsync/entity"
)

const agentCols = `id, user_id, name, config, created_at, updated_at`

func scanAgent(row *sql.Row) (*entity.Agent, error) {
	var a entity.Agent
	var cfg []byte
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &cfg, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Config = cfg
	return &a, nil
}

func (s *Store) CreateAgent(a *entity.Agent) error {
	return s.withLock(func() error {
		_, err := s.db.Exec(`INSERT INTO agents (id, user_id, name, config, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, a.UserID, a.Name, string(a.Config), a.CreatedAt, a.UpdatedAt)
		return err
	})
}

func (s *Store) GetAgent(id string) (*entity.Agent, error) {
	row := s.db.QueryRow(`SELECT `+agentCols+` FROM agents WHERE id = ?`, id)
	return scanAgent(row)
}

func (s *Store) ListAgentsByUser(userID string) ([]entity.Agent, error) {
	rows, err := s.db.Query(`SELECT `+agentCols+` FROM agents WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Agent
	for rows.Next() {
		var a entity.Agent
		var cfg []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &cfg, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Config = cfg
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListAllAgents returns every agent across every user, used at startup to
// discover which agents carry a Telegram channel config to boot.
func (s *Store) ListAllAgents() ([]entity.Agent, error) {
	rows, err := s.db.Query(`SELECT ` + agentCols + ` FROM agents ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Agent
	for rows.Next() {
		var a entity.Agent
		var cfg []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &cfg, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Config = cfg
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAgent(a *entity.Agent) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(`UPDATE agents SET name = ?, config = ?, updated_at = ? WHERE id = ?`,
			a.Name, string(a.Config), a.UpdatedAt, a.ID)
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

// AddTelegramAllowedUser appends identity to agent agentID's
// config.channels.telegram.allowed_users and persists it, so a pairing
// admitted at runtime survives a process restart. A no-op if identity is
// already present.
func (s *Store) AddTelegramAllowedUser(agentID, identity string) error {
	return s.withLock(func() error {
		row := s.db.QueryRow(`SELECT `+agentCols+` FROM agents WHERE id = ?`, agentID)
		a, err := scanAgent(row)
		if err != nil {
			return err
		}

		tgConf, err := a.TelegramConfig()
		if err != nil {
			return err
		}
		if tgConf == nil {
			tgConf = &entity.TelegramChannelConfig{}
		}
		for _, u := range tgConf.AllowedUsers {
			if u == identity {
				return nil
			}
		}
		tgConf.AllowedUsers = append(tgConf.AllowedUsers, identity)

		if err := a.SetTelegramConfig(tgConf); err != nil {
			return err
		}

		_, err = s.db.Exec(`UPDATE agents SET config = ? WHERE id = ?`, string(a.Config), agentID)
		return err
	})
}

func (s *Store) DeleteAgent(id string) error {
	return s.withLock(func() error {
		_, err := s.db.Exec(`DELETE FROM agents WHERE id = ?`, id)
		return err
	})
}
