package tenantstore

import (
	"database/sql"
	"encoding/json"
	"errors"

	"wfsync/entity"
)

var ErrNotFound = errors.New("tenantstore: not found")

func (t *TenantStore) CreateGoal(g *entity.Goal) error {
	milestones, err := g.MilestonesJSON()
	if err != nil {
		return err
	}
	return t.withLock(func() error {
		_, err := t.db.Exec(`
			INSERT INTO goals (id, original_text, transformed_text, category, status, progress, milestones, notion_page_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			g.ID, g.OriginalText, g.TransformedText, g.Category, g.Status, g.Progress,
			milestones, g.NotionPageID, g.CreatedAt, g.UpdatedAt)
		return err
	})
}

func (t *TenantStore) GetGoal(id string) (*entity.Goal, error) {
	var g entity.Goal
	var milestonesJSON string
	row := t.db.QueryRow(`
		SELECT id, original_text, transformed_text, category, status, progress, milestones, notion_page_id, created_at, updated_at
		FROM goals WHERE id = ?`, id)
	err := row.Scan(&g.ID, &g.OriginalText, &g.TransformedText, &g.Category, &g.Status, &g.Progress,
		&milestonesJSON, &g.NotionPageID, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalMilestones(milestonesJSON, &g.Milestones); err != nil {
		return nil, err
	}
	return &g, nil
}

func (t *TenantStore) ListGoals(status entity.GoalStatus) ([]entity.Goal, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = t.db.Query(`SELECT id, original_text, transformed_text, category, status, progress, milestones, notion_page_id, created_at, updated_at FROM goals ORDER BY created_at`)
	} else {
		rows, err = t.db.Query(`SELECT id, original_text, transformed_text, category, status, progress, milestones, notion_page_id, created_at, updated_at FROM goals WHERE status = ? ORDER BY created_at`, status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Goal
	for rows.Next() {
		var g entity.Goal
		var milestonesJSON string
		if err := rows.Scan(&g.ID, &g.OriginalText, &g.TransformedText, &g.Category, &g.Status, &g.Progress,
			&milestonesJSON, &g.NotionPageID, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		if err := unmarshalMilestones(milestonesJSON, &g.Milestones); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (t *TenantStore) UpdateGoalProgress(id string, progress int, status entity.GoalStatus) error {
	return t.withLock(func() error {
		res, err := t.db.Exec(`UPDATE goals SET progress = ?, status = ? WHERE id = ?`, progress, status, id)
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

func unmarshalMilestones(raw string, out *[]string) error {
	if raw == "" {
		*out = nil
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}
