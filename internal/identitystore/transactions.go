package identitystore

import (
	"database/sql"

	"wfsync/entity"
)

// InsertTransaction appends a ledger row. The ledger is append-only: there
// is no update or delete method.
func (s *Store) InsertTransaction(t *entity.TokenTransaction) error {
	return s.withLock(func() error {
		_, err := s.db.Exec(`
			INSERT INTO token_transactions
				(id, user_id, amount, cost_cents, price_cents, provider, model, description, input_tokens, output_tokens, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.UserID, t.Amount, t.CostCents, t.PriceCents, t.Provider, t.Model,
			t.Description, t.InputTokens, t.OutputTokens, t.CreatedAt)
		return err
	})
}

// SumUsageCents returns the sum of positive cost_cents across all of a
// user's consumption transactions (amount < 0), for usage reporting.
func (s *Store) SumUsageCents(userID string) (int64, error) {
	var total sql.NullInt64
	row := s.db.QueryRow(`SELECT SUM(cost_cents) FROM token_transactions WHERE user_id = ? AND amount < 0`, userID)
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total.Int64, nil
}

// SumTokensConsumed returns total tokens consumed (abs of negative amounts).
func (s *Store) SumTokensConsumed(userID string) (int64, error) {
	var total sql.NullInt64
	row := s.db.QueryRow(`SELECT SUM(-amount) FROM token_transactions WHERE user_id = ? AND amount < 0`, userID)
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total.Int64, nil
}

// ListTransactions returns a user's ledger, most recent first, capped at limit.
func (s *Store) ListTransactions(userID string, limit int) ([]entity.TokenTransaction, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, amount, cost_cents, price_cents, provider, model, description, input_tokens, output_tokens, created_at
		FROM token_transactions WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.TokenTransaction
	for rows.Next() {
		var t entity.TokenTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.CostCents, &t.PriceCents, &t.Provider,
			&t.Model, &t.Description, &t.InputTokens, &t.OutputTokens, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
