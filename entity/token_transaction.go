package entity

import "time"

// TokenTransaction is an append-only ledger row. Amount is signed: negative
// for consumption, positive for a purchase or grant.
type TokenTransaction struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Amount      int64     `json:"amount" db:"amount"`
	CostCents   int64     `json:"cost_cents" db:"cost_cents"`
	PriceCents  int64     `json:"price_cents" db:"price_cents"`
	Provider    string    `json:"provider" db:"provider"`
	Model       string    `json:"model" db:"model"`
	Description string    `json:"description" db:"description"`
	InputTokens int64     `json:"input_tokens" db:"input_tokens"`
	OutputTokens int64    `json:"output_tokens" db:"output_tokens"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
