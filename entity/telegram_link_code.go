package entity

import "time"

// TelegramLinkCode binds a registered user to a one-time code used by the
// Telegram transport's "/start <code>" flow. At most one active code exists
// per user; the code is deleted on validation regardless of outcome.
type TelegramLinkCode struct {
	Code      string    `json:"code" db:"code"`
	UserID    string    `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// TelegramLinkCodeTTL is the validity window for a freshly issued code.
const TelegramLinkCodeTTL = time.Hour

// Session is an optional refresh-token record.
type Session struct {
	Token     string    `json:"token" db:"token"`
	UserID    string    `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
