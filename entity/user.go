package entity

import "time"

// User is a registered tenant of the platform, keyed by an opaque id.
// Email is stored normalized (trimmed, lowercased). TelegramID is unique
// when set and is populated either via the web-registration link flow
// (auth.LinkTelegramByCode) or the Telegram pairing flow.
type User struct {
	ID               string     `json:"id" db:"id"`
	Email            string     `json:"email" db:"email"`
	PasswordHash     string     `json:"-" db:"password_hash"`
	TelegramID       *string    `json:"telegram_id,omitempty" db:"telegram_id"`
	TelegramUsername *string    `json:"telegram_username,omitempty" db:"telegram_username"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
}

// HasTelegramLinked reports whether the user has bound a Telegram identity.
func (u *User) HasTelegramLinked() bool {
	return u.TelegramID != nil && *u.TelegramID != ""
}
