package identitystore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wfsync/entity"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("identitystore: not found")

// ErrConflict is returned when a unique constraint (email, telegram_id)
// rejects a write.
var ErrConflict = errors.New("identitystore: conflict")

// CreateUser inserts a new user row and its 1:1 trial subscription in one
// transaction, mirroring spec §4.C's "subscription creation is atomic with
// registration" invariant.
func (s *Store) CreateUser(u *entity.User, trialDays int, trialTokenLimit int64) error {
	return s.withLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO users (id, email, password_hash, telegram_id, telegram_username, created_at, last_login_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			u.ID, u.Email, u.PasswordHash, u.TelegramID, u.TelegramUsername, u.CreatedAt, u.LastLoginAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("identitystore: create user: %w", err)
		}

		now := u.CreatedAt
		_, err = tx.Exec(`
			INSERT INTO subscriptions (user_id, status, trial_started_at, trial_tokens_used, trial_tokens_limit, paid_until, total_tokens_purchased)
			VALUES (?, ?, ?, 0, ?, NULL, 0)`,
			u.ID, entity.SubscriptionTrial, now, trialTokenLimit)
		if err != nil {
			return fmt.Errorf("identitystore: create trial subscription: %w", err)
		}
		_ = trialDays // trial window is measured from trial_started_at by the billing package, not stored redundantly here

		return tx.Commit()
	})
}

func scanUser(row *sql.Row) (*entity.User, error) {
	var u entity.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.TelegramID, &u.TelegramUsername, &u.CreatedAt, &u.LastLoginAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, email, password_hash, telegram_id, telegram_username, created_at, last_login_at`

func (s *Store) GetUserByID(id string) (*entity.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(email string) (*entity.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (s *Store) GetUserByTelegramID(telegramID string) (*entity.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE telegram_id = ?`, telegramID)
	return scanUser(row)
}

func (s *Store) UpdateLastLogin(userID string, at time.Time) error {
	return s.withLock(func() error {
		_, err := s.db.Exec(`UPDATE users SET last_login_at = ? WHERE id = ?`, at, userID)
		return err
	})
}

// LinkTelegram binds telegramID/username to userID. Fails with ErrConflict
// if telegramID is already bound to a different user (spec §4.E: Telegram
// identity is unique across the platform).
func (s *Store) LinkTelegram(userID, telegramID string, username *string) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(`UPDATE users SET telegram_id = ?, telegram_username = ? WHERE id = ?`,
			telegramID, username, userID)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
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

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite reports constraint violations as *sqlite.Error
	// whose message contains "UNIQUE constraint failed"; matching on the
	// message avoids importing the driver's internal error type.
	return err != nil && contains(err.Error(), "UNIQUE constraint failed")
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
