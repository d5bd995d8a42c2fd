package identitystore

import (
	"database/sql"
	"errors"
	"time"

	"wfsync/entity"
)

// IssueLinkCode replaces any existing code for userID with a fresh one, so
// at most one code is active per user at a time.
func (s *Store) IssueLinkCode(code *entity.TelegramLinkCode) error {
	return s.withLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM telegram_link_codes WHERE user_id = ?`, code.UserID); err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO telegram_link_codes (code, user_id, expires_at) VALUES (?, ?, ?)`,
			code.Code, code.UserID, code.ExpiresAt); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// ConsumeLinkCode looks up and deletes a code atomically, returning
// ErrNotFound if the code doesn't exist (it may never have existed or may
// already have been consumed). The caller is responsible for checking
// ExpiresAt; an expired-but-present code is still deleted here to keep
// "the code is deleted on validation regardless of outcome" (spec §4.E).
func (s *Store) ConsumeLinkCode(code string) (*entity.TelegramLinkCode, error) {
	var out *entity.TelegramLinkCode
	err := s.withLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var c entity.TelegramLinkCode
		row := tx.QueryRow(`SELECT code, user_id, expires_at FROM telegram_link_codes WHERE code = ?`, code)
		if err := row.Scan(&c.Code, &c.UserID, &c.ExpiresAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if _, err := tx.Exec(`DELETE FROM telegram_link_codes WHERE code = ?`, code); err != nil {
			return err
		}
		out = &c
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PurgeExpiredLinkCodes deletes codes whose expiry has passed, used by the
// housekeeping janitor.
func (s *Store) PurgeExpiredLinkCodes(now time.Time) (int64, error) {
	var n int64
	err := s.withLock(func() error {
		res, err := s.db.Exec(`DELETE FROM telegram_link_codes WHERE expires_at < ?`, now)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
