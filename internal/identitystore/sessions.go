package identitystore

import (
	"database/sql"
	"errors"

	"wfsync/entity"
)

func (s *Store) CreateSession(sess *entity.Session) error {
	return s.withLock(func() error {
		_, err := s.db.Exec(`INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
			sess.Token, sess.UserID, sess.ExpiresAt, sess.CreatedAt)
		return err
	})
}

func (s *Store) GetSession(token string) (*entity.Session, error) {
	var sess entity.Session
	row := s.db.QueryRow(`SELECT token, user_id, expires_at, created_at FROM sessions WHERE token = ?`, token)
	err := row.Scan(&sess.Token, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) DeleteSession(token string) error {
	return s.withLock(func() error {
		_, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
		return err
	})
}
