package identitystore

import (
	"database/sql"
	"errors"
	"time"

	"wfsync/entity"
)

const subscriptionCols = `user_id, status, trial_started_at, trial_tokens_used, trial_tokens_limit, paid_until, total_tokens_purchased`

func scanSubscription(row *sql.Row) (*entity.Subscription, error) {
	var sub entity.Subscription
	err := row.Scan(&sub.UserID, &sub.Status, &sub.TrialStartedAt, &sub.TrialTokensUsed,
		&sub.TrialTokensLimit, &sub.PaidUntil, &sub.TotalTokensPurchased)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) GetSubscription(userID string) (*entity.Subscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM subscriptions WHERE user_id = ?`, userID)
	return scanSubscription(row)
}

// AddTrialTokensUsed increments the trial usage counter by delta.
func (s *Store) AddTrialTokensUsed(userID string, delta int64) error {
	return s.withLock(func() error {
		_, err := s.db.Exec(`UPDATE subscriptions SET trial_tokens_used = trial_tokens_used + ? WHERE user_id = ?`,
			delta, userID)
		return err
	})
}

// SetSubscriptionStatus transitions status, e.g. trial -> expired.
func (s *Store) SetSubscriptionStatus(userID string, status entity.SubscriptionStatus) error {
	return s.withLock(func() error {
		_, err := s.db.Exec(`UPDATE subscriptions SET status = ? WHERE user_id = ?`, status, userID)
		return err
	})
}

// AddPurchasedTokens credits tokens to the purchased counter without
// touching status or paid_until — a pure token top-up doesn't by itself
// grant or extend subscription access.
func (s *Store) AddPurchasedTokens(userID string, tokens int64) error {
	return s.withLock(func() error {
		_, err := s.db.Exec(`UPDATE subscriptions SET total_tokens_purchased = total_tokens_purchased + ? WHERE user_id = ?`,
			tokens, userID)
		return err
	})
}

// ActivateSubscription marks the subscription active through paidUntil and
// credits totalTokensDelta to the purchased counter. Used both for first payment
// and for renewals/top-ups.
func (s *Store) ActivateSubscription(userID string, paidUntil time.Time, totalTokensDelta int64) error {
	return s.withLock(func() error {
		_, err := s.db.Exec(`
			UPDATE subscriptions
			SET status = ?, paid_until = ?, total_tokens_purchased = total_tokens_purchased + ?
			WHERE user_id = ?`,
			entity.SubscriptionActive, paidUntil, totalTokensDelta, userID)
		return err
	})
}
