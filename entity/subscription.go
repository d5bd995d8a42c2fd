package entity

import "time"

// SubscriptionStatus is the lifecycle state of a user's subscription.
type SubscriptionStatus string

const (
	SubscriptionTrial   SubscriptionStatus = "trial"
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionExpired SubscriptionStatus = "expired"
)

// Subscription is 1:1 with User, created atomically at registration.
type Subscription struct {
	UserID              string             `json:"user_id" db:"user_id"`
	Status              SubscriptionStatus `json:"status" db:"status"`
	TrialStartedAt       time.Time          `json:"trial_started_at" db:"trial_started_at"`
	TrialTokensUsed      int64              `json:"trial_tokens_used" db:"trial_tokens_used"`
	TrialTokensLimit     int64              `json:"trial_tokens_limit" db:"trial_tokens_limit"`
	PaidUntil            *time.Time         `json:"paid_until,omitempty" db:"paid_until"`
	TotalTokensPurchased int64              `json:"total_tokens_purchased" db:"total_tokens_purchased"`
}

// DefaultTrialTokenLimit is the default trial budget in tokens.
const DefaultTrialTokenLimit = 100_000
