package billing

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"wfsync/entity"
	"wfsync/internal/identitystore"
)

// AccessResult is the outcome of a gate check before an orchestrator turn
// is allowed to proceed.
type AccessResult string

const (
	AccessAllowed              AccessResult = "allowed"
	AccessTrialExhausted       AccessResult = "trial_exhausted"
	AccessTrialExpired         AccessResult = "trial_expired"
	AccessSubscriptionRequired AccessResult = "subscription_required"
	AccessUserNotFound         AccessResult = "user_not_found"
)

func (r AccessResult) Allowed() bool { return r == AccessAllowed }

// TokenMeter calculates cost, records usage, and answers access-gate
// questions against the central subscriptions/token_transactions tables.
type TokenMeter struct {
	store         *identitystore.Store
	costs         map[string]ProviderCost
	markupPercent float64
	trialDays     int
	trialTokenLimit int64
}

// Option configures a TokenMeter away from its defaults.
type Option func(*TokenMeter)

func WithMarkup(percent float64) Option       { return func(m *TokenMeter) { m.markupPercent = percent } }
func WithTrialDays(days int) Option           { return func(m *TokenMeter) { m.trialDays = days } }
func WithTrialTokenLimit(limit int64) Option  { return func(m *TokenMeter) { m.trialTokenLimit = limit } }

func New(store *identitystore.Store, opts ...Option) *TokenMeter {
	m := &TokenMeter{
		store:           store,
		costs:           defaultProviderCosts(),
		markupPercent:   1.30,
		trialDays:       3,
		trialTokenLimit: entity.DefaultTrialTokenLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *TokenMeter) TrialDays() int            { return m.trialDays }
func (m *TokenMeter) TrialTokenLimit() int64    { return m.trialTokenLimit }

// SetProviderCost overrides or adds a cost table entry, keyed "provider:model".
func (m *TokenMeter) SetProviderCost(key string, c ProviderCost) {
	m.costs[key] = c
}

// CalculateCost returns the cost in whole cents for the given usage,
// looking the provider/model up with exact-match then provider-prefix
// fallback, and a flat $1/1M-token estimate for anything unrecognized.
func (m *TokenMeter) CalculateCost(provider, model string, inputTokens, outputTokens int64) int64 {
	cost, ok := lookupCost(m.costs, provider, model)
	if !ok {
		totalTokens := inputTokens + outputTokens
		estimatedUSD := (float64(totalTokens) / 1_000_000) * 1.0
		return round2Cents(estimatedUSD)
	}
	inputUSD := (float64(inputTokens) / 1_000_000) * cost.InputPer1M
	outputUSD := (float64(outputTokens) / 1_000_000) * cost.OutputPer1M
	return round2Cents(inputUSD + outputUSD)
}

func round2Cents(usd float64) int64 {
	return int64(math.Round(usd * 100))
}

// RecordUsage appends a ledger row and advances the trial usage counter.
// amount is stored negative (consumption), matching the ledger's signed
// convention.
func (m *TokenMeter) RecordUsage(userID, provider, model string, inputTokens, outputTokens int64, description string) (*entity.TokenTransaction, error) {
	costCents := m.CalculateCost(provider, model, inputTokens, outputTokens)
	priceCents := int64(math.Round(float64(costCents) * m.markupPercent))
	total := inputTokens + outputTokens

	tx := &entity.TokenTransaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Amount:       -total,
		CostCents:    costCents,
		PriceCents:   priceCents,
		Provider:     provider,
		Model:        model,
		Description:  description,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.store.InsertTransaction(tx); err != nil {
		return nil, err
	}
	if err := m.store.AddTrialTokensUsed(userID, total); err != nil {
		return nil, err
	}
	return tx, nil
}

// CheckAccess is the gate the orchestrator calls before spending any
// provider tokens on a user's behalf.
func (m *TokenMeter) CheckAccess(userID string) (AccessResult, error) {
	sub, err := m.store.GetSubscription(userID)
	if errors.Is(err, identitystore.ErrNotFound) {
		return AccessUserNotFound, nil
	}
	if err != nil {
		return "", err
	}

	switch sub.Status {
	case entity.SubscriptionActive:
		if sub.PaidUntil != nil && time.Now().UTC().After(*sub.PaidUntil) {
			return AccessSubscriptionRequired, nil
		}
		return AccessAllowed, nil
	case entity.SubscriptionTrial:
		if sub.TrialTokensUsed >= sub.TrialTokensLimit {
			return AccessTrialExhausted, nil
		}
		trialEnd := sub.TrialStartedAt.Add(time.Duration(m.trialDays) * 24 * time.Hour)
		if time.Now().UTC().After(trialEnd) {
			return AccessTrialExpired, nil
		}
		return AccessAllowed, nil
	default: // "expired" or anything unrecognized
		return AccessSubscriptionRequired, nil
	}
}

// GetTrialRemaining returns the trial tokens left, floored at zero.
func (m *TokenMeter) GetTrialRemaining(userID string) (int64, error) {
	sub, err := m.store.GetSubscription(userID)
	if err != nil {
		return 0, err
	}
	remaining := sub.TrialTokensLimit - sub.TrialTokensUsed
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// GetTotalUsage returns total tokens consumed (absolute value of the
// negative ledger entries).
func (m *TokenMeter) GetTotalUsage(userID string) (int64, error) {
	return m.store.SumTokensConsumed(userID)
}

// GetUsageHistory returns the most recent consumption+purchase rows.
func (m *TokenMeter) GetUsageHistory(userID string, limit int) ([]entity.TokenTransaction, error) {
	return m.store.ListTransactions(userID, limit)
}

// ActivateSubscription marks a user's subscription active through
// now+days, used after a successful payment webhook.
func (m *TokenMeter) ActivateSubscription(userID string, days int) error {
	paidUntil := time.Now().UTC().AddDate(0, 0, days)
	return m.store.ActivateSubscription(userID, paidUntil, 0)
}

// AddTokens credits a token package purchase: records a positive ledger
// entry and increments the total-purchased counter, without touching
// subscription status (a token top-up doesn't itself grant subscription
// access — ActivateSubscription is the separate call for that).
func (m *TokenMeter) AddTokens(userID string, tokens, priceCents int64) error {
	tx := &entity.TokenTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      tokens,
		CostCents:   0,
		PriceCents:  priceCents,
		Provider:    "",
		Model:       "",
		Description: "Token purchase",
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.store.InsertTransaction(tx); err != nil {
		return err
	}
	return m.store.AddPurchasedTokens(userID, tokens)
}

// GetTotalCost returns the platform's own cost (pre-markup) for a user.
func (m *TokenMeter) GetTotalCost(userID string) (int64, error) {
	var total int64
	txs, err := m.store.ListTransactions(userID, 1<<30)
	if err != nil {
		return 0, err
	}
	for _, t := range txs {
		if t.Amount < 0 {
			total += t.CostCents
		}
	}
	return total, nil
}

// GetTotalRevenue returns total price_cents charged to a user across all
// transactions (usage and purchases both carry a price_cents figure).
func (m *TokenMeter) GetTotalRevenue(userID string) (int64, error) {
	var total int64
	txs, err := m.store.ListTransactions(userID, 1<<30)
	if err != nil {
		return 0, err
	}
	for _, t := range txs {
		total += t.PriceCents
	}
	return total, nil
}
