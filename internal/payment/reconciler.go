// Package payment settles Cryptomus payment-gateway webhooks into
// subscription state and creates hosted payment links. Grounded on
// original_source/src/gateway/payment_handlers.rs.
package payment

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wfsync/entity"
	"wfsync/internal/billing"
	"wfsync/internal/identitystore"
)

var (
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
	ErrMalformedOrderID = errors.New("payment: malformed order id")
	ErrUnknownPackage   = errors.New("payment: unknown token package")
)

// Reconciler verifies and settles Cryptomus webhook deliveries, crediting
// tokens and activating subscriptions idempotently by payment UUID.
type Reconciler struct {
	identity *identitystore.Store
	meter    *billing.TokenMeter
	apiKey   string
}

// NewReconciler builds a Reconciler. An empty apiKey disables signature
// verification (useful only for local testing against a sandbox gateway).
func NewReconciler(identity *identitystore.Store, meter *billing.TokenMeter, apiKey string) *Reconciler {
	return &Reconciler{identity: identity, meter: meter, apiKey: apiKey}
}

// VerifySignature recomputes MD5(base64(json_sorted_keys_excluding_sign) +
// api_key) over rawBody and compares it case-insensitively against the
// payload's own "sign" field. encoding/json sorts map[string]any keys
// ascending on Marshal, matching the reference's BTreeMap-based ordering.
func (r *Reconciler) VerifySignature(rawBody []byte) (bool, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(rawBody, &fields); err != nil {
		return false, fmt.Errorf("payment: decode webhook body: %w", err)
	}
	sign, _ := fields["sign"].(string)
	delete(fields, "sign")

	canonical, err := json.Marshal(fields)
	if err != nil {
		return false, err
	}
	encoded := base64.StdEncoding.EncodeToString(canonical)
	sum := md5.Sum([]byte(encoded + r.apiKey))
	computed := hex.EncodeToString(sum[:])
	return strings.EqualFold(computed, sign), nil
}

// ProcessWebhook verifies, parses, and settles one Cryptomus webhook
// delivery. A non-successful payment status (process, cancel, fail, ...)
// is acknowledged without crediting anything. Credit and activation are
// idempotent by payment UUID: a retried delivery returns success without
// double-crediting.
func (r *Reconciler) ProcessWebhook(rawBody []byte) (entity.WebhookResponse, error) {
	if r.apiKey != "" {
		ok, err := r.VerifySignature(rawBody)
		if err != nil {
			return entity.WebhookResponse{}, err
		}
		if !ok {
			return entity.WebhookResponse{}, ErrInvalidSignature
		}
	}

	var webhook entity.CryptomusWebhook
	if err := json.Unmarshal(rawBody, &webhook); err != nil {
		return entity.WebhookResponse{}, fmt.Errorf("payment: decode webhook: %w", err)
	}

	if !entity.PaymentStatus(webhook.Status).IsSuccessful() {
		return entity.WebhookResponse{Success: true}, nil
	}

	parsed, err := entity.ParseOrderID(webhook.OrderID)
	if err != nil {
		return entity.WebhookResponse{}, ErrMalformedOrderID
	}
	pkg, ok := entity.FindTokenPackage(parsed.Package)
	if !ok {
		return entity.WebhookResponse{}, ErrUnknownPackage
	}

	credited, err := r.identity.RecordPayment(webhook.UUID, webhook.OrderID, time.Now().UTC())
	if err != nil {
		return entity.WebhookResponse{}, fmt.Errorf("payment: record payment ledger: %w", err)
	}
	if !credited {
		return entity.WebhookResponse{Success: true, Message: "already processed"}, nil
	}

	if err := r.meter.AddTokens(parsed.UserID, pkg.Tokens, pkg.PriceCents); err != nil {
		return entity.WebhookResponse{}, fmt.Errorf("payment: credit tokens: %w", err)
	}
	if err := r.meter.ActivateSubscription(parsed.UserID, 30); err != nil {
		return entity.WebhookResponse{}, fmt.Errorf("payment: activate subscription: %w", err)
	}

	return entity.WebhookResponse{Success: true}, nil
}
