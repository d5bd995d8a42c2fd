package entity

import (
	"fmt"
	"net/http"
	"strings"

	"wfsync/lib/validate"
)

// PaymentStatus is the status field reported by the Cryptomus webhook.
type PaymentStatus string

const (
	PaymentStatusPaid         PaymentStatus = "paid"
	PaymentStatusPaidOver     PaymentStatus = "paid_over"
	PaymentStatusWrongAmount  PaymentStatus = "wrong_amount"
	PaymentStatusProcess      PaymentStatus = "process"
	PaymentStatusConfirming   PaymentStatus = "confirm_check"
	PaymentStatusCancel       PaymentStatus = "cancel"
	PaymentStatusFail         PaymentStatus = "fail"
)

// IsSuccessful reports whether the webhook represents a completed payment.
func (s PaymentStatus) IsSuccessful() bool {
	switch PaymentStatus(strings.ToLower(string(s))) {
	case PaymentStatusPaid, PaymentStatusPaidOver:
		return true
	default:
		return false
	}
}

// CryptomusWebhook is the payload posted to POST /payment/webhook.
// Field order does not affect signature verification: the payment reconciler
// re-serializes the raw body's keys sorted ascending, excluding sign.
type CryptomusWebhook struct {
	UUID         string `json:"uuid"`
	OrderID      string `json:"order_id"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	PayerCurrency string `json:"payer_currency,omitempty"`
	PayerAmount  string `json:"payer_amount,omitempty"`
	TxID         string `json:"txid,omitempty"`
	Sign         string `json:"sign,omitempty"`
}

// WebhookResponse is returned from POST /payment/webhook.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// TokenPackage is a purchasable bundle of tokens.
type TokenPackage struct {
	Name       string `json:"name"`
	Tokens     int64  `json:"tokens"`
	PriceCents int64  `json:"price_cents"`
}

// TokenPackages is the fixed catalogue of purchasable bundles.
var TokenPackages = []TokenPackage{
	{Name: "100k", Tokens: 100_000, PriceCents: 500},
	{Name: "500k", Tokens: 500_000, PriceCents: 2000},
	{Name: "1m", Tokens: 1_000_000, PriceCents: 3500},
	{Name: "5m", Tokens: 5_000_000, PriceCents: 15000},
}

// FindTokenPackage looks up a package by name, e.g. "100k".
func FindTokenPackage(name string) (TokenPackage, bool) {
	for _, p := range TokenPackages {
		if p.Name == name {
			return p, true
		}
	}
	return TokenPackage{}, false
}

// ParsedOrderID is the decoded form of an order id of shape
// "user_<user_id>_pkg_<package>".
type ParsedOrderID struct {
	UserID  string
	Package string
}

// ParseOrderID decodes the order-id convention used by payment creation
// and validated by the webhook reconciler.
func ParseOrderID(orderID string) (ParsedOrderID, error) {
	parts := strings.Split(orderID, "_")
	if len(parts) < 4 || parts[0] != "user" || parts[2] != "pkg" {
		return ParsedOrderID{}, fmt.Errorf("malformed order id: %q", orderID)
	}
	return ParsedOrderID{UserID: parts[1], Package: parts[3]}, nil
}

// BuildOrderID encodes a user+package pair into the order-id convention.
func BuildOrderID(userID, pkg string) string {
	return fmt.Sprintf("user_%s_pkg_%s", userID, pkg)
}

// CreatePaymentRequest is the body of POST /payment/create.
type CreatePaymentRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,min=1"`
	Package     string `json:"package" validate:"required"`
}

func (c *CreatePaymentRequest) Bind(_ *http.Request) error {
	return validate.Struct(c)
}

// CreatePaymentResponse is returned from POST /payment/create.
type CreatePaymentResponse struct {
	PaymentURL string `json:"payment_url"`
	OrderID    string `json:"order_id"`
}
