package payment

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const cryptomusCreateURL = "https://api.cryptomus.com/v1/payment"

// Client creates hosted Cryptomus payment links. No credit happens here —
// Reconciler settles the resulting webhook separately.
type Client struct {
	merchantID string
	apiKey     string
	http       *http.Client
}

func NewClient(merchantID, apiKey string) *Client {
	return &Client{merchantID: merchantID, apiKey: apiKey, http: &http.Client{Timeout: 15 * time.Second}}
}

// CreatePayment requests a hosted payment page for orderID/amountCents and
// returns its URL.
func (c *Client) CreatePayment(ctx context.Context, orderID string, amountCents int64) (string, error) {
	payload := map[string]string{
		"amount":       fmt.Sprintf("%.2f", float64(amountCents)/100),
		"currency":     "USD",
		"order_id":     orderID,
		"url_callback": "",
		"url_return":   "",
		"url_success":  "",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	encoded := base64.StdEncoding.EncodeToString(body)
	sum := md5.Sum([]byte(encoded + c.apiKey))
	sign := hex.EncodeToString(sum[:])

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cryptomusCreateURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("merchant", c.merchantID)
	req.Header.Set("sign", sign)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment: cryptomus request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("payment: cryptomus api error (status %d): %s", resp.StatusCode, respBody)
	}

	var parsed struct {
		Result struct {
			URL string `json:"url"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("payment: decode cryptomus response: %w", err)
	}
	if parsed.Result.URL == "" {
		return "", fmt.Errorf("payment: no payment url in cryptomus response")
	}
	return parsed.Result.URL, nil
}
