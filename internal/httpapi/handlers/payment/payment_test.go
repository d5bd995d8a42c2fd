package payment

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"wfsync/internal/billing"
	"wfsync/internal/identitystore"
	"wfsync/internal/payment"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

func newReconciler(t *testing.T, apiKey string) *payment.Reconciler {
	t.Helper()
	store, err := identitystore.Open(filepath.Join(t.TempDir(), "central.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	meter := billing.New(store)
	return payment.NewReconciler(store, meter, apiKey)
}

func signedBody(t *testing.T, apiKey string, fields map[string]interface{}) []byte {
	t.Helper()
	canonical, err := json.Marshal(fields)
	if err != nil {
		t.Fatal(err)
	}
	encoded := base64.StdEncoding.EncodeToString(canonical)
	sum := md5.Sum([]byte(encoded + apiKey))
	fields["sign"] = hex.EncodeToString(sum[:])
	body, err := json.Marshal(fields)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestWebhookRendersResultBareNotEnveloped(t *testing.T) {
	r := newReconciler(t, "")
	handler := Webhook(discardLogger(), r)

	body := signedBody(t, "", map[string]interface{}{
		"uuid":     "pay-1",
		"order_id": "not-a-valid-order",
		"status":   "process",
	})
	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Success bool `json:"success"`
		Data    interface{} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Error("expected success=true at the top level, not wrapped under data")
	}
	if resp.Data != nil {
		t.Error("webhook response should not be wrapped in the envelope's data field")
	}
}

func TestWebhookInvalidSignatureReturns401(t *testing.T) {
	r := newReconciler(t, "real-key")
	handler := Webhook(discardLogger(), r)

	body := signedBody(t, "wrong-key", map[string]interface{}{
		"uuid":     "pay-2",
		"order_id": "user_u1_pkg_100k",
		"status":   "paid",
	})
	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestWebhookMalformedOrderIDReturns400(t *testing.T) {
	r := newReconciler(t, "")
	handler := Webhook(discardLogger(), r)

	body := signedBody(t, "", map[string]interface{}{
		"uuid":     "pay-3",
		"order_id": "garbage",
		"status":   "paid",
	})
	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPackagesListsCatalogue(t *testing.T) {
	handler := Packages()
	req := httptest.NewRequest(http.MethodGet, "/payment/packages", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) == 0 {
		t.Error("expected a non-empty package catalogue")
	}
}
