package usage

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"wfsync/entity"
	"wfsync/internal/billing"
	"wfsync/lib/api/cont"
	"wfsync/lib/api/response"
)

type fakeCore struct {
	status         billing.AccessResult
	trialRemaining int64
	totalUsage     int64
	totalCost      int64
}

func (f fakeCore) CheckAccess(userID string) (billing.AccessResult, error) { return f.status, nil }
func (f fakeCore) GetTrialRemaining(userID string) (int64, error)          { return f.trialRemaining, nil }
func (f fakeCore) GetTotalUsage(userID string) (int64, error)              { return f.totalUsage, nil }
func (f fakeCore) GetTotalCost(userID string) (int64, error)               { return f.totalCost, nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

func TestGetIncludesTrialRemainingWhenUserKnown(t *testing.T) {
	core := fakeCore{status: billing.AccessAllowed, trialRemaining: 4200, totalUsage: 100, totalCost: 5}
	handler := Get(discardLogger(), core)

	req := httptest.NewRequest(http.MethodGet, "/usage", nil)
	ctx := cont.PutUser(req.Context(), &entity.User{ID: "u1"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body response.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data, ok := body.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data = %T, want map", body.Data)
	}
	if data["trial_tokens_remaining"] != float64(4200) {
		t.Errorf("trial_tokens_remaining = %v, want 4200", data["trial_tokens_remaining"])
	}
}

func TestGetOmitsTrialRemainingWhenUserNotFound(t *testing.T) {
	core := fakeCore{status: billing.AccessUserNotFound}
	handler := Get(discardLogger(), core)

	req := httptest.NewRequest(http.MethodGet, "/usage", nil)
	ctx := cont.PutUser(req.Context(), &entity.User{ID: "ghost"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	handler(rec, req)

	var body response.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data := body.Data.(map[string]interface{})
	if _, present := data["trial_tokens_remaining"]; present {
		t.Error("trial_tokens_remaining should be omitted for an unknown user")
	}
}
