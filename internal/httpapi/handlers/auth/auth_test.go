package auth

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"wfsync/entity"
	"wfsync/internal/authsvc"
	"wfsync/lib/api/cont"
)

type fakeCore struct {
	registerUserID, registerToken string
	registerErr                   error
	loginUserID, loginToken       string
	loginErr                     error
	linkCode                     string
	linkErr                      error
}

func (f fakeCore) Register(email, password string) (string, string, error) {
	return f.registerUserID, f.registerToken, f.registerErr
}
func (f fakeCore) Login(email, password string) (string, string, error) {
	return f.loginUserID, f.loginToken, f.loginErr
}
func (f fakeCore) GenerateTelegramLink(userID string) (string, error) {
	return f.linkCode, f.linkErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

func postJSON(t *testing.T, path string, body interface{}) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRegisterSuccess(t *testing.T) {
	core := fakeCore{registerUserID: "u1", registerToken: "tok"}
	handler := Register(discardLogger(), core)

	rec := httptest.NewRecorder()
	handler(rec, postJSON(t, "/auth/register", credentialsRequest{Email: "a@b.com", Password: "password1"}))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
}

func TestRegisterEmailTakenReturnsConflict(t *testing.T) {
	core := fakeCore{registerErr: authsvc.ErrEmailTaken}
	handler := Register(discardLogger(), core)

	rec := httptest.NewRecorder()
	handler(rec, postJSON(t, "/auth/register", credentialsRequest{Email: "a@b.com", Password: "password1"}))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestRegisterWeakPasswordReturnsBadRequest(t *testing.T) {
	core := fakeCore{registerErr: authsvc.ErrWeakPassword}
	handler := Register(discardLogger(), core)

	rec := httptest.NewRecorder()
	handler(rec, postJSON(t, "/auth/register", credentialsRequest{Email: "a@b.com", Password: "short"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLoginInvalidCredentialsReturnsUnauthorized(t *testing.T) {
	core := fakeCore{loginErr: authsvc.ErrInvalidCredentials}
	handler := Login(discardLogger(), core)

	rec := httptest.NewRecorder()
	handler(rec, postJSON(t, "/auth/login", credentialsRequest{Email: "a@b.com", Password: "wrong"}))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestTelegramLinkBuildsDeepLinkWhenBotUsernameSet(t *testing.T) {
	core := fakeCore{linkCode: "tg_abc123"}
	handler := TelegramLink(discardLogger(), core, "mybot", 3600)

	req := httptest.NewRequest(http.MethodGet, "/auth/telegram-link", nil)
	ctx := cont.PutUser(req.Context(), &entity.User{ID: "u1"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Data telegramLinkResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Link != "https://t.me/mybot?start=tg_abc123" {
		t.Errorf("link = %q", body.Data.Link)
	}
}

func TestTelegramStatusReflectsLinkedUser(t *testing.T) {
	handler := TelegramStatus()
	telegramID := "12345"

	req := httptest.NewRequest(http.MethodGet, "/auth/telegram-status", nil)
	ctx := cont.PutUser(req.Context(), &entity.User{ID: "u1", TelegramID: &telegramID})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	handler(rec, req)

	var body struct {
		Data telegramStatusResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Data.Connected {
		t.Error("expected connected = true")
	}
}
