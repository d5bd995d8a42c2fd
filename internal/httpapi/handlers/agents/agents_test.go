package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"wfsync/entity"
	"wfsync/internal/identitystore"
	"wfsync/lib/api/cont"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

func openStore(t *testing.T) *identitystore.Store {
	t.Helper()
	s, err := identitystore.Open(filepath.Join(t.TempDir(), "central.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustUser(t *testing.T, s *identitystore.Store, id string) *entity.User {
	t.Helper()
	u := &entity.User{ID: id, Email: id + "@example.com", PasswordHash: "x", CreatedAt: time.Now().UTC()}
	if err := s.CreateUser(u, 3, 100_000); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateAssignsOwnerAndID(t *testing.T) {
	store := openStore(t)
	user := mustUser(t, store, "u1")
	handler := Create(discardLogger(), store)

	body, _ := json.Marshal(map[string]string{"name": "My Agent"})
	req := httptest.NewRequest(http.MethodPost, "/agents", bytes.NewReader(body))
	req = req.WithContext(cont.PutUser(req.Context(), user))
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data entity.Agent `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.UserID != user.ID {
		t.Errorf("user id = %q, want %q", resp.Data.UserID, user.ID)
	}
	if resp.Data.ID == "" {
		t.Error("expected generated agent id")
	}
}

func TestListReturnsOnlyCallersAgents(t *testing.T) {
	store := openStore(t)
	owner := mustUser(t, store, "owner")
	other := mustUser(t, store, "other")

	for _, uid := range []string{owner.ID, other.ID} {
		if err := store.CreateAgent(&entity.Agent{ID: uid + "-agent", UserID: uid, Name: "a", Config: []byte("{}"), CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}); err != nil {
			t.Fatal(err)
		}
	}

	handler := List(discardLogger(), store)
	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	req = req.WithContext(cont.PutUser(req.Context(), owner))
	rec := httptest.NewRecorder()

	handler(rec, req)

	var resp struct {
		Data []entity.Agent `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].UserID != owner.ID {
		t.Errorf("got %+v, want exactly one agent owned by %q", resp.Data, owner.ID)
	}
}

func TestGetForbidsNonOwner(t *testing.T) {
	store := openStore(t)
	owner := mustUser(t, store, "owner")
	intruder := mustUser(t, store, "intruder")

	agent := &entity.Agent{ID: "agent-1", UserID: owner.ID, Name: "a", Config: []byte("{}"), CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := store.CreateAgent(agent); err != nil {
		t.Fatal(err)
	}

	handler := Get(discardLogger(), store)
	req := httptest.NewRequest(http.MethodGet, "/agents/agent-1", nil)
	req = req.WithContext(cont.PutUser(req.Context(), intruder))
	req = withURLParam(req, "id", "agent-1")
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestGetNotFound(t *testing.T) {
	store := openStore(t)
	owner := mustUser(t, store, "owner")

	handler := Get(discardLogger(), store)
	req := httptest.NewRequest(http.MethodGet, "/agents/ghost", nil)
	req = req.WithContext(cont.PutUser(req.Context(), owner))
	req = withURLParam(req, "id", "ghost")
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
