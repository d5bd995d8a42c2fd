package goals

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"wfsync/internal/goals"
	"wfsync/internal/tenantstore"
	"wfsync/lib/api/cont"

	"wfsync/entity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

func newService(t *testing.T) *goals.Service {
	t.Helper()
	return goals.NewService(tenantstore.NewManager(t.TempDir()))
}

func withUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(cont.PutUser(req.Context(), &entity.User{ID: userID}))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateGoalRequiresText(t *testing.T) {
	svc := newService(t)
	handler := Create(discardLogger(), svc)

	req := httptest.NewRequest(http.MethodPost, "/goals", bytes.NewReader([]byte(`{"text":""}`)))
	req.Header.Set("Content-Type", "application/json")
	req = withUser(req, "u1")
	rec := httptest.NewRecorder()

	handler(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateAndGetGoal(t *testing.T) {
	svc := newService(t)
	createHandler := Create(discardLogger(), svc)

	body, _ := json.Marshal(map[string]string{"text": "I want to learn Go", "category": "education"})
	req := httptest.NewRequest(http.MethodPost, "/goals", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUser(req, "u1")
	rec := httptest.NewRecorder()
	createHandler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data entity.Goal `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	getHandler := Get(discardLogger(), svc)
	getReq := httptest.NewRequest(http.MethodGet, "/goals/"+created.Data.ID, nil)
	getReq = withUser(getReq, "u1")
	getReq = withURLParam(getReq, "id", created.Data.ID)
	getRec := httptest.NewRecorder()
	getHandler(getRec, getReq)

	if getRec.Code != http.StatusOK {
		t.Fatalf("get status = %d", getRec.Code)
	}
}

func TestUpdateProgressOutOfRangeReturns400(t *testing.T) {
	svc := newService(t)
	goal, err := svc.Create("u1", "run 5k", "health")
	if err != nil {
		t.Fatal(err)
	}

	handler := UpdateProgress(discardLogger(), svc)
	body, _ := json.Marshal(map[string]int{"progress": 150})
	req := httptest.NewRequest(http.MethodPatch, "/goals/"+goal.ID+"/progress", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUser(req, "u1")
	req = withURLParam(req, "id", goal.ID)
	rec := httptest.NewRecorder()

	handler(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCompleteUnknownGoalReturns404(t *testing.T) {
	svc := newService(t)
	handler := Complete(discardLogger(), svc)

	req := httptest.NewRequest(http.MethodPost, "/goals/ghost/complete", nil)
	req = withUser(req, "u1")
	req = withURLParam(req, "id", "ghost")
	rec := httptest.NewRecorder()

	handler(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
