// Package goals implements the supplemental goal-tracking routes
// (POST/GET /goals, GET /goals/:id, PATCH /goals/:id/progress, POST
// /goals/:id/complete) backing internal/goals.Service. Not part of the
// spec's route table; reachable only under the authenticated group.
package goals

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"wfsync/internal/goals"
	"wfsync/internal/tenantstore"
	"wfsync/lib/api/cont"
	"wfsync/lib/api/response"
	"wfsync/lib/sl"
)

type createRequest struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

func (c *createRequest) Bind(_ *http.Request) error { return nil }

func Create(log *slog.Logger, svc *goals.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.goals"), slog.String("request_id", middleware.GetReqID(r.Context())))
		user := cont.GetUser(r.Context())

		var req createRequest
		if err := render.Bind(r, &req); err != nil || req.Text == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("text is required"))
			return
		}

		goal, err := svc.Create(user.ID, req.Text, req.Category)
		if err != nil {
			logger.Error("create goal", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(goal))
	}
}

func List(log *slog.Logger, svc *goals.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.goals"), slog.String("request_id", middleware.GetReqID(r.Context())))
		user := cont.GetUser(r.Context())

		list, err := svc.List(user.ID, "")
		if err != nil {
			logger.Error("list goals", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
		render.JSON(w, r, response.Ok(list))
	}
}

func Get(log *slog.Logger, svc *goals.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.goals"), slog.String("request_id", middleware.GetReqID(r.Context())))
		user := cont.GetUser(r.Context())
		id := chi.URLParam(r, "id")

		goal, err := svc.Get(user.ID, id)
		if errors.Is(err, tenantstore.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("goal not found"))
			return
		}
		if err != nil {
			logger.Error("get goal", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
		render.JSON(w, r, response.Ok(goal))
	}
}

type progressRequest struct {
	Progress int `json:"progress"`
}

func (p *progressRequest) Bind(_ *http.Request) error { return nil }

func UpdateProgress(log *slog.Logger, svc *goals.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.goals"), slog.String("request_id", middleware.GetReqID(r.Context())))
		user := cont.GetUser(r.Context())
		id := chi.URLParam(r, "id")

		var req progressRequest
		if err := render.Bind(r, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid request: "+err.Error()))
			return
		}

		if err := svc.UpdateProgress(user.ID, id, req.Progress); err != nil {
			if errors.Is(err, tenantstore.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("goal not found"))
				return
			}
			if errors.Is(err, goals.ErrProgressOutOfRange) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error(err.Error()))
				return
			}
			logger.Error("update goal progress", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
		render.JSON(w, r, response.Ok(nil))
	}
}

func Complete(log *slog.Logger, svc *goals.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.goals"), slog.String("request_id", middleware.GetReqID(r.Context())))
		user := cont.GetUser(r.Context())
		id := chi.URLParam(r, "id")

		if err := svc.Complete(user.ID, id); err != nil {
			if errors.Is(err, tenantstore.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("goal not found"))
				return
			}
			logger.Error("complete goal", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
		render.JSON(w, r, response.Ok(nil))
	}
}
