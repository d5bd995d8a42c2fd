// Package agents implements POST/GET /agents, GET /agents/:id, and
// POST /agents/:id/chat.
package agents

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"wfsync/entity"
	"wfsync/internal/identitystore"
	"wfsync/internal/orchestrator"
	"wfsync/lib/api/cont"
	"wfsync/lib/api/response"
	"wfsync/lib/sl"
)

func Create(log *slog.Logger, store *identitystore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.agents"), slog.String("request_id", middleware.GetReqID(r.Context())))
		user := cont.GetUser(r.Context())

		var agent entity.Agent
		if err := render.Bind(r, &agent); err != nil {
			badRequest(w, r, "invalid request: "+err.Error())
			return
		}

		now := time.Now().UTC()
		agent.ID = uuid.NewString()
		agent.UserID = user.ID
		agent.CreatedAt = now
		agent.UpdatedAt = now

		if err := store.CreateAgent(&agent); err != nil {
			logger.Error("create agent", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(agent))
	}
}

func List(log *slog.Logger, store *identitystore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.agents"), slog.String("request_id", middleware.GetReqID(r.Context())))
		user := cont.GetUser(r.Context())

		list, err := store.ListAgentsByUser(user.ID)
		if err != nil {
			logger.Error("list agents", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
		if list == nil {
			list = []entity.Agent{}
		}
		render.JSON(w, r, response.Ok(list))
	}
}

func Get(log *slog.Logger, store *identitystore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.agents"), slog.String("request_id", middleware.GetReqID(r.Context())))
		user := cont.GetUser(r.Context())
		id := chi.URLParam(r, "id")

		agent, err := store.GetAgent(id)
		if errors.Is(err, identitystore.ErrNotFound) {
			notFound(w, r, "agent not found")
			return
		}
		if err != nil {
			logger.Error("get agent", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
		if agent.UserID != user.ID {
			forbidden(w, r)
			return
		}

		render.JSON(w, r, response.Ok(agent))
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

func (c *chatRequest) Bind(_ *http.Request) error { return nil }

type chatResponse struct {
	Response string `json:"response"`
}

func Chat(log *slog.Logger, orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.agents"), slog.String("request_id", middleware.GetReqID(r.Context())))
		user := cont.GetUser(r.Context())
		agentID := chi.URLParam(r, "id")

		var req chatRequest
		if err := render.Bind(r, &req); err != nil {
			badRequest(w, r, "invalid request: "+err.Error())
			return
		}
		if req.Message == "" {
			badRequest(w, r, "message is required")
			return
		}

		reply, err := orch.HandleChat(r.Context(), user.ID, agentID, req.Message)
		if err != nil {
			writeOrchestratorError(logger, w, r, err)
			return
		}

		render.JSON(w, r, response.Ok(chatResponse{Response: reply}))
	}
}

func writeOrchestratorError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var denied *orchestrator.AccessDeniedError
	switch {
	case errors.As(err, &denied):
		render.Status(r, http.StatusPaymentRequired)
		render.JSON(w, r, accessDeniedBody{Error: "access denied", Reason: string(denied.Reason)})
	case errors.Is(err, orchestrator.ErrAgentNotFound):
		notFound(w, r, "agent not found")
	case errors.Is(err, orchestrator.ErrForbidden):
		forbidden(w, r)
	default:
		var upstream *orchestrator.UpstreamError
		if errors.As(err, &upstream) {
			logger.Error("upstream error", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("upstream service error"))
			return
		}
		logger.Error("handle chat", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
	}
}

type accessDeniedBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, response.Error(message))
}

func notFound(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, response.Error(message))
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusForbidden)
	render.JSON(w, r, response.Error("forbidden"))
}
