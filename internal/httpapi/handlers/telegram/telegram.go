// Package telegram implements POST /telegram/:id/connect, which stores a
// bot token into an owned agent's config.channels.telegram.bot_token.
package telegram

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"wfsync/entity"
	"wfsync/internal/identitystore"
	"wfsync/lib/api/cont"
	"wfsync/lib/api/response"
	"wfsync/lib/sl"
)

type connectRequest struct {
	Token string `json:"token"`
}

func (c *connectRequest) Bind(_ *http.Request) error { return nil }

func Connect(log *slog.Logger, store *identitystore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.telegram"), slog.String("request_id", middleware.GetReqID(r.Context())))
		user := cont.GetUser(r.Context())
		id := chi.URLParam(r, "id")

		var req connectRequest
		if err := render.Bind(r, &req); err != nil || req.Token == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("token is required"))
			return
		}

		agent, err := store.GetAgent(id)
		if errors.Is(err, identitystore.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("agent not found"))
			return
		}
		if err != nil {
			logger.Error("get agent", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
		if agent.UserID != user.ID {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Error("forbidden"))
			return
		}

		existing, err := agent.TelegramConfig()
		if err != nil {
			logger.Error("decode agent config", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
		allowed := []string{}
		if existing != nil {
			allowed = existing.AllowedUsers
		}

		if err := agent.SetTelegramConfig(&entity.TelegramChannelConfig{BotToken: req.Token, AllowedUsers: allowed}); err != nil {
			logger.Error("encode agent config", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
		agent.UpdatedAt = time.Now().UTC()

		if err := store.UpdateAgent(agent); err != nil {
			logger.Error("update agent", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}

		render.JSON(w, r, response.Ok(nil))
	}
}
