// Package auth implements POST /auth/register, POST /auth/login,
// GET /auth/telegram-link, and GET /auth/telegram-status, grounded on the
// teacher's handlers/payment package shape (Core interface, slog.With
// chain, render.Bind for the request body).
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"wfsync/internal/authsvc"
	"wfsync/lib/api/cont"
	"wfsync/lib/api/response"
	"wfsync/lib/sl"
)

// Core is what the auth handlers need from authsvc.Service.
type Core interface {
	Register(email, password string) (userID, token string, err error)
	Login(email, password string) (userID, token string, err error)
	GenerateTelegramLink(userID string) (code string, err error)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *credentialsRequest) Bind(_ *http.Request) error { return nil }

type authResponse struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// Register creates an account and answers 201 with its user id and token;
// a malformed email or short password is a 400, a taken email a 409.
func Register(log *slog.Logger, core Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.auth"), slog.String("request_id", middleware.GetReqID(r.Context())))

		var req credentialsRequest
		if err := render.Bind(r, &req); err != nil {
			badRequest(w, r, fmt.Sprintf("invalid request: %v", err))
			return
		}

		userID, token, err := core.Register(req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, authsvc.ErrInvalidEmail), errors.Is(err, authsvc.ErrWeakPassword):
				badRequest(w, r, err.Error())
			case errors.Is(err, authsvc.ErrEmailTaken):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.Error(err.Error()))
			default:
				logger.Error("register", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal error"))
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(authResponse{UserID: userID, Token: token}))
	}
}

func Login(log *slog.Logger, core Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.auth"), slog.String("request_id", middleware.GetReqID(r.Context())))

		var req credentialsRequest
		if err := render.Bind(r, &req); err != nil {
			badRequest(w, r, fmt.Sprintf("invalid request: %v", err))
			return
		}

		userID, token, err := core.Login(req.Email, req.Password)
		if err != nil {
			if errors.Is(err, authsvc.ErrInvalidCredentials) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(err.Error()))
				return
			}
			logger.Error("login", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}

		render.JSON(w, r, response.Ok(authResponse{UserID: userID, Token: token}))
	}
}

type telegramLinkResponse struct {
	Link            string `json:"link"`
	Code            string `json:"code"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

// TelegramLink issues a fresh one-time code and the bot deep link to send
// it to, botUsername coming from config (empty disables the "link" field).
func TelegramLink(log *slog.Logger, core Core, botUsername string, ttlSeconds int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.auth"), slog.String("request_id", middleware.GetReqID(r.Context())))
		user := cont.GetUser(r.Context())

		code, err := core.GenerateTelegramLink(user.ID)
		if err != nil {
			logger.Error("generate telegram link", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}

		link := ""
		if botUsername != "" {
			link = fmt.Sprintf("https://t.me/%s?start=%s", botUsername, code)
		}

		render.JSON(w, r, response.Ok(telegramLinkResponse{
			Link:            link,
			Code:            code,
			ExpiresInSeconds: ttlSeconds,
		}))
	}
}

type telegramStatusResponse struct {
	Connected         bool    `json:"connected"`
	TelegramUsername  *string `json:"telegram_username,omitempty"`
	TelegramID        *string `json:"telegram_id,omitempty"`
}

// TelegramStatus reads the already-authenticated user out of request
// context; no further lookup is needed since the authenticate middleware
// already fetched the full record.
func TelegramStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := cont.GetUser(r.Context())
		render.JSON(w, r, response.Ok(telegramStatusResponse{
			Connected:        user.HasTelegramLinked(),
			TelegramUsername: user.TelegramUsername,
			TelegramID:       user.TelegramID,
		}))
	}
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, response.Error(message))
}
