// Package usage implements GET /usage.
package usage

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"wfsync/internal/billing"
	"wfsync/lib/api/cont"
	"wfsync/lib/api/response"
	"wfsync/lib/sl"
)

// Core is what the usage handler needs from billing.TokenMeter.
type Core interface {
	CheckAccess(userID string) (billing.AccessResult, error)
	GetTrialRemaining(userID string) (int64, error)
	GetTotalUsage(userID string) (int64, error)
	GetTotalCost(userID string) (int64, error)
}

type usageResponse struct {
	Status                string `json:"status"`
	TrialTokensRemaining  *int64 `json:"trial_tokens_remaining,omitempty"`
	TotalTokensUsed       int64  `json:"total_tokens_used"`
	TotalCostCents        int64  `json:"total_cost_cents"`
}

func Get(log *slog.Logger, core Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.usage"), slog.String("request_id", middleware.GetReqID(r.Context())))
		user := cont.GetUser(r.Context())

		status, err := core.CheckAccess(user.ID)
		if err != nil {
			logger.Error("check access", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
		totalUsed, err := core.GetTotalUsage(user.ID)
		if err != nil {
			logger.Error("get total usage", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
		totalCost, err := core.GetTotalCost(user.ID)
		if err != nil {
			logger.Error("get total cost", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}

		resp := usageResponse{
			Status:          string(status),
			TotalTokensUsed: totalUsed,
			TotalCostCents:  totalCost,
		}
		if status != billing.AccessUserNotFound {
			if remaining, err := core.GetTrialRemaining(user.ID); err == nil {
				resp.TrialTokensRemaining = &remaining
			}
		}

		render.JSON(w, r, response.Ok(resp))
	}
}
