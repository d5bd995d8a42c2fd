// Package payment implements POST /payment/webhook, POST /payment/create,
// and GET /payment/packages.
package payment

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"wfsync/entity"
	"wfsync/internal/payment"
	"wfsync/lib/api/cont"
	"wfsync/lib/api/response"
	"wfsync/lib/sl"
)

// Webhook verifies and settles one Cryptomus delivery. Authenticated by
// payload signature, not a bearer token — it sits outside the /v1 router
// group.
func Webhook(log *slog.Logger, reconciler *payment.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.payment"), slog.String("request_id", middleware.GetReqID(r.Context())))

		body, err := io.ReadAll(r.Body)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("cannot read body"))
			return
		}

		result, err := reconciler.ProcessWebhook(body)
		if err != nil {
			switch {
			case errors.Is(err, payment.ErrInvalidSignature):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(err.Error()))
			case errors.Is(err, payment.ErrMalformedOrderID), errors.Is(err, payment.ErrUnknownPackage):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error(err.Error()))
			default:
				logger.Error("process webhook", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal error"))
			}
			return
		}

		render.JSON(w, r, result)
	}
}

// Create builds a hosted Cryptomus payment link for the caller's chosen
// package, encoding the order id as user_<id>_pkg_<package> so the
// webhook reconciler can attribute it without a side lookup.
func Create(log *slog.Logger, client *payment.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.payment"), slog.String("request_id", middleware.GetReqID(r.Context())))
		user := cont.GetUser(r.Context())

		var req entity.CreatePaymentRequest
		if err := render.Bind(r, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid request: "+err.Error()))
			return
		}
		pkg, ok := entity.FindTokenPackage(req.Package)
		if !ok {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("unknown package"))
			return
		}
		if client == nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("payment provider unavailable"))
			return
		}

		orderID := entity.BuildOrderID(user.ID, pkg.Name)

		url, err := client.CreatePayment(r.Context(), orderID, req.AmountCents)
		if err != nil {
			logger.Error("create payment", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("payment provider error"))
			return
		}

		render.JSON(w, r, response.Ok(entity.CreatePaymentResponse{PaymentURL: url, OrderID: orderID}))
	}
}

// Packages lists the fixed token-package catalogue. No auth required.
func Packages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok(entity.TokenPackages))
	}
}
