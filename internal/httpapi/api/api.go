// Package api wires the HTTP surface together: chi router, middleware
// stack, and route tree, grounded on the teacher's
// internal/http-server/api/api.go.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"wfsync/entity"
	"wfsync/internal/authsvc"
	"wfsync/internal/billing"
	"wfsync/internal/config"
	"wfsync/internal/httpapi/handlers/agents"
	"wfsync/internal/httpapi/handlers/auth"
	apierrors "wfsync/internal/httpapi/handlers/errors"
	goalshandler "wfsync/internal/httpapi/handlers/goals"
	paymenthandler "wfsync/internal/httpapi/handlers/payment"
	"wfsync/internal/httpapi/handlers/telegram"
	"wfsync/internal/httpapi/handlers/usage"
	"wfsync/internal/httpapi/middleware/authenticate"
	"wfsync/internal/httpapi/middleware/timeout"
	"wfsync/internal/goals"
	"wfsync/internal/identitystore"
	"wfsync/internal/orchestrator"
	"wfsync/internal/payment"
	"wfsync/lib/sl"
)

// Deps collects every component the HTTP surface routes onto.
type Deps struct {
	Auth          *authsvc.Service
	Identity      *identitystore.Store
	Meter         *billing.TokenMeter
	Orchestrator  *orchestrator.Orchestrator
	Reconciler    *payment.Reconciler
	PaymentClient *payment.Client
	Goals         *goals.Service
}

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

func New(conf *config.Config, log *slog.Logger, deps Deps) (*Server, error) {
	server := &Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(30 * time.Second))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(apierrors.NotFound())
	router.MethodNotAllowed(apierrors.NotAllowed())

	router.Post("/payment/webhook", paymenthandler.Webhook(log, deps.Reconciler))
	router.Get("/payment/packages", paymenthandler.Packages())

	router.Post("/auth/register", auth.Register(log, deps.Auth))
	router.Post("/auth/login", auth.Login(log, deps.Auth))

	router.Group(func(protected chi.Router) {
		protected.Use(authenticate.New(log, deps.Auth, deps.Identity))

		linkTTLSeconds := int64(entity.TelegramLinkCodeTTL.Seconds())
		protected.Get("/auth/telegram-link", auth.TelegramLink(log, deps.Auth, conf.Telegram.BotUsername, linkTTLSeconds))
		protected.Get("/auth/telegram-status", auth.TelegramStatus())

		protected.Get("/usage", usage.Get(log, deps.Meter))

		protected.Post("/agents", agents.Create(log, deps.Identity))
		protected.Get("/agents", agents.List(log, deps.Identity))
		protected.Get("/agents/{id}", agents.Get(log, deps.Identity))
		protected.Post("/agents/{id}/chat", agents.Chat(log, deps.Orchestrator))

		protected.Post("/telegram/{id}/connect", telegram.Connect(log, deps.Identity))

		protected.Post("/payment/create", paymenthandler.Create(log, deps.PaymentClient))

		protected.Post("/goals", goalshandler.Create(log, deps.Goals))
		protected.Get("/goals", goalshandler.List(log, deps.Goals))
		protected.Get("/goals/{id}", goalshandler.Get(log, deps.Goals))
		protected.Patch("/goals/{id}/progress", goalshandler.UpdateProgress(log, deps.Goals))
		protected.Post("/goals/{id}/complete", goalshandler.Complete(log, deps.Goals))
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	addr := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	server.log.Info("starting api server", slog.String("address", addr))

	go func() {
		if err := server.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			server.log.Error("http server error", sl.Err(err))
		}
	}()

	return server, nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down api server")
	return s.httpServer.Shutdown(ctx)
}
