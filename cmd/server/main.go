package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wfsync/internal/authsvc"
	"wfsync/internal/billing"
	"wfsync/internal/channels"
	"wfsync/internal/channels/telegram"
	"wfsync/internal/config"
	"wfsync/internal/goals"
	"wfsync/internal/housekeeping"
	"wfsync/internal/httpapi/api"
	"wfsync/internal/identitystore"
	"wfsync/internal/memory"
	"wfsync/internal/orchestrator"
	"wfsync/internal/payment"
	"wfsync/internal/tenantstore"
	"wfsync/lib/logger"
	"wfsync/lib/sl"
)

const embeddingDims = 256

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	log := logger.SetupLogger(conf.Env, *logPath)
	log.Info("starting wfsync", slog.String("config", *configPath), slog.String("env", conf.Env))

	identity, err := identitystore.Open(conf.Storage.DatabaseURL)
	if err != nil {
		log.Error("open identity store", sl.Err(err))
		os.Exit(1)
	}
	defer identity.Close()

	tenants := tenantstore.NewManager(conf.Storage.TenantWorkspace)

	meter := billing.New(identity,
		billing.WithMarkup(conf.Billing.MarkupPercent),
		billing.WithTrialDays(conf.Billing.TrialDays),
		billing.WithTrialTokenLimit(conf.Billing.TrialTokenLimit),
	)

	auth := authsvc.New(identity, conf.Auth.JWTSecret, conf.Auth.JWTExpiryDays, conf.Billing.TrialDays, conf.Billing.TrialTokenLimit)

	embedder := memory.NewHashEmbedder(embeddingDims)
	runtime := orchestrator.NewHTTPRuntime(log)
	orch := orchestrator.New(identity, tenants, meter, runtime, embedder, log)
	goalsSvc := goals.NewService(tenants)

	var reconciler *payment.Reconciler
	var paymentClient *payment.Client
	if conf.Cryptomus.APIKey != "" {
		reconciler = payment.NewReconciler(identity, meter, conf.Cryptomus.APIKey)
		paymentClient = payment.NewClient(conf.Cryptomus.MerchantID, conf.Cryptomus.APIKey)
	} else {
		log.Warn("cryptomus api key not configured; payment creation will report unavailable and webhook signatures will not be verified")
		reconciler = payment.NewReconciler(identity, meter, "")
	}

	janitor := housekeeping.New(housekeeping.Config{Store: identity, Logger: log})
	if err := janitor.Start(); err != nil {
		log.Error("start janitor", sl.Err(err))
		os.Exit(1)
	}
	defer janitor.Stop()

	registry := channels.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bootTelegramChannels(ctx, log, identity, auth, orch, registry)

	server, err := api.New(conf, log, api.Deps{
		Auth:          auth,
		Identity:      identity,
		Meter:         meter,
		Orchestrator:  orch,
		Reconciler:    reconciler,
		PaymentClient: paymentClient,
		Goals:         goalsSvc,
	})
	if err != nil {
		log.Error("start api server", sl.Err(err))
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown api server", sl.Err(err))
	}
}

// bootTelegramChannels scans every agent for a channels.telegram config and
// starts a long-poll Channel for each, wired to that agent's own
// orchestrator handler. Channels started here are not re-scanned on agent
// updates; picking up a newly connected bot requires a restart (see
// DESIGN.md).
func bootTelegramChannels(ctx context.Context, log *slog.Logger, identity *identitystore.Store, auth *authsvc.Service, orch *orchestrator.Orchestrator, registry *channels.Registry) {
	agentList, err := identity.ListAllAgents()
	if err != nil {
		log.Error("list agents for telegram boot", sl.Err(err))
		return
	}

	for _, agent := range agentList {
		tgConf, err := agent.TelegramConfig()
		if err != nil {
			log.Error("decode agent telegram config", sl.Err(err), "agent_id", agent.ID)
			continue
		}
		if tgConf == nil || tgConf.BotToken == "" {
			continue
		}

		ch, err := telegram.New(agent.ID, tgConf.BotToken, tgConf.AllowedUsers, auth, identity, log.With(sl.Module("telegram"), slog.String("agent_id", agent.ID)))
		if err != nil {
			log.Error("start telegram channel", sl.Err(err), "agent_id", agent.ID)
			continue
		}
		registry.Register(ch)

		handler := orch.ChannelHandler(agent.ID)
		go func(agentID string, ch *telegram.Channel) {
			if err := ch.Listen(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("telegram channel stopped", sl.Err(err), "agent_id", agentID)
			}
		}(agent.ID, ch)
	}
}
