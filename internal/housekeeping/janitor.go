// Package housekeeping runs periodic sweeps against the central store:
// purging expired Telegram link codes and settled payment-ledger rows old
// enough that replay protection no longer needs them. Grounded on the
// scheduler shape in the pack's cron-based task scheduler (Config struct,
// logger default, Start/Stop lifecycle).
package housekeeping

import (
	"log/slog"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"wfsync/internal/identitystore"
	"wfsync/lib/sl"
)

// Config holds the Janitor's dependencies and sweep cadence.
type Config struct {
	Store            *identitystore.Store
	Logger           *slog.Logger
	LinkCodeSchedule string        // cron expression; defaults to every 10 minutes
	PaymentRetention time.Duration // payment_ledger rows older than this are purged; defaults to 90 days
}

// Janitor wraps a robfig/cron scheduler running the central store's
// expiry sweeps on their own cadence.
type Janitor struct {
	store            *identitystore.Store
	log              *slog.Logger
	paymentRetention time.Duration
	linkCodeSchedule string
	cron             *cronlib.Cron
}

func New(cfg Config) *Janitor {
	schedule := cfg.LinkCodeSchedule
	if schedule == "" {
		schedule = "*/10 * * * *"
	}
	retention := cfg.PaymentRetention
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		store:            cfg.Store,
		log:              logger.With(sl.Module("housekeeping")),
		paymentRetention: retention,
		linkCodeSchedule: schedule,
		cron:             cronlib.New(),
	}
}

// Start registers both sweeps and begins the cron scheduler in the
// background. Both sweeps run once immediately, then on their configured
// cadence.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.linkCodeSchedule, j.sweepLinkCodes); err != nil {
		return err
	}
	if _, err := j.cron.AddFunc("0 3 * * *", j.sweepPayments); err != nil {
		return err
	}
	j.cron.Start()
	j.sweepLinkCodes()
	j.sweepPayments()
	j.log.Info("janitor started", "link_code_schedule", j.linkCodeSchedule)
	return nil
}

// Stop halts the scheduler and waits for any in-flight sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.log.Info("janitor stopped")
}

func (j *Janitor) sweepLinkCodes() {
	n, err := j.store.PurgeExpiredLinkCodes(time.Now().UTC())
	if err != nil {
		j.log.Error("sweep expired link codes failed", sl.Err(err))
		return
	}
	if n > 0 {
		j.log.Info("purged expired telegram link codes", "count", n)
	}
}

func (j *Janitor) sweepPayments() {
	cutoff := time.Now().UTC().Add(-j.paymentRetention)
	n, err := j.store.PurgeOldPayments(cutoff)
	if err != nil {
		j.log.Error("sweep old payment ledger rows failed", sl.Err(err))
		return
	}
	if n > 0 {
		j.log.Info("purged old payment ledger rows", "count", n)
	}
}
