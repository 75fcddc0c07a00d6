// Package dispatcher orchestrates the periodic fetch, merge and notify
// cycle and the recipient-facing commands.
package dispatcher

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nhsjobwatch/jobwatch/internal/jobs"
	"github.com/nhsjobwatch/jobwatch/internal/metrics"
)

// Config controls cycle scheduling and the queries sent to the source.
type Config struct {
	// Interval between periodic cycles.
	Interval time.Duration
	// InitialDelay before the first cycle after startup.
	InitialDelay time.Duration
	Queries      []jobs.QuerySpec
}

// Dispatcher drives the three-stage pipeline. Cycles never overlap: the
// periodic tick and a manual check contend on one mutex, and within a cycle
// fetch completes before merge, which completes before any broadcast.
type Dispatcher struct {
	cfg       Config
	fetcher   Fetcher
	store     JobStore
	messenger Messenger
	logger    *zap.Logger

	cycleMu sync.Mutex
}

// New constructs a Dispatcher.
func New(cfg Config, fetcher Fetcher, store JobStore, messenger Messenger, logger *zap.Logger) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 10 * time.Second
	}
	return &Dispatcher{
		cfg:       cfg,
		fetcher:   fetcher,
		store:     store,
		messenger: messenger,
		logger:    logger,
	}
}

// Run schedules the periodic cycle and blocks until the context finishes.
// The first cycle runs shortly after startup rather than waiting a full
// interval.
func (d *Dispatcher) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", d.cfg.Interval), func() {
		if err := d.RunCycle(ctx); err != nil {
			d.logger.Error("scheduled cycle failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cycle: %w", err)
	}
	c.Start()
	d.logger.Info("cycle schedule started", zap.Duration("interval", d.cfg.Interval))

	select {
	case <-time.After(d.cfg.InitialDelay):
		if err := d.RunCycle(ctx); err != nil {
			d.logger.Error("initial cycle failed", zap.Error(err))
		}
	case <-ctx.Done():
	}

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// RunCycle executes one fetch → merge → broadcast pass. New jobs are never
// announced before the store has accepted them.
func (d *Dispatcher) RunCycle(ctx context.Context) error {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	log := d.logger.With(zap.String("cycle_id", uuid.NewString()))
	log.Info("cycle started")

	batch, err := d.fetcher.Fetch(ctx, d.cfg.Queries)
	if err != nil {
		metrics.IncCycle("error")
		return fmt.Errorf("fetch: %w", err)
	}

	accepted, err := d.store.MergeJobs(ctx, batch)
	if err != nil {
		metrics.IncCycle("error")
		d.notifyDebug(ctx, fmt.Sprintf("⚠️ Job check failed: %s", html.EscapeString(err.Error())))
		return fmt.Errorf("merge: %w", err)
	}

	if len(accepted) == 0 {
		metrics.IncCycle("empty")
		log.Info("no new jobs", zap.Int("scraped", len(batch)))
		d.notifyDebug(ctx, "No new jobs found.")
		return nil
	}

	if err := d.broadcast(ctx, log, accepted); err != nil {
		metrics.IncCycle("error")
		return err
	}
	metrics.IncCycle("ok")
	log.Info("cycle complete", zap.Int("new_jobs", len(accepted)))
	return nil
}

// broadcast delivers the digest of accepted records. A failure to reach one
// recipient never blocks delivery to the rest.
func (d *Dispatcher) broadcast(ctx context.Context, log *zap.Logger, accepted []jobs.JobRecord) error {
	recipients, err := d.store.Recipients(ctx)
	if err != nil {
		// Accepted jobs are already durable; the announcement is lost for
		// this cycle only.
		d.notifyDebug(ctx, fmt.Sprintf("⚠️ Could not list recipients: %s", html.EscapeString(err.Error())))
		return fmt.Errorf("list recipients: %w", err)
	}
	if len(recipients) == 0 {
		log.Info("no recipients registered, skipping broadcast")
		return nil
	}

	batchMsg := formatBatch(accepted)
	debugMsg := batchMsg
	if recent, ok, err := d.store.MostRecentJob(ctx); err != nil {
		log.Warn("most recent job lookup failed", zap.Error(err))
	} else if ok {
		debugMsg = batchMsg + "Most recent job in the sheet:\n" + formatJob(recent)
	}

	for _, rec := range recipients {
		msg, kind := batchMsg, "batch"
		if rec.Debug {
			msg, kind = debugMsg, "debug"
		}
		if err := d.messenger.Send(ctx, rec.ChatID, msg); err != nil {
			metrics.IncDeliveryFailed()
			log.Warn("delivery failed", zap.Int64("chat_id", rec.ChatID), zap.Error(err))
			continue
		}
		metrics.IncMessageSent(kind)
	}
	return nil
}

// HandleStart registers the chat and confirms only to it.
func (d *Dispatcher) HandleStart(ctx context.Context, chatID int64) error {
	if err := d.store.RegisterRecipient(ctx, chatID, false); err != nil {
		return fmt.Errorf("register recipient: %w", err)
	}
	return d.reply(ctx, chatID, "Hi! You've been added to the job notification list.")
}

// HandleHelp sends usage text to the chat.
func (d *Dispatcher) HandleHelp(ctx context.Context, chatID int64) error {
	return d.reply(ctx, chatID,
		"This bot will notify you about new NHS job postings. Use /start to subscribe to notifications.")
}

// HandleCheck forces one cycle synchronously and reports completion to the
// invoking chat.
func (d *Dispatcher) HandleCheck(ctx context.Context, chatID int64) error {
	if err := d.reply(ctx, chatID, "Manually checking for new jobs..."); err != nil {
		return err
	}
	if err := d.RunCycle(ctx); err != nil {
		return d.reply(ctx, chatID, "Job check failed, see logs.")
	}
	return d.reply(ctx, chatID, "Job check completed.")
}

// NotifyStartup tells debug recipients the process came up.
func (d *Dispatcher) NotifyStartup(ctx context.Context) {
	d.notifyDebug(ctx, "✅ Job watcher started.")
}

// NotifyShutdown tells debug recipients the process is going away. Called
// before resources are released, best-effort.
func (d *Dispatcher) NotifyShutdown(ctx context.Context) {
	d.notifyDebug(ctx, "🛑 Job watcher shutting down.")
}

// notifyDebug sends a status message to every debug recipient. Non-debug
// recipients never see operational text.
func (d *Dispatcher) notifyDebug(ctx context.Context, text string) {
	recipients, err := d.store.Recipients(ctx)
	if err != nil {
		d.logger.Warn("cannot list recipients for status message", zap.Error(err))
		return
	}
	for _, rec := range recipients {
		if !rec.Debug {
			continue
		}
		if err := d.messenger.Send(ctx, rec.ChatID, text); err != nil {
			metrics.IncDeliveryFailed()
			d.logger.Warn("status delivery failed", zap.Int64("chat_id", rec.ChatID), zap.Error(err))
			continue
		}
		metrics.IncMessageSent("status")
	}
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) error {
	if err := d.messenger.Send(ctx, chatID, text); err != nil {
		metrics.IncDeliveryFailed()
		return fmt.Errorf("reply to %d: %w", chatID, err)
	}
	metrics.IncMessageSent("reply")
	return nil
}
