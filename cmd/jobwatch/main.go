// Package main wires together the jobwatch service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nhsjobwatch/jobwatch/internal/api"
	"github.com/nhsjobwatch/jobwatch/internal/clock/system"
	"github.com/nhsjobwatch/jobwatch/internal/config"
	"github.com/nhsjobwatch/jobwatch/internal/dispatcher"
	"github.com/nhsjobwatch/jobwatch/internal/logging"
	"github.com/nhsjobwatch/jobwatch/internal/metrics"
	"github.com/nhsjobwatch/jobwatch/internal/scraper"
	"github.com/nhsjobwatch/jobwatch/internal/store"
	"github.com/nhsjobwatch/jobwatch/internal/tabular"
	memoryTabular "github.com/nhsjobwatch/jobwatch/internal/tabular/memory"
	postgresTabular "github.com/nhsjobwatch/jobwatch/internal/tabular/postgres"
	sheetsTabular "github.com/nhsjobwatch/jobwatch/internal/tabular/sheets"
	"github.com/nhsjobwatch/jobwatch/internal/telegram"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobsTable, recipientsTable, cleanup, err := buildTables(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store provider init failed", zap.Error(err))
	}
	defer cleanup()

	clock := system.New()
	governor := store.NewGovernor(cfg.Store.Quota.Calls, cfg.Store.Quota.QuotaPeriod())
	st := store.New(jobsTable, recipientsTable, governor, clock,
		store.Config{CacheTTL: cfg.Store.CacheTTL()}, logger.Named("store"))
	if err := st.EnsureSchema(ctx); err != nil {
		logger.Fatal("schema check failed", zap.Error(err))
	}

	fetcher, err := scraper.NewCollyFetcher(scraper.FetcherConfig{
		UserAgent:      cfg.Scraper.UserAgent,
		RequestTimeout: cfg.Scraper.RequestTimeout(),
		Delay:          cfg.Scraper.Delay(),
	}, logger.Named("fetcher"))
	if err != nil {
		logger.Fatal("fetcher init failed", zap.Error(err))
	}
	scr, err := scraper.New(scraper.Config{
		BaseURL:  cfg.Scraper.BaseURL,
		MaxPages: cfg.Scraper.MaxPages,
	}, fetcher, scraper.TermSet(cfg.Scraper.RelevantTerms), clock, logger.Named("scraper"))
	if err != nil {
		logger.Fatal("scraper init failed", zap.Error(err))
	}

	bot, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeout(),
	}, logger.Named("telegram"))
	if err != nil {
		logger.Fatal("telegram init failed", zap.Error(err))
	}

	disp := dispatcher.New(dispatcher.Config{
		Interval:     cfg.Notify.Interval(),
		InitialDelay: cfg.Notify.InitialDelay(),
		Queries:      cfg.Scraper.QuerySpecs(),
	}, scr, st, bot, logger.Named("dispatcher"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("ops server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", zap.Error(err))
			stop()
		}
	}()

	go bot.Run(ctx, disp)

	disp.NotifyStartup(ctx)
	go func() {
		if err := disp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("dispatcher stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	disp.NotifyShutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// buildTables instantiates the configured worksheet provider for both
// logical tables.
func buildTables(ctx context.Context, cfg config.Config, logger *zap.Logger) (tabular.Worksheet, tabular.Worksheet, func(), error) {
	noop := func() {}
	switch cfg.Store.Provider {
	case "sheets":
		logger.Info("using google sheets store provider")
		jobsWS, err := sheetsTabular.NewWorksheet(ctx, sheetsTabular.Config{
			CredentialsFile: cfg.Store.Sheets.CredentialsFile,
			SpreadsheetID:   cfg.Store.Sheets.JobsSpreadsheetID,
		})
		if err != nil {
			return nil, nil, noop, fmt.Errorf("jobs worksheet: %w", err)
		}
		recipientsWS, err := sheetsTabular.NewWorksheet(ctx, sheetsTabular.Config{
			CredentialsFile: cfg.Store.Sheets.CredentialsFile,
			SpreadsheetID:   cfg.Store.Sheets.RecipientsSpreadsheetID,
		})
		if err != nil {
			return nil, nil, noop, fmt.Errorf("recipients worksheet: %w", err)
		}
		return jobsWS, recipientsWS, noop, nil
	case "postgres":
		logger.Info("using postgres store provider")
		pool, err := postgresTabular.Connect(ctx, cfg.Store.Postgres.DSN)
		if err != nil {
			return nil, nil, noop, err
		}
		jobsWS, err := postgresTabular.NewWorksheet(pool, cfg.Store.Postgres.JobsTable)
		if err != nil {
			pool.Close()
			return nil, nil, noop, err
		}
		recipientsWS, err := postgresTabular.NewWorksheet(pool, cfg.Store.Postgres.RecipientsTable)
		if err != nil {
			pool.Close()
			return nil, nil, noop, err
		}
		for _, ws := range []*postgresTabular.Worksheet{jobsWS, recipientsWS} {
			if err := ws.EnsureRelation(ctx); err != nil {
				pool.Close()
				return nil, nil, noop, err
			}
		}
		return jobsWS, recipientsWS, pool.Close, nil
	case "memory":
		logger.Info("using in-memory store provider, data will not survive restarts")
		return memoryTabular.NewWorksheet(), memoryTabular.NewWorksheet(), noop, nil
	default:
		return nil, nil, noop, fmt.Errorf("unknown store provider %q", cfg.Store.Provider)
	}
}
