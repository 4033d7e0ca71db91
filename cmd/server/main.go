package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/amqp"
	"expensetracker/internal/auth"
	"expensetracker/internal/cache"
	"expensetracker/internal/cli"
	apphttp "expensetracker/internal/http"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
)

const (
	shutdownTimeout      = 30 * time.Second
	cacheSweepInterval   = time.Minute
	sessionPurgeInterval = time.Hour
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	repo := cli.InitSQLite(ctx, logger, cfg.SQLiteDBPath)
	defer repo.Close()

	authSvc := auth.NewService(repo, auth.Options{SessionTTL: cfg.SessionTTL})

	var publisher services.ReportPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		logger.Info("Report requests will be queued", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - reports are mailed inline")
	}

	reports, err := cli.NewReportService(ctx, logger, cfg, repo, publisher)
	if err != nil {
		logger.Error("Failed to initialize report service", applog.FieldError, err)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:                ":" + cfg.Port,
		LoginURL:            cfg.LoginURL,
		AccessDeniedURL:     cfg.AccessDeniedURL,
		SessionCookieSecure: cfg.SessionCookieSecure,
		RateLimitPerMinute:  cfg.RateLimitPerMinute,
	}, apphttp.Deps{
		Auth:     authSvc,
		Expenses: services.NewExpenseService(repo),
		Reports:  reports,
		DB:       repo,
		Logger:   logger.WithComponent(applog.ComponentHTTP),
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return cache.NewJanitor(cacheSweepInterval, authSvc.SessionCache()).Run(gctx)
	})
	g.Go(func() error {
		purgeSessions(gctx, logger, authSvc)
		return nil
	})

	logger.Info("Starting expense tracker", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// purgeSessions deletes expired sessions until ctx is done.
func purgeSessions(ctx context.Context, logger *applog.Logger, authSvc *auth.Service) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := authSvc.PurgeExpiredSessions(ctx)
			if err != nil {
				logger.Error("Session purge failed", applog.FieldError, err)
				continue
			}
			if n > 0 {
				logger.Info("Expired sessions purged", applog.FieldCount, n)
			}
		}
	}
}
