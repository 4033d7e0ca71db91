package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cli"
	applog "expensetracker/internal/log"
	"expensetracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the mail worker")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	logger.Info("Starting mail worker", "queue", cfg.AMQPQueue)

	repo := cli.InitSQLite(ctx, logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// The worker delivers, so the report service gets no publisher.
	reports, err := cli.NewReportService(ctx, logger, cfg, repo, nil)
	if err != nil {
		logger.Error("Failed to initialize report service", applog.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewReportWorker(repo, reports)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeReportRequests(gctx, w.HandleReportRequest)
	})
	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				logStats(logger, "Mail worker stats", w.Stats())
			}
		}
	})

	err = g.Wait()
	logStats(logger, "Mail worker stopped", w.Stats())
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}
}

const statsInterval = 10 * time.Minute

func logStats(logger *applog.Logger, msg string, stats worker.Stats) {
	logger.Info(msg, "sent", stats.Sent, "skipped", stats.Skipped, "failed", stats.Failed)
}
