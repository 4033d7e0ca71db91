// Package cli holds the start-up steps shared by the server, the mail worker
// and the admin tool.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"expensetracker/internal/archive"
	"expensetracker/internal/config"
	applog "expensetracker/internal/log"
	"expensetracker/internal/mail"
	"expensetracker/internal/report"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"
)

// SetupLogger installs a text logger at level as the slog default. An
// unknown level falls back to info; Validate reports it later.
func SetupLogger(level string) *applog.Logger {
	cfg := applog.DefaultConfig()
	if lvl, err := config.ParseLogLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and exits
// the process when it is invalid.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the database, applies migrations and provisions the
// built-in roles. It exits the process on failure.
func InitSQLite(ctx context.Context, logger *applog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	if err := repo.ProvisionRoles(ctx); err != nil {
		logger.Error("Failed to provision roles", applog.FieldError, err)
		_ = repo.Close()
		os.Exit(1)
	}
	return repo
}

// NewReportService builds the report pipeline from cfg. publisher may be nil,
// in which case reports are mailed inline.
func NewReportService(ctx context.Context, logger *applog.Logger, cfg *config.Config, repo *storage.SQLiteRepository, publisher services.ReportPublisher) (*services.ReportService, error) {
	sender, err := mail.NewSender(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Mail transport ready", applog.FieldTransport, cfg.MailTransport)

	svcCfg := services.ReportServiceConfig{
		Expenses:  repo,
		Mailer:    report.Mailer{From: cfg.MailFrom},
		Sender:    sender,
		Publisher: publisher,
	}
	if cfg.ReportArchiveBucket != "" {
		arch, err := archive.NewFromConfig(ctx, cfg.AWSRegion, cfg.ReportArchiveBucket)
		if err != nil {
			return nil, err
		}
		svcCfg.Archive = arch
		logger.Info("Report archive enabled", "bucket", cfg.ReportArchiveBucket)
	}
	return services.NewReportService(svcCfg), nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
