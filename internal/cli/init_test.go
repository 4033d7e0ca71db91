package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/config"
	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		level   string
		debugOn bool
		infoOn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"error", false, false},
		{"bogus", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := SetupLogger(tt.level)
			ctx := context.Background()
			assert.Equal(t, tt.debugOn, logger.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tt.infoOn, logger.Enabled(ctx, slog.LevelInfo))
			assert.Equal(t, tt.infoOn, slog.Default().Enabled(ctx, slog.LevelInfo))
		})
	}
}

func TestNewReportServiceConsole(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	cfg := &config.Config{MailTransport: config.MailConsole, MailFrom: "reports@example.com"}
	svc, err := NewReportService(context.Background(), SetupLogger("error"), cfg, repo, nil)
	require.NoError(t, err)

	_, err = svc.SendReport(context.Background(), core.User{ID: 1, Email: "a@example.com"}, "req_1")
	assert.ErrorIs(t, err, core.ErrNothingToReport)
}

func TestNewReportServiceUnknownTransport(t *testing.T) {
	cfg := &config.Config{MailTransport: "pigeon", MailFrom: "reports@example.com"}
	_, err := NewReportService(context.Background(), SetupLogger("error"), cfg, nil, nil)
	assert.ErrorContains(t, err, "unsupported mail transport")
}
