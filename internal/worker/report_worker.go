// Package worker processes queued report requests.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (core.User, error)
}

// ReportDeliverer builds and sends a report for the user's current expenses.
type ReportDeliverer interface {
	Deliver(ctx context.Context, user core.User) error
}

// Stats counts handled requests since the worker started.
type Stats struct {
	Sent    int64
	Skipped int64
	Failed  int64
}

// ReportWorker emails reports requested through the queue.
type ReportWorker struct {
	users   UserLookup
	reports ReportDeliverer

	sent    atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

func NewReportWorker(users UserLookup, reports ReportDeliverer) *ReportWorker {
	return &ReportWorker{users: users, reports: reports}
}

// HandleReportRequest delivers one report. Requests that can never succeed
// (unknown or inactive user, nothing to report) are logged and acknowledged
// by returning nil. Any other error is returned so the consumer can retry.
func (w *ReportWorker) HandleReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentWorker)
	start := time.Now()

	user, err := w.users.GetUserByID(ctx, msg.UserID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		w.skipped.Add(1)
		logger.WarnContext(ctx, "Report requested for unknown user", applog.FieldUserID, msg.UserID)
		return nil
	case err != nil:
		w.failed.Add(1)
		return fmt.Errorf("load user %d: %w", msg.UserID, err)
	case !user.IsActive:
		w.skipped.Add(1)
		logger.WarnContext(ctx, "Report requested for inactive user", applog.FieldUserID, msg.UserID)
		return nil
	}

	err = w.reports.Deliver(ctx, user)
	switch {
	case errors.Is(err, core.ErrNothingToReport):
		w.skipped.Add(1)
		logger.InfoContext(ctx, "No active expenses left to report", applog.FieldUserID, user.ID)
		return nil
	case err != nil:
		w.failed.Add(1)
		return err
	}

	w.sent.Add(1)
	logger.LogFields(ctx, slog.LevelInfo, "Report request completed", applog.NewFields().
		WithUser(user.ID, user.Username).
		With("queued_for_ms", time.Since(msg.RequestedAt).Milliseconds()).
		With(applog.FieldDuration, time.Since(start).Milliseconds()))
	return nil
}

func (w *ReportWorker) Stats() Stats {
	return Stats{
		Sent:    w.sent.Load(),
		Skipped: w.skipped.Load(),
		Failed:  w.failed.Load(),
	}
}
