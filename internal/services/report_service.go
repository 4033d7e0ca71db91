package services

import (
	"context"
	"fmt"
	"log/slog"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/mail"
	"expensetracker/internal/report"
)

// ReportLister loads the expenses a report covers.
type ReportLister interface {
	ListActiveExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error)
}

// ReportPublisher queues a report request for the mail worker.
type ReportPublisher interface {
	PublishReportRequest(ctx context.Context, userID int64, requestID string) error
}

// Archiver keeps a copy of a sent report.
type Archiver interface {
	Store(ctx context.Context, userID int64, pdf []byte) (string, error)
}

// ReportDispatch tells the caller how a report request was handled.
type ReportDispatch int

const (
	ReportSent ReportDispatch = iota
	ReportQueued
)

type ReportServiceConfig struct {
	Expenses ReportLister
	Mailer   report.Mailer
	Sender   mail.Sender
	// Publisher is optional. When set, reports are queued instead of sent inline.
	Publisher ReportPublisher
	// Archive is optional.
	Archive Archiver
}

// ReportService emails users a PDF report of their active expenses.
type ReportService struct {
	expenses  ReportLister
	mailer    report.Mailer
	sender    mail.Sender
	publisher ReportPublisher
	archive   Archiver
}

func NewReportService(cfg ReportServiceConfig) *ReportService {
	return &ReportService{
		expenses:  cfg.Expenses,
		mailer:    cfg.Mailer,
		sender:    cfg.Sender,
		publisher: cfg.Publisher,
		archive:   cfg.Archive,
	}
}

// SendReport checks that user has something to report, then either queues
// the request or delivers it inline. Transport errors are returned as is.
func (s *ReportService) SendReport(ctx context.Context, user core.User, requestID string) (ReportDispatch, error) {
	expenses, err := s.userExpenses(ctx, user)
	if err != nil {
		return 0, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishReportRequest(ctx, user.ID, requestID); err != nil {
			return 0, fmt.Errorf("queue report: %w", err)
		}
		return ReportQueued, nil
	}

	if err := s.deliver(ctx, user, expenses); err != nil {
		return 0, err
	}
	return ReportSent, nil
}

// Deliver builds and sends the report for user's current active expenses.
// Returns core.ErrNothingToReport when there are none.
func (s *ReportService) Deliver(ctx context.Context, user core.User) error {
	expenses, err := s.userExpenses(ctx, user)
	if err != nil {
		return err
	}
	return s.deliver(ctx, user, expenses)
}

func (s *ReportService) userExpenses(ctx context.Context, user core.User) ([]core.Expense, error) {
	expenses, err := s.expenses.ListActiveExpenses(ctx, core.ExpenseFilter{}.ForOwner(user.ID))
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if len(expenses) == 0 {
		return nil, core.ErrNothingToReport
	}
	return expenses, nil
}

func (s *ReportService) deliver(ctx context.Context, user core.User, expenses []core.Expense) error {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentReport)

	r, err := s.mailer.Build(user, expenses)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	if err := s.sender.Send(ctx, r.Message); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	logger.LogFields(ctx, slog.LevelInfo, "Report emailed", applog.NewFields().
		WithOperation(applog.OpSend).
		WithUser(user.ID, user.Username).
		With(applog.FieldCount, len(expenses)))

	// the email is already out, so an archive failure is only logged
	if s.archive != nil {
		if _, err := s.archive.Store(ctx, user.ID, r.PDF); err != nil {
			logger.LogFields(ctx, slog.LevelWarn, "Report archive failed", applog.NewFields().
				WithUser(user.ID, user.Username).
				WithError(err))
		}
	}
	return nil
}
