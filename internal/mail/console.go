package mail

import (
	"context"
	"fmt"
	"io"
	"sync"

	applog "expensetracker/internal/log"
)

// ConsoleSender writes rendered messages to w instead of delivering them.
// It is the default transport so local runs never send real email.
type ConsoleSender struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleSender(w io.Writer) *ConsoleSender {
	return &ConsoleSender{w: w}
}

func (s *ConsoleSender) Send(ctx context.Context, msg Message) error {
	raw, err := msg.Raw()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "%s\n%s\n", raw, "-------------------------------------------------------------------------------"); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentMail).InfoContext(ctx, "Email written to console",
		applog.FieldTransport, "console",
		"to", msg.To,
		"subject", msg.Subject,
		"attachments", len(msg.Attachments))
	return nil
}
