package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	applog "expensetracker/internal/log"
)

// SMTPConfig configures the relay. Credentials are optional.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPSender delivers through an SMTP relay with mandatory STARTTLS.
type SMTPSender struct {
	client *gomail.Client
	host   string
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password))
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client for %s: %w", cfg.Host, err)
	}
	return &SMTPSender{client: client, host: cfg.Host}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := msg.build()
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send via %s: %w", s.host, err)
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentMail).InfoContext(ctx, "Email sent",
		applog.FieldTransport, "smtp",
		"to", msg.To,
		"subject", msg.Subject)
	return nil
}
