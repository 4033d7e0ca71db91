package mail

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"expensetracker/internal/config"
)

// NewSender picks the transport named by cfg.MailTransport.
func NewSender(ctx context.Context, cfg *config.Config) (Sender, error) {
	switch cfg.MailTransport {
	case config.MailConsole, "":
		return NewConsoleSender(os.Stdout), nil

	case config.MailSMTP:
		return NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		})

	case config.MailSES:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewSESSender(sesv2.NewFromConfig(awsCfg), cfg.SESConfigurationSet), nil

	case config.MailGmail:
		api, err := NewGmailAPI(ctx, GmailCredentials{
			ClientFile: cfg.GoogleOAuthClientFile,
			ClientJSON: cfg.GoogleOAuthClientJSON,
			TokenFile:  cfg.GoogleOAuthTokenFile,
			TokenJSON:  cfg.GoogleOAuthTokenJSON,
		})
		if err != nil {
			return nil, err
		}
		return NewGmailSender(api), nil

	default:
		return nil, fmt.Errorf("unsupported mail transport: %s", cfg.MailTransport)
	}
}
