package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	applog "expensetracker/internal/log"
)

// GmailAPI posts a base64url encoded raw message for the authorised user.
type GmailAPI interface {
	SendRaw(ctx context.Context, raw string) (string, error)
}

// GmailSender delivers through the Gmail API as the OAuth token's owner.
type GmailSender struct {
	api GmailAPI
}

func NewGmailSender(api GmailAPI) *GmailSender {
	return &GmailSender{api: api}
}

func (s *GmailSender) Send(ctx context.Context, msg Message) error {
	raw, err := msg.Raw()
	if err != nil {
		return err
	}
	id, err := s.api.SendRaw(ctx, base64.URLEncoding.EncodeToString(raw))
	if err != nil {
		return fmt.Errorf("gmail send: %w", err)
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentMail).InfoContext(ctx, "Email sent",
		applog.FieldTransport, "gmail",
		"to", msg.To,
		"message_id", id)
	return nil
}

// GmailCredentials locates the OAuth client and token. Inline JSON wins over
// files.
type GmailCredentials struct {
	ClientFile string
	ClientJSON string
	TokenFile  string
	TokenJSON  string
}

type gmailService struct {
	svc *gmail.Service
}

func (g gmailService) SendRaw(ctx context.Context, raw string) (string, error) {
	sent, err := g.svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return sent.Id, nil
}

// NewGmailAPI builds an authorised Gmail client from an installed-app OAuth
// client and a token obtained with cmd/oauth-init.
func NewGmailAPI(ctx context.Context, creds GmailCredentials) (GmailAPI, error) {
	clientJSON, err := readInlineOrFile(creds.ClientJSON, creds.ClientFile)
	if err != nil {
		return nil, fmt.Errorf("oauth client: %w", err)
	}
	tokenJSON, err := readInlineOrFile(creds.TokenJSON, creds.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	cfg, err := google.ConfigFromJSON(clientJSON, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, &tok)))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return gmailService{svc: svc}, nil
}

func readInlineOrFile(inline, path string) ([]byte, error) {
	switch {
	case inline != "":
		return []byte(inline), nil
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return b, nil
	default:
		return nil, errors.New("neither inline JSON nor file provided")
	}
}
