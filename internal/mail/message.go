// Package mail builds MIME messages and delivers them through a configurable
// transport.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

// Attachment is a file carried by a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a transport-independent email.
type Message struct {
	From        string
	To          []string
	Subject     string
	Text        string
	HTML        string // optional alternative body
	Attachments []Attachment
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Validate checks the fields every transport relies on.
func (m Message) Validate() error {
	var errs []error
	if m.From == "" {
		errs = append(errs, errors.New("missing sender"))
	}
	if len(m.To) == 0 {
		errs = append(errs, errors.New("missing recipient"))
	}
	for _, to := range m.To {
		if to == "" {
			errs = append(errs, errors.New("empty recipient address"))
		}
	}
	if m.Text == "" && m.HTML == "" {
		errs = append(errs, errors.New("empty body"))
	}
	return errors.Join(errs...)
}

// build converts m into a go-mail message.
func (m Message) build() (*gomail.Msg, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return nil, fmt.Errorf("set from %q: %w", m.From, err)
	}
	if err := msg.To(m.To...); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetDate()
	msg.SetMessageID()

	switch {
	case m.Text != "" && m.HTML != "":
		msg.SetBodyString(gomail.TypeTextPlain, m.Text)
		msg.AddAlternativeString(gomail.TypeTextHTML, m.HTML)
	case m.Text != "":
		msg.SetBodyString(gomail.TypeTextPlain, m.Text)
	default:
		msg.SetBodyString(gomail.TypeTextHTML, m.HTML)
	}

	for _, a := range m.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = string(gomail.TypeAppOctetStream)
		}
		err := msg.AttachReader(a.Filename, bytes.NewReader(a.Data),
			gomail.WithFileContentType(gomail.ContentType(ct)))
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Filename, err)
		}
	}
	return msg, nil
}

// Raw renders m as an RFC 5322 message.
func (m Message) Raw() ([]byte, error) {
	msg, err := m.build()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render message: %w", err)
	}
	return buf.Bytes(), nil
}
