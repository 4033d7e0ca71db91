package report

import (
	"fmt"

	"expensetracker/internal/core"
	"expensetracker/internal/mail"
)

const (
	EmailSubject   = "Check Your Expense Report"
	AttachmentName = "Expense_Report.pdf"
	ContentTypePDF = "application/pdf"
)

// Mailer composes report emails from a fixed sender address.
type Mailer struct {
	From string
}

// Report is a composed email together with the PDF it carries.
type Report struct {
	Message mail.Message
	PDF     []byte
}

// Build renders the PDF and both email bodies for user's expenses.
func (m Mailer) Build(user core.User, expenses []core.Expense) (Report, error) {
	if len(expenses) == 0 {
		return Report{}, core.ErrNothingToReport
	}
	if user.Email == "" {
		return Report{}, fmt.Errorf("user %d has no email address", user.ID)
	}

	pdf, err := RenderPDF(expenses)
	if err != nil {
		return Report{}, err
	}
	body, err := RenderEmailHTML(EmailData{
		User:     user,
		Expenses: expenses,
		Total:    core.Summarize(expenses).Total,
	})
	if err != nil {
		return Report{}, err
	}

	return Report{
		Message: mail.Message{
			From:    m.From,
			To:      []string{user.Email},
			Subject: EmailSubject,
			Text:    StripTags(body),
			HTML:    body,
			Attachments: []mail.Attachment{{
				Filename:    AttachmentName,
				ContentType: ContentTypePDF,
				Data:        pdf,
			}},
		},
		PDF: pdf,
	}, nil
}
