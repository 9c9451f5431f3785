// Package mailer delivers transactional email through the Resend API.
package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
)

type Mailer struct {
	client *resend.Client
	from   string
}

func New(apiKey, from string) *Mailer {
	return &Mailer{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// Send delivers a single HTML email. One attempt, no retries; callers decide
// whether a failure is fatal for their operation.
func (m *Mailer) Send(ctx context.Context, to, subject, html string) error {
	_, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("mailer: send to %s: %w", to, err)
	}
	return nil
}
