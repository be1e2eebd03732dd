package deadletter

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/muaviaUsmani/courier/internal/job"
	"github.com/muaviaUsmani/courier/internal/mailer"
)

// alertTemplate renders the admin notification for a dead-lettered message
var alertTemplate = template.Must(template.New("alert").Parse(`A message has exhausted its delivery attempts and was moved to the dead letter queue.

Message ID:   {{.Message.ID}}
Channel:      {{.Message.Channel}}
Destination:  {{.Message.Destination}}
Attempts:     {{.AttemptCount}}
Last error:   {{.LastError}}
First tried:  {{.FirstAttemptedAt.Format "2006-01-02 15:04:05 MST"}}
Dead-lettered: {{.MovedToDeadLetterAt.Format "2006-01-02 15:04:05 MST"}}

To retry delivery, requeue job {{.ID}} from the dead letter queue:

    requeue {{.ID}}
`))

// EmailAlerter sends dead letter notifications to a fixed admin list
type EmailAlerter struct {
	sender     mailer.Sender
	recipients []string
}

// NewEmailAlerter creates an alerter over the given sender and recipients
func NewEmailAlerter(sender mailer.Sender, recipients []string) *EmailAlerter {
	return &EmailAlerter{
		sender:     sender,
		recipients: recipients,
	}
}

// Alert emails each configured recipient. The first send error is returned;
// the caller only logs it.
func (a *EmailAlerter) Alert(ctx context.Context, rec *job.Record) error {
	if len(a.recipients) == 0 {
		return nil
	}

	var body bytes.Buffer
	if err := alertTemplate.Execute(&body, rec); err != nil {
		return fmt.Errorf("failed to render alert: %w", err)
	}

	m := &mailer.Mail{
		To:      a.recipients,
		Subject: fmt.Sprintf("Message delivery failed: %s", rec.Message.ID),
		Text:    body.String(),
	}

	if err := a.sender.Send(ctx, m); err != nil {
		return fmt.Errorf("failed to send dead letter alert: %w", err)
	}
	return nil
}

var _ Alerter = (*EmailAlerter)(nil)
