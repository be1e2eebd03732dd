package channel

import (
	"context"
	"fmt"

	"github.com/muaviaUsmani/courier/internal/mailer"
	"github.com/muaviaUsmani/courier/internal/message"
)

// defaultSubject is used when the message data carries no subject
const defaultSubject = "Message Notification"

// EmailHandler delivers messages over SMTP. The destination is the recipient
// address; from, fromName, subject, text and html come from the message data.
type EmailHandler struct {
	sender mailer.Sender
}

// NewEmailHandler creates an email handler backed by the given sender
func NewEmailHandler(sender mailer.Sender) *EmailHandler {
	return &EmailHandler{sender: sender}
}

// Deliver sends the message as an email to the destination address
func (h *EmailHandler) Deliver(ctx context.Context, msg *message.Message) error {
	if h.sender == nil {
		return fmt.Errorf("email delivery to %s failed: no SMTP sender configured", msg.Destination)
	}

	m := &mailer.Mail{
		From:     stringField(msg.Data, "from"),
		FromName: stringField(msg.Data, "fromName"),
		To:       []string{msg.Destination},
		Subject:  stringField(msg.Data, "subject"),
		Text:     stringField(msg.Data, "text"),
		HTML:     stringField(msg.Data, "html"),
	}
	if m.Subject == "" {
		m.Subject = defaultSubject
	}

	if err := h.sender.Send(ctx, m); err != nil {
		return fmt.Errorf("email delivery to %s failed: %w", msg.Destination, err)
	}
	return nil
}

func stringField(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

var _ Handler = (*EmailHandler)(nil)
