// Package mailer sends outbound email over SMTP. It backs the email delivery
// channel and the dead letter alert notifications.
package mailer

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Mail is a single outbound email
type Mail struct {
	From     string
	FromName string
	To       []string
	Subject  string
	Text     string
	HTML     string
}

// Sender delivers a mail to its recipients
type Sender interface {
	Send(ctx context.Context, m *Mail) error
}

// SMTPMailer sends mail through a single SMTP endpoint
type SMTPMailer struct {
	addr     string
	username string
	password string
	from     string // Default from-address when the mail carries none
}

// NewSMTPMailer creates a mailer for the given host:port endpoint.
// Username and password are optional; empty credentials skip AUTH.
func NewSMTPMailer(addr, username, password, defaultFrom string) *SMTPMailer {
	return &SMTPMailer{
		addr:     addr,
		username: username,
		password: password,
		from:     defaultFrom,
	}
}

// Send delivers the mail. Any transport-level failure is returned as an error;
// the caller decides whether the failure is retried.
func (s *SMTPMailer) Send(ctx context.Context, m *Mail) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mail send aborted: %w", err)
	}
	if len(m.To) == 0 {
		return fmt.Errorf("mail has no recipients")
	}

	from := m.From
	if from == "" {
		from = s.from
	}

	var auth sasl.Client
	if s.username != "" {
		auth = sasl.NewPlainClient("", s.username, s.password)
	}

	body := s.render(m, from)

	if err := smtp.SendMail(s.addr, auth, from, m.To, strings.NewReader(body)); err != nil {
		return fmt.Errorf("smtp send to %s failed: %w", strings.Join(m.To, ","), err)
	}
	return nil
}

// render builds the RFC 5322 message. HTML content wins over text when both
// are present; multipart composition is out of scope for delivery receipts.
func (s *SMTPMailer) render(m *Mail, from string) string {
	var b strings.Builder

	sender := from
	if m.FromName != "" {
		sender = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", m.FromName), from)
	}

	fmt.Fprintf(&b, "From: %s\r\n", sender)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")

	if m.HTML != "" {
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		b.WriteString(m.HTML)
	} else {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(m.Text)
	}

	b.WriteString("\r\n")
	return b.String()
}

var _ Sender = (*SMTPMailer)(nil)
