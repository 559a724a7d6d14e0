package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"github.com/jordan-wright/email"

	"contact-guard-go/internal/config"
)

// SMTPMailer delivers email through a plain SMTP relay.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

// NewSMTPMailer creates an SMTP mailer.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers the message, bounded by the context deadline. The
// underlying SMTP client has no context support, so the dial-and-send
// runs in a goroutine raced against ctx.
func (m *SMTPMailer) Send(ctx context.Context, msg Email) error {
	e := email.NewEmail()
	e.From = fmt.Sprintf("%s <%s>", SanitizeHeaderValue(msg.FromName), msg.From)
	e.To = msg.To
	if msg.ReplyTo != "" {
		e.ReplyTo = []string{msg.ReplyTo}
	}
	e.Subject = SanitizeHeaderValue(msg.Subject)
	e.HTML = []byte(msg.HTML)

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)

	done := make(chan error, 1)
	go func() {
		if m.cfg.SSL {
			done <- e.SendWithTLS(addr, auth, &tls.Config{ServerName: m.cfg.Host})
		} else {
			done <- e.Send(addr, auth)
		}
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("SMTP send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("SMTP send aborted: %w", ctx.Err())
	}
}
