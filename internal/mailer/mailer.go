package mailer

import (
	"context"
	"html"
	"strings"

	"contact-guard-go/internal/config"
)

// Email is one outbound HTML email.
type Email struct {
	FromName string
	From     string
	To       []string
	ReplyTo  string
	Subject  string
	HTML     string
}

// Mailer delivers a single email. Implementations must respect the
// context deadline; a hung relay must not hang the submission.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// DefaultSubject is used for the owner notification when the submitter
// left the subject blank.
const DefaultSubject = "Contact form message"

// AckSubject is the fixed subject of the acknowledgment email.
const AckSubject = "Thank you for your message"

// Content builds the two contact-form emails. All dynamic values are
// HTML-escaped before they reach a body, and header values are
// stripped of CR/LF to block header injection.
type Content struct {
	cfg config.MailConfig
}

// NewContent creates a content builder for the configured identities.
func NewContent(cfg config.MailConfig) *Content {
	return &Content{cfg: cfg}
}

// Acknowledgment is the email sent back to the submitter.
func (c *Content) Acknowledgment(firstName, subject, toEmail string) Email {
	safeFirst := html.EscapeString(firstName)
	safeSubject := html.EscapeString(subjectOrDefault(subject))

	var b strings.Builder
	b.WriteString("Dear " + safeFirst + ",<br><br>")
	b.WriteString("Thank you for reaching out to me. I have received your message regarding ")
	b.WriteString("&quot;" + safeSubject + "&quot; and I will get back to you as soon as possible.")
	b.WriteString("<br><br>Best regards,<br>")
	b.WriteString(`<a href="` + c.cfg.SiteURL + `" target="_blank" rel="noopener noreferrer">`)
	b.WriteString(html.EscapeString(c.cfg.Signature))
	b.WriteString("</a>")

	return Email{
		FromName: c.cfg.FromName,
		From:     c.cfg.FromEmail,
		To:       []string{SanitizeHeaderValue(toEmail)},
		ReplyTo:  c.cfg.FromEmail,
		Subject:  AckSubject,
		HTML:     b.String(),
	}
}

// OwnerNotification is the email sent to the site owner, with Reply-To
// pointing back at the submitter.
func (c *Content) OwnerNotification(fullName, fromEmail, subject, message string) Email {
	safeName := html.EscapeString(fullName)
	safeSubject := html.EscapeString(subjectOrDefault(subject))
	safeEmail := html.EscapeString(fromEmail)
	safeMessage := strings.ReplaceAll(html.EscapeString(message), "\n", "<br>")

	var b strings.Builder
	b.WriteString("<p>Hello,</p>")
	b.WriteString("<p>" + safeName + " has sent a message with " + safeSubject)
	b.WriteString(" as the <strong>subject</strong> from <strong>email</strong>: " + safeEmail)
	b.WriteString(", and a <strong>message</strong> that reads:</p>")
	b.WriteString("<p>" + safeMessage + "</p>")

	return Email{
		FromName: c.cfg.FromName,
		From:     c.cfg.FromEmail,
		To:       []string{c.cfg.ToEmail},
		ReplyTo:  SanitizeHeaderValue(fromEmail),
		Subject:  subjectOrDefault(subject),
		HTML:     b.String(),
	}
}

func subjectOrDefault(subject string) string {
	if strings.TrimSpace(subject) == "" {
		return DefaultSubject
	}
	return subject
}

// SanitizeHeaderValue strips CR/LF from a value destined for an email
// header.
func SanitizeHeaderValue(value string) string {
	value = strings.ReplaceAll(value, "\r", "")
	value = strings.ReplaceAll(value, "\n", "")
	return strings.TrimSpace(value)
}
