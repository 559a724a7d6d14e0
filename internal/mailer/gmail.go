package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailMailer delivers email through the Gmail API using a refresh
// token. There is no retry here: a failed send is a failed submission.
type GmailMailer struct {
	service   *gmail.Service
	userEmail string
}

// GmailOptions holds the OAuth2 credentials for the Gmail transport.
type GmailOptions struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	UserEmail    string
}

// NewGmailMailer creates a Gmail API mailer.
func NewGmailMailer(opts GmailOptions) (*GmailMailer, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		RefreshToken: opts.RefreshToken,
	}
	tokenSource := oauth2Config.TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &GmailMailer{service: service, userEmail: opts.UserEmail}, nil
}

// Send builds a raw MIME message and submits it once via the API.
func (m *GmailMailer) Send(ctx context.Context, msg Email) error {
	raw := buildRawMessage(msg)
	encoded := base64.URLEncoding.EncodeToString([]byte(raw))

	message := &gmail.Message{Raw: encoded}
	if _, err := m.service.Users.Messages.Send(m.userEmail, message).Context(ctx).Do(); err != nil {
		return fmt.Errorf("Gmail send failed: %w", err)
	}
	return nil
}

func buildRawMessage(msg Email) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("From: %s <%s>\r\n", SanitizeHeaderValue(msg.FromName), msg.From))
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	if msg.ReplyTo != "" {
		b.WriteString(fmt.Sprintf("Reply-To: %s\r\n", msg.ReplyTo))
	}
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", SanitizeHeaderValue(msg.Subject)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)

	return b.String()
}
