package email

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"leadflow/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender delivers lead emails over SMTP via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender returns nil when email is disabled.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	if !cfg.GetEmailEnabled() {
		return nil
	}
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

// Send delivers a plain-text body with an HTML alternative and returns the
// generated Message-ID, used as the provider message id. from overrides the
// configured sender address when set.
func (s *SMTPSender) Send(ctx context.Context, from, to, subject, body string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("email sender not configured")
	}

	msg, err := s.buildMessage(from, to, subject, body)
	if err != nil {
		return "", err
	}

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return msg.GetMessageID(), nil
}

func (s *SMTPSender) buildMessage(from, to, subject, body string) (*gomail.Msg, error) {
	fromEmail := s.fromEmail
	if strings.TrimSpace(from) != "" {
		fromEmail = strings.TrimSpace(from)
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetMessageID()

	html, err := renderMessageHTML(subject, body)
	if err != nil {
		return nil, err
	}
	msg.SetBodyString(gomail.TypeTextPlain, body)
	msg.AddAlternativeString(gomail.TypeTextHTML, html)
	return msg, nil
}
