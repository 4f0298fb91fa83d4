// Package mail provides the notification transport abstraction and its
// SMTP implementation.
package mail

import (
	"context"
	"fmt"

	"github.com/taskforge/taskforge-api/internal/config"
	gomail "github.com/wneessen/go-mail"
)

// Mailer sends a notification message. A nil Mailer means notifications
// are disabled.
type Mailer interface {
	// Send delivers a message with the given subject and plain-text body.
	Send(ctx context.Context, subject, body string) error
}

// SMTPMailer delivers messages over SMTP using the configured
// credentials and a fixed sender/recipient pair.
type SMTPMailer struct {
	client *gomail.Client
	from   string
	to     string
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates a mailer from the mail configuration.
// Returns an error if the SMTP client cannot be constructed.
func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	return &SMTPMailer{
		client: client,
		from:   cfg.From,
		to:     cfg.To,
	}, nil
}

// Send implements Mailer.Send.
func (m *SMTPMailer) Send(ctx context.Context, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(m.to); err != nil {
		return fmt.Errorf("invalid to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}
