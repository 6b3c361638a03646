package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP delivery settings.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

// SMTPMailer delivers messages over SMTP.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer validates cfg and returns a mailer.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp: host required")
	}
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("smtp: from address required")
	}
	return &SMTPMailer{cfg: cfg}, nil
}

// Deliver sends one message and reports the failure, if any.
func (m *SMTPMailer) Deliver(ctx context.Context, msg Message) error {
	em := mail.NewMsg()
	var err error
	if m.cfg.FromName != "" {
		err = em.FromFormat(m.cfg.FromName, m.cfg.FromAddress)
	} else {
		err = em.From(m.cfg.FromAddress)
	}
	if err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := em.To(msg.To); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := em.ReplyTo(msg.ReplyTo); err != nil {
			return fmt.Errorf("set reply-to: %w", err)
		}
	}
	em.Subject(msg.Subject)
	em.SetBodyString(mail.TypeTextHTML, msg.HTML)

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, em); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
