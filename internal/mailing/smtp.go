package mailing

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/google/uuid"
	"github.com/jordan-wright/email"

	"github.com/reachify/beacon/internal/config"
	"github.com/reachify/beacon/internal/pkg/logger"
)

// SMTPMailer delivers email through a plain SMTP relay.
type SMTPMailer struct {
	addr    string
	auth    smtp.Auth
	from    string
	replyTo string
	timeout time.Duration
}

// NewSMTPMailer creates an SMTP mailer.
func NewSMTPMailer(cfg config.MailerConfig) (*SMTPMailer, error) {
	if cfg.SMTP.Host == "" {
		return nil, fmt.Errorf("mailing: smtp host not configured")
	}

	var auth smtp.Auth
	if cfg.SMTP.Username != "" {
		auth = smtp.PlainAuth("", cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Host)
	}

	return &SMTPMailer{
		addr:    cfg.SMTP.Addr(),
		auth:    auth,
		from:    cfg.FromAddress(),
		replyTo: cfg.ReplyTo,
		timeout: cfg.Timeout(),
	}, nil
}

// Send delivers a single envelope through the relay. SMTP returns no message
// identifier, so one is generated for the caller.
func (s *SMTPMailer) Send(ctx context.Context, env *Envelope) (*SendResult, error) {
	e := email.NewEmail()
	e.From = s.from
	e.To = []string{env.To}
	e.Subject = env.Subject
	e.HTML = []byte(env.HTML)
	if s.replyTo != "" {
		e.ReplyTo = []string{s.replyTo}
	}

	for _, att := range env.Attachments {
		if _, err := e.Attach(bytes.NewReader(att.Data), att.Filename, att.ContentType); err != nil {
			return nil, fmt.Errorf("attaching %s: %w", att.Filename, err)
		}
	}

	// net/smtp has no context support; run the dial in a goroutine so the
	// caller's deadline still applies.
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Send(s.addr, s.auth)
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("SMTP send failed: %w", err)
		}
	case <-timer.C:
		return nil, fmt.Errorf("SMTP send to %s timed out after %s", s.addr, s.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	messageID := uuid.New().String()
	logger.Info("SMTP send accepted", "to", env.To, "message_id", messageID)

	return &SendResult{
		MessageID: messageID,
		SentAt:    time.Now(),
	}, nil
}
