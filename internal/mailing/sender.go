package mailing

import (
	"context"
	"fmt"
	"time"

	"github.com/reachify/beacon/internal/config"
	"github.com/reachify/beacon/internal/pkg/retry"
)

// Envelope is a fully composed message ready for dispatch.
type Envelope struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Attachment is a file carried by an envelope.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SendResult reports a successful dispatch.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Mailer delivers composed envelopes. Implementations are injected into the
// service so transports can be swapped without touching callers.
type Mailer interface {
	Send(ctx context.Context, env *Envelope) (*SendResult, error)
}

// NewMailer builds the mailer selected by cfg.Mailer.Provider, wrapped in a
// bounded retry when max_retries is set. Retrying is off by default: a
// retried send can deliver the same email twice if the provider accepted the
// first attempt but the response was lost.
func NewMailer(cfg config.MailerConfig) (Mailer, error) {
	var m Mailer
	var err error

	switch cfg.Provider {
	case "ses":
		m, err = NewSESMailer(cfg)
	case "smtp":
		m, err = NewSMTPMailer(cfg)
	default:
		return nil, fmt.Errorf("mailing: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.MaxRetries > 0 {
		m = &retryingMailer{
			inner: m,
			cfg: retry.Config{
				MaxRetries: cfg.MaxRetries,
				BaseDelay:  time.Second,
				MaxDelay:   30 * time.Second,
			},
		}
	}
	return m, nil
}

// Disabled returns a Mailer whose Send always fails with the given cause.
// The server stays bootable without a configured transport: tracking
// endpoints keep working and send attempts surface the cause instead.
func Disabled(cause error) Mailer {
	return disabledMailer{cause: cause}
}

type disabledMailer struct {
	cause error
}

func (m disabledMailer) Send(ctx context.Context, env *Envelope) (*SendResult, error) {
	return nil, fmt.Errorf("mailer disabled: %w", m.cause)
}

// retryingMailer retries transient dispatch failures with backoff.
type retryingMailer struct {
	inner Mailer
	cfg   retry.Config
}

func (m *retryingMailer) Send(ctx context.Context, env *Envelope) (*SendResult, error) {
	var res *SendResult
	err := retry.Do(ctx, m.cfg, func(ctx context.Context) error {
		r, err := m.inner.Send(ctx, env)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
