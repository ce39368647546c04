package mailing

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/jordan-wright/email"

	"github.com/reachify/beacon/internal/config"
	"github.com/reachify/beacon/internal/pkg/logger"
)

// SESMailer delivers email through AWS SES using the SDK v2. Envelopes
// without attachments go out as simple HTML content; attachments require a
// raw MIME message, which is assembled with the email package.
type SESMailer struct {
	client  *sesv2.Client
	from    string
	replyTo string
	timeout time.Duration
}

// NewSESMailer creates an SES mailer. Static credentials are used when
// configured; otherwise the default chain (IAM role on ECS) applies.
func NewSESMailer(cfg config.MailerConfig) (*SESMailer, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SES.Region),
	}
	if cfg.SES.AccessKey != "" && cfg.SES.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.SES.AccessKey, cfg.SES.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing AWS config: %w", err)
	}

	return &SESMailer{
		client:  sesv2.NewFromConfig(awsCfg),
		from:    cfg.FromAddress(),
		replyTo: cfg.ReplyTo,
		timeout: cfg.Timeout(),
	}, nil
}

// Send delivers a single envelope through SES.
func (s *SESMailer) Send(ctx context.Context, env *Envelope) (*SendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{env.To}},
	}
	if s.replyTo != "" {
		input.ReplyToAddresses = []string{s.replyTo}
	}

	if len(env.Attachments) == 0 {
		input.Content = &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(env.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(env.HTML), Charset: aws.String("UTF-8")},
				},
			},
		}
	} else {
		raw, err := buildRawMessage(s.from, s.replyTo, env)
		if err != nil {
			return nil, fmt.Errorf("building MIME message: %w", err)
		}
		input.Content = &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		}
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("SES send failed: %w", err)
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}
	logger.Info("SES send accepted", "to", env.To, "message_id", messageID)

	return &SendResult{
		MessageID: messageID,
		SentAt:    time.Now(),
	}, nil
}

// buildRawMessage assembles a multipart MIME message for envelopes carrying
// attachments.
func buildRawMessage(from, replyTo string, env *Envelope) ([]byte, error) {
	e := email.NewEmail()
	e.From = from
	e.To = []string{env.To}
	e.Subject = env.Subject
	e.HTML = []byte(env.HTML)
	if replyTo != "" {
		e.ReplyTo = []string{replyTo}
	}

	for _, att := range env.Attachments {
		if _, err := e.Attach(bytes.NewReader(att.Data), att.Filename, att.ContentType); err != nil {
			return nil, err
		}
	}
	return e.Bytes()
}
