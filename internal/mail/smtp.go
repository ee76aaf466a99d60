// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

package mail

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	gomail "github.com/wneessen/go-mail"
)

// Delivery retry policy. Transient SMTP failures get a few exponential
// attempts before the failure surfaces to the caller.
const (
	retryBase  = 500 * time.Millisecond
	maxRetries = 3
)

// SMTPConfig holds connection settings for the outbound mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender implements Sender over an authenticated SMTP connection.
type SMTPSender struct {
	client *gomail.Client
	from   string
}

// NewSMTPSender creates a new SMTPSender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp from address is required")
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
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
		return nil, oops.Code("MAIL_CONFIG_INVALID").
			With("host", cfg.Host).
			Wrap(err)
	}

	return &SMTPSender{client: client, from: cfg.From}, nil
}

// Send delivers an HTML message, retrying transient failures with
// exponential backoff. The context bounds the whole delivery attempt.
func (s *SMTPSender) Send(ctx context.Context, toAddress, subject, htmlBody string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("operation", "set from address").
			Wrap(err)
	}
	if err := msg.To(toAddress); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("operation", "set to address").
			With("to", toAddress).
			Wrap(err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlBody)

	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if sendErr := s.client.DialAndSendWithContext(ctx, msg); sendErr != nil {
			return retry.RetryableError(sendErr)
		}
		return nil
	})
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("operation", "dial and send").
			With("to", toAddress).
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ Sender = (*SMTPSender)(nil)
