// Package email delivers transactional mail for commission and lead events.
package email

import (
	"context"

	"roofcrm_backend/platform/config"
)

type Sender interface {
	SendCommissionApprovedEmail(ctx context.Context, toEmail, recipientName, leadName, amount, detailURL string) error
	SendCommissionPaidEmail(ctx context.Context, toEmail, recipientName, leadName, amount, paymentReference string) error
	SendCommissionsEligibleEmail(ctx context.Context, toEmail, recipientName string, count int, reviewURL string) error
	SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error
}

// NewSender returns the SMTP sender when email is configured, otherwise a
// noop sender so callers never branch on configuration.
func NewSender(cfg config.EmailConfig) Sender {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(), cfg.GetEmailFromAddress(), cfg.GetEmailFromName())
}

// NoopSender drops every message. Used in development and in tests.
type NoopSender struct{}

func (NoopSender) SendCommissionApprovedEmail(ctx context.Context, toEmail, recipientName, leadName, amount, detailURL string) error {
	return nil
}

func (NoopSender) SendCommissionPaidEmail(ctx context.Context, toEmail, recipientName, leadName, amount, paymentReference string) error {
	return nil
}

func (NoopSender) SendCommissionsEligibleEmail(ctx context.Context, toEmail, recipientName string, count int, reviewURL string) error {
	return nil
}

func (NoopSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return nil
}
