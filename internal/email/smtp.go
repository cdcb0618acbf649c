package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender delivers mail over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

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
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) SendCommissionApprovedEmail(ctx context.Context, toEmail, recipientName, leadName, amount, detailURL string) error {
	content, err := renderEmailTemplate("commission_approved.html", commissionApprovedData{
		baseEmailData: baseEmailData{
			Title:    "Commission approved",
			Heading:  "Commission approved",
			CTALabel: "View commission",
			CTAURL:   detailURL,
		},
		RecipientName: recipientName,
		LeadName:      leadName,
		Amount:        amount,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "Your commission was approved", content)
}

func (s *SMTPSender) SendCommissionPaidEmail(ctx context.Context, toEmail, recipientName, leadName, amount, paymentReference string) error {
	content, err := renderEmailTemplate("commission_paid.html", commissionPaidData{
		baseEmailData: baseEmailData{
			Title:   "Commission paid",
			Heading: "Commission paid",
		},
		RecipientName:    recipientName,
		LeadName:         leadName,
		Amount:           amount,
		PaymentReference: paymentReference,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "Your commission was paid", content)
}

func (s *SMTPSender) SendCommissionsEligibleEmail(ctx context.Context, toEmail, recipientName string, count int, reviewURL string) error {
	content, err := renderEmailTemplate("commissions_eligible.html", commissionsEligibleData{
		baseEmailData: baseEmailData{
			Title:    "Commissions awaiting approval",
			Heading:  "Commissions awaiting approval",
			CTALabel: "Review commissions",
			CTAURL:   reviewURL,
		},
		RecipientName: recipientName,
		Count:         count,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "Commissions awaiting your approval", content)
}

func (s *SMTPSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return s.send(ctx, toEmail, subject, htmlContent)
}
