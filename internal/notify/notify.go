// Package notify delivers messages to users. Delivery is best-effort: callers
// log failures and carry on.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Notifier sends a message to one recipient
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// EmailSubject is the NATS subject mail jobs are published on
const EmailSubject = "notifications.email"

// EmailJob is the payload published for an external mailer
type EmailJob struct {
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// NATSNotifier publishes mail jobs on EmailSubject
type NATSNotifier struct {
	nc *nats.Conn
}

// NewNATSNotifier creates a notifier publishing on nc
func NewNATSNotifier(nc *nats.Conn) *NATSNotifier {
	return &NATSNotifier{nc: nc}
}

// Send publishes the mail job
func (n *NATSNotifier) Send(ctx context.Context, to, subject, body string) error {
	data, err := json.Marshal(EmailJob{
		To:        to,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal email job: %w", err)
	}

	if err := n.nc.Publish(EmailSubject, data); err != nil {
		return fmt.Errorf("publish email job: %w", err)
	}
	return nil
}

// SendGridNotifier sends mail through the SendGrid API
type SendGridNotifier struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

// NewSendGridNotifier creates a SendGrid notifier
func NewSendGridNotifier(apiKey, from, fromName string) *SendGridNotifier {
	return &SendGridNotifier{
		client:   sendgrid.NewSendClient(apiKey),
		from:     from,
		fromName: fromName,
	}
}

// Send sends a plain-text mail
func (n *SendGridNotifier) Send(ctx context.Context, to, subject, body string) error {
	m := mail.NewSingleEmail(mail.NewEmail(n.fromName, n.from), subject, mail.NewEmail("", to), body, "")

	response, err := n.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid API error: %d", response.StatusCode)
	}
	return nil
}

// LogNotifier records that a message would have been sent. Bodies can carry
// credentials, so only their length is logged. Logger defaults to the global
// logger.
type LogNotifier struct {
	Logger *zerolog.Logger
}

// Send logs the message envelope
func (n LogNotifier) Send(ctx context.Context, to, subject, body string) error {
	logger := n.Logger
	if logger == nil {
		logger = &log.Logger
	}

	logger.Info().
		Str("to", to).
		Str("subject", subject).
		Int("body_length", len(body)).
		Msg("Notification")
	return nil
}
