package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender sends emails through the SendGrid v3 API.
type SendGridSender struct {
	client   *sendgrid.Client
	from     string
	fromName string
	logger   *slog.Logger
}

// NewSendGridSender creates a sender authenticated with apiKey.
func NewSendGridSender(apiKey, from, fromName string, logger *slog.Logger) *SendGridSender {
	if from == "" {
		from = DefaultFromEmail
	}
	if fromName == "" {
		fromName = DefaultFromName
	}
	return &SendGridSender{
		client:   sendgrid.NewSendClient(apiKey),
		from:     from,
		fromName: fromName,
		logger:   logger,
	}
}

// Send delivers msg. Non-2xx responses are returned as errors so the
// worker retries them.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	from := mail.NewEmail(s.fromName, s.from)
	to := mail.NewEmail(msg.ToName, msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.TextBody, msg.HTMLBody)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email via SendGrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}

	s.logger.Info("email sent",
		"to", msg.To,
		"subject", msg.Subject,
		"provider", "sendgrid",
	)
	return nil
}

var _ Sender = (*SendGridSender)(nil)
