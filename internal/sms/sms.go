// Package sms delivers text messages for challan notifications.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	v2010 "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"
)

// Sender delivers one SMS and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// ErrInvalidNumber is returned for numbers that are not in E.164 form.
var ErrInvalidNumber = errors.New("sms: phone number must be in E.164 format")

// ValidateNumber checks that to looks like +<country><number>.
func ValidateNumber(to string) error {
	if len(to) < 8 || len(to) > 16 || !strings.HasPrefix(to, "+") {
		return ErrInvalidNumber
	}
	for _, r := range to[1:] {
		if r < '0' || r > '9' {
			return ErrInvalidNumber
		}
	}
	return nil
}

// =============================================================================
// Twilio
// =============================================================================

// TwilioConfig holds Twilio credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// TwilioSender sends messages through the Twilio REST API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
	logger *slog.Logger
}

// NewTwilioSender creates a Twilio-backed sender.
func NewTwilioSender(cfg TwilioConfig, logger *slog.Logger) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioSender{client: client, from: cfg.FromNumber, logger: logger}
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) (string, error) {
	if err := ValidateNumber(to); err != nil {
		return "", err
	}

	params := &v2010.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send SMS via Twilio: %w", err)
	}

	var sid string
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	s.logger.Info("sms sent", "to", to, "sid", sid)
	return sid, nil
}

// =============================================================================
// Log-only
// =============================================================================

// LogSender writes messages to the log instead of sending them. Used in
// development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, body string) (string, error) {
	if err := ValidateNumber(to); err != nil {
		return "", err
	}
	s.logger.Info("sms (log only)", "to", to, "body", body)
	return "log", nil
}

// =============================================================================
// Rate limiting
// =============================================================================

// Throttled wraps a Sender so sends wait for a token from a shared limiter.
type Throttled struct {
	next    Sender
	limiter *rate.Limiter
}

// NewThrottled limits next to perMinute sends with the given burst.
func NewThrottled(next Sender, perMinute, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perMinute)/60, burst),
	}
}

func (t *Throttled) Send(ctx context.Context, to, body string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("sms rate limit: %w", err)
	}
	return t.next.Send(ctx, to, body)
}

var (
	_ Sender = (*TwilioSender)(nil)
	_ Sender = (*LogSender)(nil)
	_ Sender = (*Throttled)(nil)
)
