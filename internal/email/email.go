// Package email delivers transactional email for challan notifications.
//
// This package defines a Sender interface with implementations for:
// - SMTP (Mailhog in development, any authenticated SMTP relay in production)
// - SendGrid's v3 mail API
package email

import (
	"context"
	"errors"
	"strings"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Sender delivers a single email. Implementations must be safe for
// concurrent use by worker goroutines.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// =============================================================================
// Email Data Types
// =============================================================================

// Message represents a single email message.
type Message struct {
	To       string // Recipient email address
	ToName   string // Recipient display name (optional)
	Subject  string // Email subject line
	TextBody string // Plain text content
	HTMLBody string // HTML content (optional)
}

// Validate checks the message has a recipient, subject and body.
func (m Message) Validate() error {
	if !strings.Contains(m.To, "@") {
		return errors.New("email: recipient address is invalid")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("email: subject is required")
	}
	if m.TextBody == "" && m.HTMLBody == "" {
		return errors.New("email: body is required")
	}
	return nil
}

// =============================================================================
// Configuration Types
// =============================================================================

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Default sender email address
	FromName string // Default sender display name
}

// =============================================================================
// Common Constants
// =============================================================================

const (
	// DefaultFromEmail is the default sender email for transactional emails.
	DefaultFromEmail = "noreply@echallan.example"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "e-Challan"
)
