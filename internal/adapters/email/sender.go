package email

import (
	"context"
	"time"
)

// SendRequest contains the data needed to send an email via an external provider.
type SendRequest struct {
	To      []string // Recipient email addresses
	From    string   // Sender address, e.g. "Academy <noreply@academy.example>"; empty uses the sender default
	Subject string
	HTML    string
	Text    string            // plain-text alternative
	Tags    map[string]string // provider tags for filtering alerts in the dashboard
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender is the interface for sending emails via an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

// NewSender returns a Resend-backed sender when apiKey is set and a
// logging no-op sender otherwise.
func NewSender(apiKey, from string) Sender {
	if apiKey == "" {
		return NewNoopSender()
	}
	return NewResendSender(apiKey, from)
}
