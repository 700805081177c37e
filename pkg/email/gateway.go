package email

import (
	"context"
	"errors"
	"strings"
)

// Message is an outbound email. HTML is required, Text is the plain fallback.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Validate checks the fields every gateway needs.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("email recipient is required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("email subject is required")
	}
	if strings.TrimSpace(m.HTML) == "" {
		return errors.New("email body is required")
	}
	return nil
}

// EmailGateway defines the interface for email sending providers
type EmailGateway interface {
	// Send delivers the message and returns the provider's message id
	Send(ctx context.Context, msg Message) (string, error)

	// GetName returns the name of the email gateway implementation
	GetName() string
}
