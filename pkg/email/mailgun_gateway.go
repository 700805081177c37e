package email

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunConfig holds configuration for the Mailgun gateway
type MailgunConfig struct {
	Domain      string
	APIKey      string
	APIBase     string // optional, e.g. mailgun.APIBaseEU
	SenderName  string
	SenderEmail string
	Timeout     time.Duration
}

// MailgunGateway sends email through the Mailgun HTTP API
type MailgunGateway struct {
	mg          *mailgun.MailgunImpl
	senderName  string
	senderEmail string
	timeout     time.Duration
}

// NewMailgunGateway creates a new Mailgun email gateway
func NewMailgunGateway(config MailgunConfig) *MailgunGateway {
	mg := mailgun.NewMailgun(config.Domain, config.APIKey)
	if config.APIBase != "" {
		mg.SetAPIBase(config.APIBase)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &MailgunGateway{
		mg:          mg,
		senderName:  config.SenderName,
		senderEmail: config.SenderEmail,
		timeout:     timeout,
	}
}

func (g *MailgunGateway) sender() string {
	return fmt.Sprintf("%s <%s>", g.senderName, g.senderEmail)
}

// Send delivers msg through Mailgun
func (g *MailgunGateway) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	message := mailgun.NewMessage(g.sender(), msg.Subject, msg.Text, msg.To)
	message.SetHtml(msg.HTML)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, id, err := g.mg.Send(ctx, message)
	if err != nil {
		return "", fmt.Errorf("mailgun send to %s failed (id=%q, response=%q): %w", msg.To, id, resp, err)
	}

	return id, nil
}

// GetName returns the gateway name
func (g *MailgunGateway) GetName() string {
	return "mailgun"
}
