package email

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LogGateway writes emails to the log instead of sending them.
// Used in dev mode and in tests, where Sent exposes what would have gone out.
type LogGateway struct {
	logger *logrus.Logger

	mu   sync.Mutex
	sent []Message
}

// NewLogGateway creates a gateway that only logs
func NewLogGateway(logger *logrus.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

// Send records and logs msg
func (g *LogGateway) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	id := "dev-" + uuid.NewString()

	g.mu.Lock()
	g.sent = append(g.sent, msg)
	g.mu.Unlock()

	if g.logger != nil {
		g.logger.WithFields(logrus.Fields{
			"message_id": id,
			"to":         msg.To,
			"subject":    msg.Subject,
			"html_bytes": len(msg.HTML),
		}).Info("Email not sent (dev mode)")
	}

	return id, nil
}

// Sent returns a copy of the messages recorded so far
func (g *LogGateway) Sent() []Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Message, len(g.sent))
	copy(out, g.sent)
	return out
}

// GetName returns the gateway name
func (g *LogGateway) GetName() string {
	return "log"
}
