package notification

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// LogSender logs messages instead of sending them. Used when no SMTP relay
// is configured, typically in development.
type LogSender struct{}

var _ Sender = LogSender{}

// Send logs the message and reports success.
func (LogSender) Send(ctx context.Context, msg Message) error {
	zctx.From(ctx).Info("Confirmation email (no SMTP relay configured)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
