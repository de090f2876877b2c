package notification

import (
	"context"
	"log/slog"
)

const (
	KindRegistered      = "account_registered"
	KindPasswordReset   = "password_reset"
	KindAccountFrozen   = "account_frozen"
	KindAccountUnfrozen = "account_unfrozen"
	KindAdminDeposit    = "admin_deposit"
	KindAdminWithdrawal = "admin_withdrawal"
)

// Message describes an account event worth auditing.
type Message struct {
	Kind        string
	Actor       string
	Destination string
	Body        string
}

// Notifier delivers account events to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "account event",
		slog.String("kind", message.Kind),
		slog.String("actor", message.Actor),
		slog.String("destination", message.Destination),
		slog.String("body", message.Body),
	)
	return nil
}
