package channels

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// NotifyTarget is anything that can push a message to the configured user
// without an inbound message to reply to.
type NotifyTarget interface {
	// Name returns the target identifier for logging.
	Name() string

	// NotifyUser delivers text to the configured user.
	NotifyUser(ctx context.Context, text string) error
}

// Notifier pushes proactive notifications (digests, reminders, alerts) to
// the user over the first target that accepts them. Targets are tried in
// the order they were registered; cheap channels go first.
type Notifier struct {
	targets []NotifyTarget
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering over targets in order.
func NewNotifier(logger *slog.Logger, targets ...NotifyTarget) *Notifier {
	return &Notifier{targets: targets, logger: logger.With("component", "notifier")}
}

// Notify delivers text over the first working target. Each delivery gets a
// correlation id so retries across targets can be traced in the logs.
// Returns an error only when every target failed or none is registered.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	id := uuid.NewString()

	for _, target := range n.targets {
		if err := target.NotifyUser(ctx, text); err != nil {
			n.logger.Warn("notification delivery failed",
				"target", target.Name(), "notification_id", id, "error", err)
			continue
		}
		n.logger.Info("notification delivered",
			"target", target.Name(), "notification_id", id)
		return nil
	}

	n.logger.Error("no notification channel available", "notification_id", id)
	return fmt.Errorf("delivering notification %s: no channel available", id)
}

// Targets returns the registered target names in delivery order.
func (n *Notifier) Targets() []string {
	names := make([]string, 0, len(n.targets))
	for _, t := range n.targets {
		names = append(names, t.Name())
	}
	return names
}
