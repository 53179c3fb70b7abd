// Package notify delivers human-readable alerts. Delivery is best effort;
// the engine logs a failed alert and carries on.
package notify

import (
	"context"
	"errors"

	"mtf-signal-bot/internal/interfaces"
	"mtf-signal-bot/internal/logger"
)

// Log writes alerts to the structured log. It never fails.
type Log struct{}

var _ interfaces.Notifier = Log{}

func (Log) Notify(ctx context.Context, msg string) error {
	logger.Info(ctx, "Alert", "message", msg)
	return nil
}

// Multi sends every alert to all notifiers and joins their errors.
type Multi []interfaces.Notifier

var _ interfaces.Notifier = Multi(nil)

func (m Multi) Notify(ctx context.Context, msg string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
