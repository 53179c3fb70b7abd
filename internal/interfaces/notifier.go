package interfaces

import "context"

// Notifier delivers human-readable alerts. Callers treat delivery as best
// effort: a failed alert never changes a trading decision.
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}
