package engine

import (
	"context"
	"strconv"
	"strings"

	"mtf-signal-bot/internal/logger"
)

// alert delivers msg best effort. A failed alert is logged and counted,
// never returned.
func (e *Engine) alert(ctx context.Context, msg string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, msg); err != nil {
		logger.ErrorWithErr(ctx, "Alert delivery failed", err, "message", msg)
		e.metrics.RecordNotifyFailure()
	}
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func labels[T any](items []T, label func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = label(it)
	}
	return out
}

func joinIssues(issues []string) string {
	return strings.Join(issues, "; ")
}
