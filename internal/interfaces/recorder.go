package interfaces

import (
	"context"

	"mtf-signal-bot/internal/types"
)

type TradeRecorder interface {
	RecordEntry(ctx context.Context, intent types.TradeIntent, ticket string) error
	RecordExit(ctx context.Context, intent types.CloseIntent) error
}
