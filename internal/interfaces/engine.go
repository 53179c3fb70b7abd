package interfaces

import (
	"context"

	"mtf-signal-bot/internal/types"
)

type Engine interface {
	Step(ctx context.Context) (*types.CycleResult, error)
}
