package types

import "errors"

var (
	// ErrNoData marks data that could not be fetched or produced no usable
	// indicator rows. Decisions are never taken on it.
	ErrNoData = errors.New("no data")

	ErrUndefinedRisk = errors.New("risk levels undefined")
)
