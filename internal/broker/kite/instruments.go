package kite

import (
	"sync"
)

type instrument struct {
	token int
	tick  float64
}

// instrumentMapper maps trading symbols to instrument tokens and tick sizes
// for one exchange.
type instrumentMapper struct {
	bySymbol map[string]instrument
	mu       sync.RWMutex
}

func newInstrumentMapper() *instrumentMapper {
	return &instrumentMapper{
		bySymbol: make(map[string]instrument),
	}
}

func (im *instrumentMapper) add(symbol string, token int, tick float64) {
	im.mu.Lock()
	defer im.mu.Unlock()

	im.bySymbol[symbol] = instrument{token: token, tick: tick}
}

func (im *instrumentMapper) get(symbol string) (instrument, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()

	in, ok := im.bySymbol[symbol]
	return in, ok
}

func (im *instrumentMapper) size() int {
	im.mu.RLock()
	defer im.mu.RUnlock()

	return len(im.bySymbol)
}
