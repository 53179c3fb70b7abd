package paper

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"mtf-signal-bot/internal/interfaces"
	"mtf-signal-bot/internal/logger"
	"mtf-signal-bot/internal/types"
)

const ticketPrefix = "PAPER-"

// Book is an in-memory position book. Entries fill at the current quote;
// stop-loss and take-profit levels are honoured whenever positions are read,
// the way a broker would have closed them server side.
type Book struct {
	mu        sync.Mutex
	quotes    interfaces.QuoteSource
	positions map[string]types.Position
	seq       int64
	balance   float64
	currency  string
	realized  float64
}

func NewBook(quotes interfaces.QuoteSource, balance float64, currency string) *Book {
	return &Book{
		quotes:    quotes,
		positions: make(map[string]types.Position),
		balance:   balance,
		currency:  currency,
	}
}

func (b *Book) SubmitEntry(ctx context.Context, intent types.TradeIntent) (string, error) {
	if !intent.Side.Valid() {
		return "", fmt.Errorf("invalid side '%s'", intent.Side)
	}
	if intent.Volume <= 0 {
		return "", fmt.Errorf("invalid volume %v", intent.Volume)
	}
	q, err := b.quotes.Quote(ctx, intent.Symbol)
	if err != nil {
		return "", fmt.Errorf("paper fill quote: %w", err)
	}
	price := q.Ask
	if intent.Side == types.Sell {
		price = q.Bid
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	ticket := ticketPrefix + strconv.FormatInt(b.seq, 10)
	b.positions[ticket] = types.Position{
		Ticket:     ticket,
		Symbol:     intent.Symbol,
		Side:       intent.Side,
		Volume:     intent.Volume,
		OpenPrice:  price,
		StopLoss:   intent.StopLoss,
		TakeProfit: intent.TakeProfit,
	}
	logger.Info(ctx, "Paper position opened", "ticket", ticket, "side", intent.Side, "volume", intent.Volume, "price", price)
	return ticket, nil
}

// SubmitExit closes the ticket at the current quote. An unknown or already
// closed ticket is a no-op.
func (b *Book) SubmitExit(ctx context.Context, intent types.CloseIntent) error {
	b.mu.Lock()
	pos, ok := b.positions[intent.Ticket]
	b.mu.Unlock()
	if !ok {
		logger.Info(ctx, "Paper close on unknown ticket ignored", "ticket", intent.Ticket)
		return nil
	}
	if intent.Side != pos.Side.Mirror() {
		return fmt.Errorf("close side %s does not offset %s position %s", intent.Side, pos.Side, pos.Ticket)
	}

	q, err := b.quotes.Quote(ctx, pos.Symbol)
	if err != nil {
		return fmt.Errorf("paper fill quote: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, still := b.positions[intent.Ticket]; !still {
		return nil
	}
	b.close(ctx, pos, exitPrice(pos.Side, q), "manual")
	return nil
}

// OpenPositions first applies any stop-loss or take-profit the current quote
// has crossed, then returns what is left, ordered by ticket.
func (b *Book) OpenPositions(ctx context.Context, symbol string) ([]types.Position, error) {
	b.mu.Lock()
	empty := len(b.positions) == 0
	b.mu.Unlock()
	if empty {
		return nil, nil
	}

	q, err := b.quotes.Quote(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("paper mark quote: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var out []types.Position
	for _, p := range b.positions {
		if p.Symbol != symbol {
			continue
		}
		px := exitPrice(p.Side, q)
		if hit, reason := protectiveHit(p, px); hit {
			b.close(ctx, p, px, reason)
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return ticketSeq(out[i].Ticket) < ticketSeq(out[j].Ticket) })
	return out, nil
}

func (b *Book) Account(context.Context) (types.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return types.Account{ID: "paper", Name: "Paper account", Currency: b.currency, Balance: b.balance + b.realized}, nil
}

// close must be called with mu held.
func (b *Book) close(ctx context.Context, p types.Position, price float64, reason string) {
	pnl := (price - p.OpenPrice) * p.Volume
	if p.Side == types.Sell {
		pnl = -pnl
	}
	b.realized += pnl
	delete(b.positions, p.Ticket)
	logger.Info(ctx, "Paper position closed", "ticket", p.Ticket, "price", price, "pnl", pnl, "reason", reason)
}

func exitPrice(held types.Side, q types.Quote) float64 {
	if held == types.Buy {
		return q.Bid
	}
	return q.Ask
}

func protectiveHit(p types.Position, px float64) (bool, string) {
	switch p.Side {
	case types.Buy:
		if p.StopLoss > 0 && px <= p.StopLoss {
			return true, "stop_loss"
		}
		if p.TakeProfit > 0 && px >= p.TakeProfit {
			return true, "take_profit"
		}
	case types.Sell:
		if p.StopLoss > 0 && px >= p.StopLoss {
			return true, "stop_loss"
		}
		if p.TakeProfit > 0 && px <= p.TakeProfit {
			return true, "take_profit"
		}
	}
	return false, ""
}

func ticketSeq(ticket string) int64 {
	n, err := strconv.ParseInt(strings.TrimPrefix(ticket, ticketPrefix), 10, 64)
	if err != nil {
		return -1
	}
	return n
}
