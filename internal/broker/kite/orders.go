package kite

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"mtf-signal-bot/internal/logger"
	"mtf-signal-bot/internal/types"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// Kite order statuses that still rest at the exchange.
const (
	statusOpen           = "OPEN"
	statusTriggerPending = "TRIGGER PENDING"
)

// ticketFor identifies a net position. Kite has no per-trade tickets, so a
// position is keyed by exchange, symbol and product.
func ticketFor(exchange, symbol, product string) string {
	return exchange + ":" + symbol + ":" + product
}

func parseTicket(ticket string) (exchange, symbol, product string, err error) {
	parts := strings.Split(ticket, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("malformed ticket '%s'", ticket)
	}
	return parts[0], parts[1], parts[2], nil
}

// OpenPositions maps the net Kite positions for symbol. When none remains,
// any of this bot's orders still resting for the symbol belong to a position
// that was stopped out or an entry that never filled, and they are cancelled.
func (g *Gateway) OpenPositions(ctx context.Context, symbol string) ([]types.Position, error) {
	ps, err := g.api.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("kite positions: %w", err)
	}
	var out []types.Position
	for _, p := range ps.Net {
		if p.Tradingsymbol != symbol || p.Exchange != g.p.Exchange || p.Product != g.p.Product || p.Quantity == 0 {
			continue
		}
		side := types.Buy
		if p.Quantity < 0 {
			side = types.Sell
		}
		out = append(out, types.Position{
			Ticket:    ticketFor(p.Exchange, p.Tradingsymbol, p.Product),
			Symbol:    p.Tradingsymbol,
			Side:      side,
			Volume:    math.Abs(float64(p.Quantity)),
			OpenPrice: p.AveragePrice,
		})
	}
	if len(out) == 0 {
		if err := g.cancelResting(ctx, g.p.Exchange, symbol); err != nil {
			logger.ErrorWithErr(ctx, "Failed to cancel stale orders", err, "symbol", symbol)
		}
	}
	return out, nil
}

// netQuantity sums the signed net quantity held for one exchange, symbol and
// product.
func netQuantity(ps kiteconnect.Positions, exchange, symbol, product string) int {
	net := 0
	for _, p := range ps.Net {
		if p.Exchange == exchange && p.Tradingsymbol == symbol && p.Product == product {
			net += p.Quantity
		}
	}
	return net
}

// SubmitEntry places the entry and, once accepted, the protective stop-loss
// and take-profit orders. Stale orders from an earlier position are cancelled
// first; the entry is refused if that fails, since a leftover exit order could
// otherwise fill against the new position. A failed protective order is
// logged and the position stays covered by the reversal monitor.
func (g *Gateway) SubmitEntry(ctx context.Context, intent types.TradeIntent) (string, error) {
	in, ok := g.instruments.get(intent.Symbol)
	if !ok {
		return "", fmt.Errorf("unknown instrument %s:%s", g.p.Exchange, intent.Symbol)
	}
	qty, err := quantity(intent.Volume)
	if err != nil {
		return "", err
	}

	ps, err := g.api.GetPositions()
	if err != nil {
		return "", fmt.Errorf("kite positions: %w", err)
	}
	if netQuantity(ps, g.p.Exchange, intent.Symbol, g.p.Product) == 0 {
		if err := g.cancelResting(ctx, g.p.Exchange, intent.Symbol); err != nil {
			return "", fmt.Errorf("cancel stale orders: %w", err)
		}
	}

	params := g.orderParams(intent.Symbol, intent.Side, qty)
	if g.p.MaxDeviation > 0 && intent.Price > 0 {
		params.OrderType = kiteconnect.OrderTypeLimit
		params.Price = limitPrice(intent.Price, intent.Side, g.p.MaxDeviation, in.tick)
	}
	resp, err := g.api.PlaceOrder(kiteconnect.VarietyRegular, params)
	if err != nil {
		return "", fmt.Errorf("place entry: %w", err)
	}
	logger.Info(ctx, "Kite entry order placed", "order_id", resp.OrderID, "symbol", intent.Symbol, "side", intent.Side, "qty", qty, "type", params.OrderType)

	g.protect(ctx, intent, qty, in.tick)
	return ticketFor(g.p.Exchange, intent.Symbol, g.p.Product), nil
}

func (g *Gateway) protect(ctx context.Context, intent types.TradeIntent, qty int, tick float64) {
	exit := intent.Side.Mirror()

	if intent.StopLoss > 0 {
		sl := g.orderParams(intent.Symbol, exit, qty)
		sl.OrderType = kiteconnect.OrderTypeSLM
		sl.TriggerPrice = roundTick(intent.StopLoss, tick)
		if resp, err := g.api.PlaceOrder(kiteconnect.VarietyRegular, sl); err != nil {
			logger.ErrorWithErr(ctx, "Stop-loss order failed", err, "symbol", intent.Symbol, "trigger", sl.TriggerPrice)
		} else {
			logger.Info(ctx, "Stop-loss order placed", "order_id", resp.OrderID, "trigger", sl.TriggerPrice)
		}
	}
	if intent.TakeProfit > 0 {
		tp := g.orderParams(intent.Symbol, exit, qty)
		tp.OrderType = kiteconnect.OrderTypeLimit
		tp.Price = roundTick(intent.TakeProfit, tick)
		if resp, err := g.api.PlaceOrder(kiteconnect.VarietyRegular, tp); err != nil {
			logger.ErrorWithErr(ctx, "Take-profit order failed", err, "symbol", intent.Symbol, "price", tp.Price)
		} else {
			logger.Info(ctx, "Take-profit order placed", "order_id", resp.OrderID, "price", tp.Price)
		}
	}
}

// SubmitExit cancels this bot's resting orders for the ticket's symbol and
// squares off the net position. A flat position places nothing, but its
// leftover orders are still cancelled.
func (g *Gateway) SubmitExit(ctx context.Context, intent types.CloseIntent) error {
	exchange, symbol, product, err := parseTicket(intent.Ticket)
	if err != nil {
		return err
	}
	ps, err := g.api.GetPositions()
	if err != nil {
		return fmt.Errorf("kite positions: %w", err)
	}
	net := netQuantity(ps, exchange, symbol, product)
	if net == 0 {
		logger.Info(ctx, "Position already flat, nothing to close", "ticket", intent.Ticket)
		if err := g.cancelResting(ctx, exchange, symbol); err != nil {
			return fmt.Errorf("cancel stale orders: %w", err)
		}
		return nil
	}

	held := types.Buy
	if net < 0 {
		held = types.Sell
	}
	if intent.Side != held.Mirror() {
		return fmt.Errorf("close side %s does not offset %s position %s", intent.Side, held, intent.Ticket)
	}

	if err := g.cancelResting(ctx, exchange, symbol); err != nil {
		logger.ErrorWithErr(ctx, "Failed to cancel protective orders", err, "ticket", intent.Ticket)
	}

	qty := net
	if qty < 0 {
		qty = -qty
	}
	params := g.orderParams(symbol, intent.Side, qty)
	params.Exchange = exchange
	params.Product = product
	resp, err := g.api.PlaceOrder(kiteconnect.VarietyRegular, params)
	if err != nil {
		return fmt.Errorf("place exit: %w", err)
	}
	logger.Info(ctx, "Kite exit order placed", "order_id", resp.OrderID, "ticket", intent.Ticket, "qty", qty)
	return nil
}

// cancelResting cancels every order carrying this bot's tag for symbol that
// is still open or waiting on its trigger.
func (g *Gateway) cancelResting(ctx context.Context, exchange, symbol string) error {
	orders, err := g.api.GetOrders()
	if err != nil {
		return fmt.Errorf("kite orders: %w", err)
	}
	var errs []error
	for _, o := range orders {
		if o.Tag != g.p.OrderTag || o.Exchange != exchange || o.TradingSymbol != symbol {
			continue
		}
		if o.Status != statusOpen && o.Status != statusTriggerPending {
			continue
		}
		if _, err := g.api.CancelOrder(kiteconnect.VarietyRegular, o.OrderID, nil); err != nil {
			errs = append(errs, fmt.Errorf("cancel %s: %w", o.OrderID, err))
			continue
		}
		logger.Info(ctx, "Resting order cancelled", "order_id", o.OrderID, "symbol", symbol)
	}
	return errors.Join(errs...)
}

func (g *Gateway) orderParams(symbol string, side types.Side, qty int) kiteconnect.OrderParams {
	txn := kiteconnect.TransactionTypeBuy
	if side == types.Sell {
		txn = kiteconnect.TransactionTypeSell
	}
	return kiteconnect.OrderParams{
		Exchange:        g.p.Exchange,
		Tradingsymbol:   symbol,
		Validity:        kiteconnect.ValidityDay,
		Product:         g.p.Product,
		OrderType:       kiteconnect.OrderTypeMarket,
		TransactionType: txn,
		Quantity:        qty,
		Tag:             g.p.OrderTag,
	}
}

// quantity converts the configured volume to whole shares.
func quantity(volume float64) (int, error) {
	q := math.Round(volume)
	if q < 1 || math.Abs(volume-q) > 1e-9 {
		return 0, fmt.Errorf("volume %v is not a whole number of shares", volume)
	}
	return int(q), nil
}

// limitPrice bounds slippage to dev ticks beyond the quoted price.
func limitPrice(price float64, side types.Side, dev int, tick float64) float64 {
	off := float64(dev) * tick
	if side == types.Sell {
		off = -off
	}
	return roundTick(price+off, tick)
}

func roundTick(p, tick float64) float64 {
	if tick <= 0 {
		return p
	}
	t := decimal.NewFromFloat(tick)
	v, _ := decimal.NewFromFloat(p).Div(t).Round(0).Mul(t).Float64()
	return v
}
