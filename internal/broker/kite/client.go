package kite

import (
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// api is the subset of *kiteconnect.Client the gateway calls.
type api interface {
	GetUserProfile() (kiteconnect.UserProfile, error)
	GetUserMargins() (kiteconnect.AllMargins, error)
	GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error)
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, oi bool) ([]kiteconnect.HistoricalData, error)
	GetQuote(instruments ...string) (kiteconnect.Quote, error)
	GetPositions() (kiteconnect.Positions, error)
	GetOrders() (kiteconnect.Orders, error)
	PlaceOrder(variety string, orderParams kiteconnect.OrderParams) (kiteconnect.OrderResponse, error)
	CancelOrder(variety string, orderID string, parentOrderID *string) (kiteconnect.OrderResponse, error)
}

var _ api = (*kiteconnect.Client)(nil)
