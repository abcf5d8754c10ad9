package ports

import (
	"context"
	"time"
)

// OrderFill represents the essential details of an executed market order.
type OrderFill struct {
	OrderID       int64     // Exchange's order ID
	ClientOrderID string    // Client-generated order ID (idempotency)
	Symbol        string    // Symbol for the order
	Price         float64   // Weighted average fill price
	Quantity      float64   // Base asset quantity filled
	QuoteSpent    float64   // Quote currency spent/received
	Timestamp     time.Time // Time the order response was generated
}

// BookLevel is a single price level in the order book.
type BookLevel struct {
	Price    float64
	Quantity float64
}

// OrderBook is a depth snapshot. Bids are ordered best (highest) first,
// asks best (lowest) first.
type OrderBook struct {
	Symbol string
	Bids   []BookLevel
	Asks   []BookLevel
}

// ExchangeClient defines the interface for interacting with a cryptocurrency exchange.
// This abstraction allows decoupling the core engine from specific exchange implementations.
// All calls may fail transiently; callers must treat failures as "skip this
// symbol this cycle" and never mutate ledger state on a failed call.
type ExchangeClient interface {
	// SetServerTime synchronizes the client's time with the server's time.
	SetServerTime(ctx context.Context) error

	// Ping checks the connectivity to the exchange API.
	Ping(ctx context.Context) error

	// GetTickerPrice retrieves the last ticker price for a given symbol.
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)

	// GetFreeBalance retrieves the free balance for a specific asset (e.g., "USDT").
	GetFreeBalance(ctx context.Context, asset string) (float64, error)

	// MarketBuy places a market buy for the given quote-currency amount
	// and returns the aggregated fill.
	MarketBuy(ctx context.Context, symbol string, quoteAmount float64) (*OrderFill, error)

	// MarketSell places a market sell for the given base-asset quantity
	// and returns the aggregated fill.
	MarketSell(ctx context.Context, symbol string, quantity float64) (*OrderFill, error)

	// GetOrderBook retrieves a depth snapshot limited to the given number of levels.
	GetOrderBook(ctx context.Context, symbol string, limit int) (*OrderBook, error)
}
