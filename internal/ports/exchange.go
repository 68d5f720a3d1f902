package ports

import (
	"context"
	"time"

	"gridbot/internal/domain"
)

// OrderAck represents the essential details returned after placing or
// cancelling an order.
type OrderAck struct {
	OrderID       int64     // Exchange's order ID
	Symbol        string    // Symbol for the order
	ClientOrderID string    // User-defined order ID
	Price         float64   // Limit price of the order
	OrigQuantity  float64   // Original quantity requested
	ExecutedQty   float64   // Quantity filled so far
	Status        string    // Order status (e.g., NEW, FILLED, CANCELED)
	Side          string    // Order side (BUY, SELL)
	Timestamp     time.Time // Time the response was generated
}

// SymbolFilters holds the exchange-mandated increments for a symbol.
type SymbolFilters struct {
	Symbol       string
	PriceStep    float64 // Tick size: minimum price increment
	QuantityStep float64 // Step size: minimum quantity increment
	MinNotional  float64 // Minimum order notional (0 if not reported)
}

// ExchangeClient defines the interface for interacting with the futures
// exchange. This abstraction decouples the grid engine from the concrete
// exchange implementation.
type ExchangeClient interface {
	// SetServerTime synchronizes the client's time with the server's time.
	SetServerTime(ctx context.Context) error

	// Ping checks connectivity to the exchange API.
	Ping(ctx context.Context) error

	// GetMarkPrice retrieves the current mark price for a given symbol.
	GetMarkPrice(ctx context.Context, symbol string) (float64, error)

	// GetSymbolFilters retrieves price and quantity increments for a symbol.
	GetSymbolFilters(ctx context.Context, symbol string) (*SymbolFilters, error)

	// SetLeverage sets the leverage for a specific symbol.
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// PlaceLimitOrder places a GTC limit order. Quantity and price are
	// pre-formatted to the symbol's step precision.
	PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity string, price string) (*OrderAck, error)

	// CancelOrder cancels an existing open order by its ID.
	CancelOrder(ctx context.Context, symbol string, orderID int64) (*OrderAck, error)

	// ListOpenOrders returns all currently resting orders for a symbol.
	// This list is the ground truth the ledger is reconciled against.
	ListOpenOrders(ctx context.Context, symbol string) ([]*domain.Order, error)

	// GetPosition retrieves the open position for a symbol.
	// Returns nil, nil when the position amount is zero (flat).
	GetPosition(ctx context.Context, symbol string) (*domain.Position, error)

	// GetKlines retrieves recent candlesticks, used for volatility-derived
	// grid spacing.
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error)
}
