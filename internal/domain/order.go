package domain

import "time"

// Order is a resting limit order the engine believes is open on the exchange.
// Entries are owned by the ledger once the exchange acknowledges them.
type Order struct {
	ID        int64     // Exchange-assigned order ID
	Symbol    string    // Trading symbol (e.g., "BTCUSDT")
	Side      OrderSide // BUY or SELL
	Price     float64   // Limit price
	Quantity  float64   // Order quantity
	CreatedAt time.Time // When the engine recorded the acknowledgment
}

// TakeProfitTarget describes the single exit order maintained for an open
// position. Superseded targets must have their exchange order cancelled
// before a new one is placed.
type TakeProfitTarget struct {
	Price     float64   // Exit price, rounded to the price step
	Quantity  float64   // Absolute position size to close
	Direction Direction // Direction of the position being protected
}

// Side returns the order side that realizes the target.
func (t TakeProfitTarget) Side() OrderSide {
	return t.Direction.ClosingSide()
}
