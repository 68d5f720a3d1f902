package ports

import (
	"context"
	"time"

	"gridbot/internal/domain"
)

// JournalEntry records one order's lifecycle for audit purposes.
// The journal is write-mostly: the engine never reads it back into state
// (crash recovery rebuilds the ledger from the exchange's open-order list).
type JournalEntry struct {
	ID         int64            // Journal row ID
	OrderID    int64            // Exchange order ID
	Symbol     string           // Trading symbol
	Side       domain.OrderSide // BUY or SELL
	Purpose    string           // grid | replacement | take_profit | stop_loss
	Price      float64          // Limit price
	Quantity   float64          // Order quantity
	PlacedAt   time.Time        // When the placement was acknowledged
	FilledAt   *time.Time       // When the fill (or external cancel) was detected
	CanceledAt *time.Time       // When the engine cancelled the order
}

// OrderJournal persists an audit trail of placements, detected fills and
// cancellations.
type OrderJournal interface {
	// RecordPlacement saves an acknowledged order and returns its row ID.
	RecordPlacement(ctx context.Context, entry *JournalEntry) (int64, error)
	// RecordFill marks an order as gone from the open-order list.
	// Fills and external cancellations are indistinguishable from that
	// signal alone, so this records "disappeared", not "executed".
	RecordFill(ctx context.Context, orderID int64, detectedAt time.Time) error
	// RecordCancel marks an order as cancelled by the engine.
	RecordCancel(ctx context.Context, orderID int64, canceledAt time.Time) error
	// FindRecentBySymbol returns the most recent entries for a symbol.
	FindRecentBySymbol(ctx context.Context, symbol string, limit int) ([]*JournalEntry, error)
	// CountFillsToday counts fills detected today for a symbol.
	CountFillsToday(ctx context.Context, symbol string) (int, error)
}
