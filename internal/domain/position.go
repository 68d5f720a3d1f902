package domain

// Position is a snapshot of the exchange's view of an open position.
// It is never cached across monitor iterations; the exchange is queried anew
// each cycle and a nil position means flat.
type Position struct {
	Symbol     string  // Trading symbol (e.g., "ETHUSDT")
	Amount     float64 // Signed quantity: positive long, negative short
	EntryPrice float64 // Average entry price
	Leverage   int     // Leverage reported by the exchange (0 if unknown)
}

// Direction classifies the position.
func (p *Position) Direction() Direction {
	if p == nil {
		return Flat
	}
	return DirectionFromAmount(p.Amount)
}
