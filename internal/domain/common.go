package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Direction classifies a position by the sign of its amount.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
	Flat  Direction = "FLAT"
)

// DirectionFromAmount classifies a signed position amount.
func DirectionFromAmount(amount float64) Direction {
	switch {
	case amount > 0:
		return Long
	case amount < 0:
		return Short
	default:
		return Flat
	}
}

// ClosingSide returns the order side that reduces a position in this
// direction: a LONG closes with a SELL, a SHORT with a BUY.
// Flat positions have no closing side; callers must check for Flat first.
func (d Direction) ClosingSide() OrderSide {
	if d == Short {
		return Buy
	}
	return Sell
}

// AccumulatingSide returns the order side that would add to a position in
// this direction. These are the orders the monitor cancels once a position
// exists, to avoid compounding exposure.
func (d Direction) AccumulatingSide() OrderSide {
	return d.ClosingSide().Opposite()
}
