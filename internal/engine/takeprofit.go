package engine

import (
	"math"

	"gridbot/internal/domain"
)

// CalculateTakeProfit derives the exit price that captures takeProfitPercent
// of the position's margin:
//
//	margin = entryPrice * |amount| / leverage
//	profit = margin * takeProfitPercent / 100
//	LONG:  tp = entryPrice + profit / amount        (closes with a SELL)
//	SHORT: tp = entryPrice - profit / |amount|      (closes with a BUY)
//
// The price is rounded to the instrument's price step. A leverage reported
// as zero or negative defaults to 1. Returns false for a nil or flat
// position: there is no target and callers must not place an order.
func CalculateTakeProfit(pos *domain.Position, takeProfitPercent, priceStep float64) (domain.TakeProfitTarget, bool) {
	offset, ok := exitOffset(pos, takeProfitPercent)
	if !ok {
		return domain.TakeProfitTarget{}, false
	}
	return domain.TakeProfitTarget{
		Price:     RoundToStep(pos.EntryPrice+offset, priceStep),
		Quantity:  math.Abs(pos.Amount),
		Direction: pos.Direction(),
	}, true
}

// CalculateStopLoss mirrors CalculateTakeProfit with the profit sign
// swapped: the exit sits the same distance on the losing side of the entry.
// Only consulted when stop-loss placement is explicitly enabled.
func CalculateStopLoss(pos *domain.Position, stopLossPercent, priceStep float64) (domain.TakeProfitTarget, bool) {
	offset, ok := exitOffset(pos, stopLossPercent)
	if !ok {
		return domain.TakeProfitTarget{}, false
	}
	return domain.TakeProfitTarget{
		Price:     RoundToStep(pos.EntryPrice-offset, priceStep),
		Quantity:  math.Abs(pos.Amount),
		Direction: pos.Direction(),
	}, true
}

// exitOffset computes the signed price offset from entry that realizes
// percent of margin as profit in the position's favorable direction.
func exitOffset(pos *domain.Position, percent float64) (float64, bool) {
	if pos == nil || pos.Amount == 0 {
		return 0, false
	}

	leverage := float64(pos.Leverage)
	if leverage <= 0 {
		leverage = 1
	}

	margin := pos.EntryPrice * math.Abs(pos.Amount) / leverage
	profit := margin * percent / 100

	// profit/amount is positive for longs and negative for shorts, which is
	// exactly the favorable offset in both cases.
	return profit / pos.Amount, true
}
