package engine

import (
	"fmt"
	"math"

	"gridbot/internal/domain"
)

// SpacingFunc returns the distance of grid level i (1-based) from the
// reference price. The level-1 distance doubles as the base spacing unit for
// fill-and-replace.
type SpacingFunc func(level int, refPrice float64) float64

// ProportionalSpacing scales each level by a proportion of the reference
// price with a per-level incrementing multiplier: level i sits at
// (i/100) * price * (1.2 + 0.2*(i-1)) * proportion from the reference.
func ProportionalSpacing(proportion float64) SpacingFunc {
	return func(level int, refPrice float64) float64 {
		adj := 1.2 + 0.2*float64(level-1)
		return (float64(level) / 100) * refPrice * adj * proportion
	}
}

// TickSpacing places level i exactly i ticks from the reference price, the
// tightest grid the exchange permits.
func TickSpacing(tickSize float64) SpacingFunc {
	return func(level int, _ float64) float64 {
		return float64(level) * tickSize
	}
}

// VolatilitySpacing places level i at i times the supplied volatility
// measure (typically an ATR over recent klines).
func VolatilitySpacing(atr float64) SpacingFunc {
	return func(level int, _ float64) float64 {
		return float64(level) * atr
	}
}

// ATRFromKlines computes the Average True Range over the given klines using
// Wilder's smoothing.
func ATRFromKlines(klines []*domain.Kline, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("ATR period must be positive, got %d", period)
	}
	if len(klines) < period+1 {
		return 0, fmt.Errorf("not enough data points for ATR calculation: need %d, got %d", period+1, len(klines))
	}

	trueRanges := make([]float64, len(klines))

	// First TR is just the high-low range
	trueRanges[0] = klines[0].High - klines[0].Low

	for i := 1; i < len(klines); i++ {
		high := klines[i].High
		low := klines[i].Low
		prevClose := klines[i-1].Close

		// True Range is the greatest of:
		// high-low, |high - prevClose|, |low - prevClose|
		tr1 := high - low
		tr2 := math.Abs(high - prevClose)
		tr3 := math.Abs(low - prevClose)

		trueRanges[i] = math.Max(tr1, math.Max(tr2, tr3))
	}

	// Seed with the simple average of the first 'period' true ranges
	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}
	atr /= float64(period)

	// Wilder's smoothing for the remainder
	for i := period; i < len(trueRanges); i++ {
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
	}

	return atr, nil
}
