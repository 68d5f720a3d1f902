package engine

import (
	"math"
	"strconv"
)

// RoundToStep rounds a value to the nearest multiple of the exchange step.
// Rounding to nearest, never truncating: a grid level must land on a valid
// tick without drifting toward the reference price.
func RoundToStep(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	return math.Round(value/step) * step
}

// decimalsForStep returns the number of decimal places implied by a step
// (0.1 -> 1, 0.001 -> 3, 1 -> 0). Capped at 8, Binance's maximum precision.
func decimalsForStep(step float64) int {
	d := 0
	for d < 8 {
		scaled := step * math.Pow(10, float64(d))
		if math.Abs(scaled-math.Round(scaled)) < 1e-9 {
			break
		}
		d++
	}
	return d
}

// FormatByStep rounds a value to the step and formats it with exactly the
// step's precision, as the exchange API requires.
func FormatByStep(value, step float64) string {
	return strconv.FormatFloat(RoundToStep(value, step), 'f', decimalsForStep(step), 64)
}
