package domain

import "time"

// Kline represents a single candlestick, used to derive volatility-based
// grid spacing.
type Kline struct {
	OpenTime  time.Time
	CloseTime time.Time
	Symbol    string
	Interval  string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
