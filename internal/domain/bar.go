package domain

import "time"

// Bar represents a single OHLCV sample for the underlying symbol.
// Bars are immutable once created and ordered by timestamp, one per minute.
type Bar struct {
	Timestamp time.Time // Start time of the interval
	Symbol    string    // Underlying symbol
	Open      float64   // Opening price
	High      float64   // Highest price
	Low       float64   // Lowest price
	Close     float64   // Closing price
	Volume    float64   // Trading volume
}
