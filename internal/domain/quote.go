package domain

import "time"

// Quote is one observation of an option contract's market, as delivered by
// the live quote feed.
type Quote struct {
	Symbol    string    // Option contract symbol
	BidPrice  float64   // Best bid
	AskPrice  float64   // Best ask
	Timestamp time.Time // Exchange timestamp
}

// Mid returns the bid/ask midpoint, the price the exit rules evaluate against.
func (q Quote) Mid() float64 {
	return (q.BidPrice + q.AskPrice) / 2
}
