package ports

import (
	"context"
	"time"
)

// QuoteObserver receives every mid-price tick decoded from the quote stream.
// Observers are registered once at startup, never mid-stream.
type QuoteObserver interface {
	OnQuote(symbol string, price float64, ts time.Time)
}

// Unsubscriber is the slice of the quote stream client the exit tracker
// needs: dropping a symbol's subscription when its position is destroyed.
type Unsubscriber interface {
	Unsubscribe(ctx context.Context, symbol string) error
}
