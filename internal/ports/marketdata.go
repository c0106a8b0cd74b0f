package ports

import (
	"context"
	"time"

	"optionScalpBot/internal/domain"
)

// MarketDataClient retrieves bar history for the underlying symbol.
// Implementations must return ErrNoHistoricalData (not an empty slice) when
// the provider has nothing for the requested window.
type MarketDataClient interface {
	// FetchHistory retrieves minute bars between start and end, ordered by
	// timestamp, with field gaps forward-filled.
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Bar, error)
	// FetchLatest retrieves the most recent minute bar for the symbol.
	FetchLatest(ctx context.Context, symbol string) (*domain.Bar, error)
}

// OptionQuoteClient retrieves the latest quote for an option contract.
type OptionQuoteClient interface {
	// LatestMid returns the current bid/ask midpoint for the contract.
	// Returns ErrNoQuote when the contract has no two-sided market.
	LatestMid(ctx context.Context, symbol string) (float64, error)
}
