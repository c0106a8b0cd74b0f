package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Quote Stream Errors
	ErrAuthenticationFailed = errors.New("quote feed authentication failed (check API keys)")
	ErrTransportClosed      = errors.New("quote stream transport closed")
	ErrNotConnected         = errors.New("quote stream is not connected")
	ErrConnectionFailed     = errors.New("failed to connect to the quote feed")

	// Market Data Errors
	ErrNoHistoricalData = errors.New("no historical bar data available")
	ErrNoQuote          = errors.New("no quote available for symbol")
	ErrRateLimited      = errors.New("API rate limit exceeded")

	// Exit Tracking Errors
	ErrPositionOpen      = errors.New("a position is already being tracked")
	ErrInvalidTierConfig = errors.New("invalid exit tier configuration")

	// Journal Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)
