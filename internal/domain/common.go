package domain

// Signal represents a directional trading decision.
type Signal int

const (
	Long    Signal = 1
	Short   Signal = -1
	Neutral Signal = 0
)

// String returns a human-readable name for the signal.
func (s Signal) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "NEUTRAL"
	}
}

// OptionType distinguishes call and put contracts.
type OptionType string

const (
	Call OptionType = "C"
	Put  OptionType = "P"
)

// CloseReason indicates which exit rule fired for a position (or part of one).
type CloseReason string

const (
	CloseReasonTakeProfit1   CloseReason = "TP1"
	CloseReasonTakeProfit2   CloseReason = "TP2"
	CloseReasonTrailingStop  CloseReason = "TRAILING_STOP"
	CloseReasonHardStop      CloseReason = "HARD_STOP"
	CloseReasonBreakevenStop CloseReason = "BREAKEVEN_STOP"
	CloseReasonTimeLimit     CloseReason = "TIME_LIMIT" // Position force-closed by the max-hold rule
	CloseReasonUnknown       CloseReason = "UNKNOWN"
)
