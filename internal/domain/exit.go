package domain

import "time"

// ExitEvent records one firing of an exit tier for a tracked position.
// Events are the operator's only visibility into the autonomous exit engine,
// so they carry every price level involved in the decision.
type ExitEvent struct {
	ID            int64         // Journal identifier (0 until persisted)
	Symbol        string        // Option contract symbol
	Reason        CloseReason   // Which rule fired
	Price         float64       // Mid price that triggered the firing
	EntryPrice    float64       // Price the position was entered at
	HighWaterMark float64       // Highest mid price seen since entry
	Fraction      float64       // Fraction of the position closed by this firing
	Elapsed       time.Duration // Time held when the rule fired
	Final         bool          // True when this firing destroyed the position
	FiredAt       time.Time     // Wall-clock time of the firing
}
