// Package options builds OCC option contract symbols for the traded
// underlying.
package options

import (
	"fmt"
	"math"
	"time"

	"optionScalpBot/internal/domain"
)

// Build composes the 0DTE contract symbol for a directional signal:
// underlying, expiry as yymmdd, C or P, and the strike in thousandths padded
// to eight digits. Calls take the strike floored to the next dollar below the
// spot, puts the strike ceiled to the next dollar above, keeping the contract
// at or just in the money.
//
// A neutral signal has no contract; Build returns an empty string for it.
func Build(underlying string, signal domain.Signal, spot float64, now time.Time) string {
	var (
		side   domain.OptionType
		strike float64
	)
	switch signal {
	case domain.Long:
		side = domain.Call
		strike = math.Floor(spot)
	case domain.Short:
		side = domain.Put
		strike = math.Ceil(spot)
	default:
		return ""
	}
	return fmt.Sprintf("%s%s%s%08d", underlying, now.Format("060102"), side, int(strike*1000))
}
