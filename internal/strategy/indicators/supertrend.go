package indicators

import (
	"math"

	"optionScalpBot/internal/domain"
)

// Supertrend votes with the trend of an ATR-banded trailing channel. Bands
// sit at close +/- multiplier*atr; the support band may only ratchet up while
// price holds above it, the resistance band only down while price holds
// below. The trend flips bullish when a close breaks the resistance band and
// bearish when it breaks the support band.
//
// Votes are 0 until the ATR window fills and a trend direction has been
// established by an actual band break.
func Supertrend(bars []*domain.Bar, atrPeriod int, multiplier float64) []int {
	votes := make([]int, len(bars))
	if len(bars) == 0 || atrPeriod <= 0 {
		return votes
	}

	tr := make([]float64, len(bars))
	for i, b := range bars {
		if i == 0 {
			tr[i] = b.High - b.Low
			continue
		}
		prevClose := bars[i-1].Close
		tr[i] = math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
	}
	atr := rollingMean(tr, atrPeriod)

	var (
		prevSupport = math.NaN()
		prevResist  = math.NaN()
		trend       = 0
	)
	for i, b := range bars {
		if math.IsNaN(atr[i]) {
			continue
		}
		support := b.Close - multiplier*atr[i]
		resist := b.Close + multiplier*atr[i]

		if !math.IsNaN(prevSupport) && bars[i-1].Close > prevSupport {
			support = math.Max(support, prevSupport)
		}
		if !math.IsNaN(prevResist) && bars[i-1].Close < prevResist {
			resist = math.Min(resist, prevResist)
		}

		switch {
		case !math.IsNaN(prevResist) && b.Close > prevResist:
			trend = 1
		case !math.IsNaN(prevSupport) && b.Close < prevSupport:
			trend = -1
		}

		votes[i] = trend
		prevSupport = support
		prevResist = resist
	}
	return votes
}
