package indicators

import (
	"math"

	"optionScalpBot/internal/domain"
)

// EMACross votes on crossings of a short EMA over a long EMA. The vote is
// edge-triggered: +1 only on the bar where the short average crosses above
// the long one, -1 only on the bar where it crosses below, 0 everywhere else.
func EMACross(bars []*domain.Bar, short, long int) []int {
	votes := make([]int, len(bars))
	if len(bars) == 0 || short <= 0 || long <= 0 {
		return votes
	}

	prices := closes(bars)
	fast := ema(prices, short)
	slow := ema(prices, long)

	for i := 1; i < len(prices); i++ {
		if math.IsNaN(fast[i]) || math.IsNaN(slow[i]) || math.IsNaN(fast[i-1]) || math.IsNaN(slow[i-1]) {
			continue
		}
		diff := fast[i] - slow[i]
		prev := fast[i-1] - slow[i-1]
		switch {
		case diff > 0 && prev <= 0:
			votes[i] = 1
		case diff < 0 && prev >= 0:
			votes[i] = -1
		}
	}
	return votes
}
