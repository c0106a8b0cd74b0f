package indicators

import (
	"math"

	"optionScalpBot/internal/domain"
)

// RSIBand votes mean-reversion on Wilder's RSI: +1 at or below the long
// level (oversold), -1 at or above the short level (overbought), 0 inside
// the band or during warm-up. Gains and losses are smoothed with
// alpha = 1/length.
func RSIBand(bars []*domain.Bar, length int, longLevel, shortLevel float64) []int {
	votes := make([]int, len(bars))
	if len(bars) < 2 || length <= 0 {
		return votes
	}

	prices := closes(bars)
	up := make([]float64, len(prices))
	down := make([]float64, len(prices))
	up[0], down[0] = math.NaN(), math.NaN()
	for i := 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			up[i] = delta
		} else {
			down[i] = -delta
		}
	}

	alpha := 1 / float64(length)
	avgUp := emaAlpha(up, alpha)
	avgDown := emaAlpha(down, alpha)

	for i := 1; i < len(prices); i++ {
		if math.IsNaN(avgUp[i]) || math.IsNaN(avgDown[i]) {
			continue
		}
		var rsi float64
		switch {
		case avgUp[i] == 0 && avgDown[i] == 0:
			continue
		case avgDown[i] == 0:
			rsi = 100
		default:
			rs := avgUp[i] / avgDown[i]
			rsi = 100 - 100/(1+rs)
		}
		switch {
		case rsi <= longLevel:
			votes[i] = 1
		case rsi >= shortLevel:
			votes[i] = -1
		}
	}
	return votes
}
