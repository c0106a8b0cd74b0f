package indicators

import (
	"math"

	"optionScalpBot/internal/domain"
)

// MACDCross votes on the level of the MACD line against its signal line: +1
// while the line holds above the signal, -1 while below, 0 when equal or
// warming up. Level-based rather than edge-triggered, so an established
// momentum keeps voting across the aggregation window.
func MACDCross(bars []*domain.Bar, fast, slow, signal int) []int {
	votes := make([]int, len(bars))
	if len(bars) == 0 || fast <= 0 || slow <= 0 || signal <= 0 {
		return votes
	}

	prices := closes(bars)
	fastEMA := ema(prices, fast)
	slowEMA := ema(prices, slow)

	line := make([]float64, len(prices))
	for i := range line {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := ema(line, signal)

	for i := range prices {
		if math.IsNaN(line[i]) || math.IsNaN(signalLine[i]) {
			continue
		}
		switch {
		case line[i] > signalLine[i]:
			votes[i] = 1
		case line[i] < signalLine[i]:
			votes[i] = -1
		}
	}
	return votes
}
