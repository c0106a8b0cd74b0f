package indicators

import (
	"math"

	"optionScalpBot/internal/domain"
)

// HullMA votes on the slope of the Hull moving average:
//
//	hma = wma(2*wma(close, length/2) - wma(close, length), sqrt(length))
//
// A bar votes +1 when the average sits above its value two bars prior, -1
// when below, 0 when flat or still warming up.
func HullMA(bars []*domain.Bar, length int) []int {
	votes := make([]int, len(bars))
	if length < 2 || len(bars) == 0 {
		return votes
	}

	prices := closes(bars)
	half := wma(prices, length/2)
	full := wma(prices, length)

	raw := make([]float64, len(prices))
	for i := range raw {
		raw[i] = 2*half[i] - full[i]
	}
	hma := wma(raw, int(math.Sqrt(float64(length))))

	for i := 2; i < len(hma); i++ {
		if math.IsNaN(hma[i]) || math.IsNaN(hma[i-2]) {
			continue
		}
		switch {
		case hma[i] > hma[i-2]:
			votes[i] = 1
		case hma[i] < hma[i-2]:
			votes[i] = -1
		}
	}
	return votes
}
