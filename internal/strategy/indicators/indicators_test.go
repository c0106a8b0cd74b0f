package indicators

import (
	"testing"
	"time"

	"optionScalpBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barsFromCloses(closes ...float64) []*domain.Bar {
	start := time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC)
	out := make([]*domain.Bar, len(closes))
	for i, c := range closes {
		out[i] = &domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Symbol:    "SPY",
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}

func TestHullMAWarmupVotesZero(t *testing.T) {
	votes := HullMA(barsFromCloses(1, 2, 3, 4), 4)
	assert.Equal(t, []int{0, 0, 0, 0}, votes)
}

func TestHullMAFollowsSlope(t *testing.T) {
	rising := HullMA(barsFromCloses(1, 2, 3, 4, 5, 6, 7, 8, 9, 10), 4)
	require.Len(t, rising, 10)
	assert.Equal(t, 1, rising[9], "rising closes must vote bullish once warm")

	falling := HullMA(barsFromCloses(10, 9, 8, 7, 6, 5, 4, 3, 2, 1), 4)
	assert.Equal(t, -1, falling[9], "falling closes must vote bearish once warm")
}

func TestEMACrossFiresOnlyOnTheCrossingBar(t *testing.T) {
	votes := EMACross(barsFromCloses(10, 10, 10, 10, 20, 30, 30, 30), 2, 4)
	assert.Equal(t, 1, votes[4], "short average crosses above on the jump bar")
	assert.Equal(t, 0, votes[5], "no repeat vote while the averages stay apart")
	assert.Equal(t, 0, votes[0])
}

func TestEMACrossDownward(t *testing.T) {
	votes := EMACross(barsFromCloses(30, 30, 30, 30, 10, 5, 5, 5), 2, 4)
	assert.Equal(t, -1, votes[4])
	assert.Equal(t, 0, votes[5])
}

func TestMACDCrossHoldsLevelVote(t *testing.T) {
	votes := MACDCross(barsFromCloses(1, 2, 3, 4, 5, 6, 7, 8, 9, 10), 3, 6, 3)
	assert.Equal(t, 0, votes[0], "identical seeds vote neutral")
	assert.Equal(t, 1, votes[8], "sustained uptrend keeps voting bullish")
	assert.Equal(t, 1, votes[9])
}

func TestMACDCrossBearish(t *testing.T) {
	votes := MACDCross(barsFromCloses(10, 9, 8, 7, 6, 5, 4, 3, 2, 1), 3, 6, 3)
	assert.Equal(t, -1, votes[9])
}

func TestRSIBandExtremes(t *testing.T) {
	rising := RSIBand(barsFromCloses(1, 2, 3, 4, 5, 6), 3, 40, 60)
	assert.Equal(t, 0, rising[0], "no delta exists for the first bar")
	assert.Equal(t, -1, rising[5], "all gains push RSI to 100, deep overbought")

	falling := RSIBand(barsFromCloses(6, 5, 4, 3, 2, 1), 3, 40, 60)
	assert.Equal(t, 1, falling[5], "all losses push RSI to 0, deep oversold")
}

func TestRSIBandFlatSeriesVotesZero(t *testing.T) {
	votes := RSIBand(barsFromCloses(5, 5, 5, 5, 5), 3, 40, 60)
	assert.Equal(t, []int{0, 0, 0, 0, 0}, votes)
}

func TestSupertrendWarmupAndTrend(t *testing.T) {
	up := Supertrend(barsFromCloses(10, 12, 14, 16), 2, 1)
	assert.Equal(t, 0, up[0], "no ATR yet")
	assert.Equal(t, 0, up[1], "seed bar has no established trend")
	assert.Equal(t, 1, up[2], "close above the prior resistance flips bullish")
	assert.Equal(t, 1, up[3])

	down := Supertrend(barsFromCloses(16, 14, 12, 10), 2, 1)
	assert.Equal(t, -1, down[2], "close below the prior support flips bearish")
	assert.Equal(t, -1, down[3])
}
