// Package indicators implements the technical indicators feeding the signal
// aggregator. Every indicator maps a bar history to a vote series of the same
// length: +1 bullish, -1 bearish, 0 neutral. Bars inside an indicator's
// warm-up window always vote 0.
package indicators

import (
	"math"

	"optionScalpBot/internal/domain"
)

func closes(bars []*domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// wma computes a linearly weighted moving average. Positions before the
// window fills are NaN.
func wma(values []float64, length int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if length <= 0 {
		return out
	}
	denom := float64(length*(length+1)) / 2
	for i := length - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for j := 0; j < length; j++ {
			v := values[i-length+1+j]
			if math.IsNaN(v) {
				ok = false
				break
			}
			sum += v * float64(j+1)
		}
		if ok {
			out[i] = sum / denom
		}
	}
	return out
}

// ema computes an exponential moving average seeded with the first value,
// alpha = 2/(length+1).
func ema(values []float64, length int) []float64 {
	return emaAlpha(values, 2/float64(length+1))
}

// emaAlpha computes an exponential moving average with an explicit smoothing
// factor. The series seeds at the first non-NaN value; everything before it
// stays NaN.
func emaAlpha(values []float64, alpha float64) []float64 {
	out := make([]float64, len(values))
	seeded := false
	prev := 0.0
	for i, v := range values {
		if !seeded {
			out[i] = v
			if !math.IsNaN(v) {
				seeded = true
				prev = v
			}
			continue
		}
		if math.IsNaN(v) {
			out[i] = prev
			continue
		}
		prev = alpha*v + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// rollingMean computes a simple moving average. Positions before the window
// fills are NaN.
func rollingMean(values []float64, length int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if length <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= length {
			sum -= values[i-length]
		}
		if i >= length-1 {
			out[i] = sum / float64(length)
		}
	}
	return out
}
