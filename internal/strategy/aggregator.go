// Package strategy turns bar histories into directional trade signals by
// polling a fixed panel of indicators and combining their recent votes.
package strategy

import (
	"context"
	"fmt"

	"optionScalpBot/internal/domain"
	"optionScalpBot/internal/ports"
	"optionScalpBot/internal/strategy/indicators"
)

// Config holds the indicator parameters and the aggregation window.
type Config struct {
	Lookback int // Trailing bars whose votes feed the combiner

	EMAShort  int
	EMALong   int
	HMAPeriod int

	SupertrendATRPeriod  int
	SupertrendMultiplier float64

	MACDFast   int
	MACDSlow   int
	MACDSignal int

	RSILength int
	RSILower  float64
	RSIUpper  float64
}

// Validate checks the aggregation parameters.
func (c Config) Validate() error {
	if c.Lookback <= 0 {
		return fmt.Errorf("lookback must be positive: %w", ports.ErrConfigurationError)
	}
	if c.EMAShort <= 0 || c.EMALong <= c.EMAShort {
		return fmt.Errorf("EMA periods must satisfy 0 < short < long: %w", ports.ErrConfigurationError)
	}
	if c.HMAPeriod < 2 {
		return fmt.Errorf("HMA period must be at least 2: %w", ports.ErrConfigurationError)
	}
	if c.SupertrendATRPeriod <= 0 || c.SupertrendMultiplier <= 0 {
		return fmt.Errorf("supertrend parameters must be positive: %w", ports.ErrConfigurationError)
	}
	if c.MACDFast <= 0 || c.MACDSlow <= c.MACDFast || c.MACDSignal <= 0 {
		return fmt.Errorf("MACD periods must satisfy 0 < fast < slow with a positive signal: %w", ports.ErrConfigurationError)
	}
	if c.RSILength <= 0 || c.RSILower >= c.RSIUpper {
		return fmt.Errorf("RSI band must satisfy lower < upper with a positive length: %w", ports.ErrConfigurationError)
	}
	return nil
}

// VoteMatrix is the per-indicator vote series over a bar history, one column
// per indicator, aligned to the bars that produced them.
type VoteMatrix struct {
	Indicators []string
	Columns    [][]int
}

// window returns the trailing n rows of every column, shorter when the
// history itself is shorter.
func (m *VoteMatrix) window(n int) [][]int {
	out := make([][]int, len(m.Columns))
	for i, col := range m.Columns {
		start := len(col) - n
		if start < 0 {
			start = 0
		}
		out[i] = col[start:]
	}
	return out
}

// Combiner folds a vote matrix into a single directional signal.
type Combiner interface {
	Name() string
	Combine(m *VoteMatrix, lookback int) domain.Signal
}

// MajorityCombiner sums every vote inside the lookback window and compares
// the total against a symmetric threshold.
type MajorityCombiner struct {
	Threshold int
}

func (c MajorityCombiner) Name() string { return "majority" }

func (c MajorityCombiner) Combine(m *VoteMatrix, lookback int) domain.Signal {
	total := 0
	for _, col := range m.window(lookback) {
		for _, v := range col {
			total += v
		}
	}
	switch {
	case total >= c.Threshold:
		return domain.Long
	case total <= -c.Threshold:
		return domain.Short
	default:
		return domain.Neutral
	}
}

// UnanimousCombiner requires every indicator to cast at least one vote
// inside the lookback window, with no dissenting vote anywhere in it.
type UnanimousCombiner struct{}

func (UnanimousCombiner) Name() string { return "unanimous" }

func (UnanimousCombiner) Combine(m *VoteMatrix, lookback int) domain.Signal {
	dir := 0
	for _, col := range m.window(lookback) {
		colDir := 0
		for _, v := range col {
			if v == 0 {
				continue
			}
			if colDir == 0 {
				colDir = v
			} else if v != colDir {
				return domain.Neutral
			}
		}
		if colDir == 0 {
			// An indicator that never voted cannot agree.
			return domain.Neutral
		}
		if dir == 0 {
			dir = colDir
		} else if colDir != dir {
			return domain.Neutral
		}
	}
	return domain.Signal(dir)
}

// Aggregator runs the indicator panel over a bar history and hands the votes
// to its combiner.
type Aggregator struct {
	cfg      Config
	combiner Combiner
	logger   ports.Logger
}

// New creates a new signal aggregator.
func New(cfg Config, combiner Combiner, logger ports.Logger) (*Aggregator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for signal aggregator")
	}
	if combiner == nil {
		return nil, fmt.Errorf("combiner is required for signal aggregator")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{cfg: cfg, combiner: combiner, logger: logger}, nil
}

// RequiredDataPoints is the minimum bar history for every indicator to be
// fully warm across the whole lookback window.
func (a *Aggregator) RequiredDataPoints() int {
	deepest := a.cfg.EMALong
	if v := a.cfg.HMAPeriod * 2; v > deepest {
		deepest = v
	}
	if v := a.cfg.SupertrendATRPeriod + 1; v > deepest {
		deepest = v
	}
	if v := a.cfg.MACDSlow + a.cfg.MACDSignal; v > deepest {
		deepest = v
	}
	if v := a.cfg.RSILength + 1; v > deepest {
		deepest = v
	}
	return deepest + a.cfg.Lookback
}

// Votes runs the indicator panel over the bar history.
func (a *Aggregator) Votes(bars []*domain.Bar) *VoteMatrix {
	return &VoteMatrix{
		Indicators: []string{"hull", "ema_cross", "supertrend", "macd", "rsi"},
		Columns: [][]int{
			indicators.HullMA(bars, a.cfg.HMAPeriod),
			indicators.EMACross(bars, a.cfg.EMAShort, a.cfg.EMALong),
			indicators.Supertrend(bars, a.cfg.SupertrendATRPeriod, a.cfg.SupertrendMultiplier),
			indicators.MACDCross(bars, a.cfg.MACDFast, a.cfg.MACDSlow, a.cfg.MACDSignal),
			indicators.RSIBand(bars, a.cfg.RSILength, a.cfg.RSILower, a.cfg.RSIUpper),
		},
	}
}

// Signal computes the aggregate directional signal for a bar history. An
// empty history is neutral.
func (a *Aggregator) Signal(ctx context.Context, bars []*domain.Bar) domain.Signal {
	if len(bars) == 0 {
		return domain.Neutral
	}
	m := a.Votes(bars)
	signal := a.combiner.Combine(m, a.cfg.Lookback)

	latest := make(map[string]int, len(m.Indicators))
	for i, name := range m.Indicators {
		if col := m.Columns[i]; len(col) > 0 {
			latest[name] = col[len(col)-1]
		}
	}
	a.logger.Debug(ctx, "Aggregated signal", map[string]interface{}{
		"signal":   signal.String(),
		"combiner": a.combiner.Name(),
		"lookback": a.cfg.Lookback,
		"votes":    latest,
	})
	return signal
}
