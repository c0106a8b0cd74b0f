package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"optionScalpBot/internal/domain"
	"optionScalpBot/internal/ports"
)

// TierConfig holds the tiered exit parameters for a tracked position.
// Percentages are fractions of the entry price (0.20 means 20%).
type TierConfig struct {
	TP1Pct      float64       // Gain that triggers the first partial take-profit
	TP1Size     float64       // Fraction of the position closed at TP1
	TP2Pct      float64       // Gain that triggers the second partial take-profit
	TP2Size     float64       // Fraction of the position closed at TP2
	TrailingPct float64       // Pullback from the high-water mark that closes the runner
	HardStopPct float64       // Loss from entry that closes everything before TP1
	MaxHold     time.Duration // Longest a position may stay open
}

// Validate checks the tier parameters for consistency.
func (c TierConfig) Validate() error {
	if c.TP1Pct <= 0 || c.TP2Pct <= 0 {
		return fmt.Errorf("take-profit percentages must be positive: %w", ports.ErrInvalidTierConfig)
	}
	if c.TP2Pct <= c.TP1Pct {
		return fmt.Errorf("second tier (%.2f) must sit above the first (%.2f): %w", c.TP2Pct, c.TP1Pct, ports.ErrInvalidTierConfig)
	}
	if c.TP1Size <= 0 || c.TP2Size <= 0 || c.TP1Size+c.TP2Size >= 1 {
		return fmt.Errorf("tier sizes must be positive and leave a runner: %w", ports.ErrInvalidTierConfig)
	}
	if c.TrailingPct <= 0 || c.TrailingPct >= 1 {
		return fmt.Errorf("trailing stop must be a fraction in (0,1): %w", ports.ErrInvalidTierConfig)
	}
	if c.HardStopPct <= 0 || c.HardStopPct >= 1 {
		return fmt.Errorf("hard stop must be a fraction in (0,1): %w", ports.ErrInvalidTierConfig)
	}
	if c.MaxHold <= 0 {
		return fmt.Errorf("max hold duration must be positive: %w", ports.ErrInvalidTierConfig)
	}
	return nil
}

// TrailingSize is the runner fraction left after both take-profits fill.
func (c TierConfig) TrailingSize() float64 {
	return 1 - c.TP1Size - c.TP2Size
}

// position is the per-symbol exit state. Each flag flips true to false
// exactly once; the position is destroyed when all three are false.
type position struct {
	symbol     string
	entryPrice float64
	highWater  float64
	entryTime  time.Time
	cfg        TierConfig

	tp1Active       bool
	tp2Active       bool
	trailingActive  bool
	stopAtBreakeven bool
}

// remainingFraction is the share of the position still open.
func (p *position) remainingFraction() float64 {
	frac := 0.0
	if p.tp1Active {
		frac += p.cfg.TP1Size
	}
	if p.tp2Active {
		frac += p.cfg.TP2Size
	}
	if p.trailingActive {
		frac += p.cfg.TrailingSize()
	}
	return frac
}

// stopLevel is the downside stop active while either take-profit is pending:
// breakeven once TP1 has filled, the hard stop before that.
func (p *position) stopLevel() float64 {
	if p.stopAtBreakeven {
		return p.entryPrice
	}
	return p.entryPrice * (1 - p.cfg.HardStopPct)
}

// PositionStatus is a read-only snapshot of a tracked position.
type PositionStatus struct {
	Symbol            string
	EntryPrice        float64
	HighWaterMark     float64
	Elapsed           time.Duration
	MaxHold           time.Duration
	TP1Pending        bool
	TP2Pending        bool
	TrailingPending   bool
	StopAtBreakeven   bool
	RemainingFraction float64
}

// Config holds the dependencies of the exit tracker.
type Config struct {
	Tiers        TierConfig
	Logger       ports.Logger
	Unsubscriber ports.Unsubscriber
	Reporter     ports.ExitReporter // Optional exit journal
	Now          func() time.Time   // Optional clock override
}

// Tracker drives the tiered exit state machine for the open option position.
// It consumes mid-price ticks from the quote stream, fires at most one exit
// action per tick, and unsubscribes the symbol exactly once when the position
// is fully closed.
type Tracker struct {
	mu        sync.Mutex
	positions map[string]*position

	tiers        TierConfig
	logger       ports.Logger
	unsubscriber ports.Unsubscriber
	reporter     ports.ExitReporter
	now          func() time.Time
}

// New creates a new exit tracker.
func New(cfg Config) (*Tracker, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for exit tracker")
	}
	if cfg.Unsubscriber == nil {
		return nil, fmt.Errorf("unsubscriber is required for exit tracker")
	}
	if err := cfg.Tiers.Validate(); err != nil {
		return nil, err
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		positions:    make(map[string]*position),
		tiers:        cfg.Tiers,
		logger:       cfg.Logger,
		unsubscriber: cfg.Unsubscriber,
		reporter:     cfg.Reporter,
		now:          now,
	}, nil
}

// Track starts exit management for a freshly opened position. One position at
// a time: a second Track while any position is live returns
// ports.ErrPositionOpen.
func (t *Tracker) Track(ctx context.Context, symbol string, entryPrice float64) error {
	op := "Track"
	if entryPrice <= 0 {
		return fmt.Errorf("%s: entry price must be positive: %w", op, ports.ErrInvalidRequest)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.positions) > 0 {
		return fmt.Errorf("%s: a position is already being managed: %w", op, ports.ErrPositionOpen)
	}
	t.positions[symbol] = &position{
		symbol:         symbol,
		entryPrice:     entryPrice,
		highWater:      entryPrice,
		entryTime:      t.now(),
		cfg:            t.tiers,
		tp1Active:      true,
		tp2Active:      true,
		trailingActive: true,
	}
	t.logger.Info(ctx, "Tracking position exits", map[string]interface{}{
		"symbol":   symbol,
		"entry":    entryPrice,
		"tp1":      entryPrice * (1 + t.tiers.TP1Pct),
		"tp2":      entryPrice * (1 + t.tiers.TP2Pct),
		"hardStop": entryPrice * (1 - t.tiers.HardStopPct),
		"maxHold":  t.tiers.MaxHold.String(),
	})
	return nil
}

// Active reports whether any position is currently tracked.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.positions) > 0
}

// Status returns a snapshot of the tracked position, or nil when flat.
func (t *Tracker) Status() *PositionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.positions {
		return &PositionStatus{
			Symbol:            p.symbol,
			EntryPrice:        p.entryPrice,
			HighWaterMark:     p.highWater,
			Elapsed:           t.now().Sub(p.entryTime),
			MaxHold:           p.cfg.MaxHold,
			TP1Pending:        p.tp1Active,
			TP2Pending:        p.tp2Active,
			TrailingPending:   p.trailingActive,
			StopAtBreakeven:   p.stopAtBreakeven,
			RemainingFraction: p.remainingFraction(),
		}
	}
	return nil
}

// HandleTick evaluates the exit rules against one mid-price tick. Ticks for
// untracked symbols are ignored. Rules are checked in a fixed order and the
// first match wins; at most one exit fires per tick.
func (t *Tracker) HandleTick(symbol string, price float64, ts time.Time) {
	ctx := context.Background()

	t.mu.Lock()
	p, ok := t.positions[symbol]
	if !ok {
		t.mu.Unlock()
		return
	}

	// The high-water mark ratchets up on every tick, before any rule runs.
	if price > p.highWater {
		p.highWater = price
	}
	elapsed := t.now().Sub(p.entryTime)

	var event *domain.ExitEvent
	switch {
	case elapsed >= p.cfg.MaxHold:
		event = t.newEvent(p, domain.CloseReasonTimeLimit, price, p.remainingFraction(), elapsed)
		p.tp1Active, p.tp2Active, p.trailingActive = false, false, false

	case p.tp1Active && price >= p.entryPrice*(1+p.cfg.TP1Pct):
		event = t.newEvent(p, domain.CloseReasonTakeProfit1, price, p.cfg.TP1Size, elapsed)
		p.tp1Active = false
		p.stopAtBreakeven = true

	case p.tp2Active && price >= p.entryPrice*(1+p.cfg.TP2Pct):
		event = t.newEvent(p, domain.CloseReasonTakeProfit2, price, p.cfg.TP2Size, elapsed)
		p.tp2Active = false

	case (p.tp1Active || p.tp2Active) && price <= p.stopLevel():
		reason := domain.CloseReasonHardStop
		if p.stopAtBreakeven {
			reason = domain.CloseReasonBreakevenStop
		}
		event = t.newEvent(p, reason, price, p.remainingFraction(), elapsed)
		p.tp1Active, p.tp2Active, p.trailingActive = false, false, false

	case p.trailingActive && !p.tp2Active && price <= p.highWater*(1-p.cfg.TrailingPct):
		event = t.newEvent(p, domain.CloseReasonTrailingStop, price, p.remainingFraction(), elapsed)
		p.trailingActive = false
	}

	destroyed := !p.tp1Active && !p.tp2Active && !p.trailingActive
	if destroyed {
		delete(t.positions, symbol)
	}
	t.mu.Unlock()

	if event == nil {
		return
	}
	event.Final = destroyed

	t.logger.Info(ctx, "Exit fired", map[string]interface{}{
		"symbol":    event.Symbol,
		"reason":    string(event.Reason),
		"price":     event.Price,
		"fraction":  event.Fraction,
		"highWater": event.HighWaterMark,
		"elapsed":   event.Elapsed.String(),
		"final":     event.Final,
	})
	if t.reporter != nil {
		t.reporter.ExitFired(ctx, event)
	}
	if destroyed {
		// Exactly one unsubscribe per position lifetime, issued after the
		// tracker lock is released.
		if err := t.unsubscriber.Unsubscribe(ctx, symbol); err != nil {
			t.logger.Warn(ctx, "Failed to unsubscribe closed position", map[string]interface{}{"symbol": symbol, "error": err.Error()})
		}
	}
}

func (t *Tracker) newEvent(p *position, reason domain.CloseReason, price, fraction float64, elapsed time.Duration) *domain.ExitEvent {
	return &domain.ExitEvent{
		Symbol:        p.symbol,
		Reason:        reason,
		Price:         price,
		EntryPrice:    p.entryPrice,
		HighWaterMark: p.highWater,
		Fraction:      fraction,
		Elapsed:       elapsed,
		FiredAt:       t.now(),
	}
}
