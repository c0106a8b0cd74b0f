package risk

import (
	"context"
	"sync"
	"testing"
	"time"

	"optionScalpBot/internal/domain"
	"optionScalpBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type fakeUnsubscriber struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeUnsubscriber) Unsubscribe(ctx context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, symbol)
	return nil
}

func (f *fakeUnsubscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeReporter struct {
	mu     sync.Mutex
	events []*domain.ExitEvent
}

func (f *fakeReporter) ExitFired(ctx context.Context, event *domain.ExitEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeReporter) captured() []*domain.ExitEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.ExitEvent(nil), f.events...)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func defaultTiers() TierConfig {
	return TierConfig{
		TP1Pct:      0.20,
		TP1Size:     0.50,
		TP2Pct:      0.40,
		TP2Size:     0.25,
		TrailingPct: 0.10,
		HardStopPct: 0.20,
		MaxHold:     420 * time.Second,
	}
}

func newTestTracker(t *testing.T) (*Tracker, *fakeUnsubscriber, *fakeReporter, *fakeClock) {
	t.Helper()
	unsub := &fakeUnsubscriber{}
	rep := &fakeReporter{}
	clock := &fakeClock{now: time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC)}
	tracker, err := New(Config{
		Tiers:        defaultTiers(),
		Logger:       nopLogger{},
		Unsubscriber: unsub,
		Reporter:     rep,
		Now:          clock.Now,
	})
	require.NoError(t, err)
	return tracker, unsub, rep, clock
}

const sym = "SPY260828C00640000"

func TestTierConfigValidate(t *testing.T) {
	require.NoError(t, defaultTiers().Validate())

	bad := defaultTiers()
	bad.TP2Pct = 0.10 // Below TP1
	assert.ErrorIs(t, bad.Validate(), ports.ErrInvalidTierConfig)

	bad = defaultTiers()
	bad.TP1Size = 0.80 // No runner left
	assert.ErrorIs(t, bad.Validate(), ports.ErrInvalidTierConfig)

	bad = defaultTiers()
	bad.MaxHold = 0
	assert.ErrorIs(t, bad.Validate(), ports.ErrInvalidTierConfig)
}

func TestTrackRejectsSecondPosition(t *testing.T) {
	tracker, _, _, _ := newTestTracker(t)
	require.NoError(t, tracker.Track(context.Background(), sym, 100))

	err := tracker.Track(context.Background(), "SPY260828P00630000", 100)
	assert.ErrorIs(t, err, ports.ErrPositionOpen)
}

func TestUntrackedSymbolTicksAreIgnored(t *testing.T) {
	tracker, unsub, rep, clock := newTestTracker(t)
	require.NoError(t, tracker.Track(context.Background(), sym, 100))

	tracker.HandleTick("SPY260828P00630000", 10, clock.Now())
	assert.True(t, tracker.Active())
	assert.Empty(t, rep.captured())
	assert.Zero(t, unsub.count())
}

// Entry at 100: a tick at 121 fills TP1 and moves the stop to breakeven,
// then a tick at 95 closes the rest at the breakeven stop.
func TestTakeProfitOneThenBreakevenStop(t *testing.T) {
	tracker, unsub, rep, clock := newTestTracker(t)
	require.NoError(t, tracker.Track(context.Background(), sym, 100))

	clock.advance(10 * time.Second)
	tracker.HandleTick(sym, 121, clock.Now())

	events := rep.captured()
	require.Len(t, events, 1)
	assert.Equal(t, domain.CloseReasonTakeProfit1, events[0].Reason)
	assert.InDelta(t, 0.50, events[0].Fraction, 1e-9)
	assert.False(t, events[0].Final)

	status := tracker.Status()
	require.NotNil(t, status)
	assert.False(t, status.TP1Pending)
	assert.True(t, status.TP2Pending)
	assert.True(t, status.StopAtBreakeven)
	assert.InDelta(t, 0.50, status.RemainingFraction, 1e-9)

	clock.advance(10 * time.Second)
	tracker.HandleTick(sym, 95, clock.Now())

	events = rep.captured()
	require.Len(t, events, 2)
	assert.Equal(t, domain.CloseReasonBreakevenStop, events[1].Reason)
	assert.InDelta(t, 0.50, events[1].Fraction, 1e-9)
	assert.True(t, events[1].Final)
	assert.False(t, tracker.Active())
	assert.Equal(t, 1, unsub.count())
}

// Entry at 100: TP1 at 121, TP2 at 141, high-water mark ratchets to 150,
// then 134 breaches the 10% trailing stop (135) and closes the runner.
func TestTrailingStopAfterSecondTakeProfit(t *testing.T) {
	tracker, unsub, rep, clock := newTestTracker(t)
	require.NoError(t, tracker.Track(context.Background(), sym, 100))

	tracker.HandleTick(sym, 121, clock.Now())
	tracker.HandleTick(sym, 141, clock.Now())
	tracker.HandleTick(sym, 150, clock.Now())
	tracker.HandleTick(sym, 134, clock.Now())

	events := rep.captured()
	require.Len(t, events, 3)
	assert.Equal(t, domain.CloseReasonTakeProfit1, events[0].Reason)
	assert.Equal(t, domain.CloseReasonTakeProfit2, events[1].Reason)
	assert.InDelta(t, 0.25, events[1].Fraction, 1e-9)
	assert.Equal(t, domain.CloseReasonTrailingStop, events[2].Reason)
	assert.InDelta(t, 0.25, events[2].Fraction, 1e-9)
	assert.InDelta(t, 150, events[2].HighWaterMark, 1e-9)
	assert.True(t, events[2].Final)
	assert.False(t, tracker.Active())
	assert.Equal(t, 1, unsub.count())
}

// A tick jumping straight past both tiers fires only the first matching rule.
func TestOneExitActionPerTick(t *testing.T) {
	tracker, _, rep, clock := newTestTracker(t)
	require.NoError(t, tracker.Track(context.Background(), sym, 100))

	tracker.HandleTick(sym, 141, clock.Now())
	events := rep.captured()
	require.Len(t, events, 1)
	assert.Equal(t, domain.CloseReasonTakeProfit1, events[0].Reason)

	// The next tick at the same level picks up TP2.
	tracker.HandleTick(sym, 141, clock.Now())
	events = rep.captured()
	require.Len(t, events, 2)
	assert.Equal(t, domain.CloseReasonTakeProfit2, events[1].Reason)
}

func TestHardStopBeforeFirstTakeProfit(t *testing.T) {
	tracker, unsub, rep, clock := newTestTracker(t)
	require.NoError(t, tracker.Track(context.Background(), sym, 100))

	tracker.HandleTick(sym, 80, clock.Now())

	events := rep.captured()
	require.Len(t, events, 1)
	assert.Equal(t, domain.CloseReasonHardStop, events[0].Reason)
	assert.InDelta(t, 1.0, events[0].Fraction, 1e-9)
	assert.True(t, events[0].Final)
	assert.False(t, tracker.Active())
	assert.Equal(t, 1, unsub.count())
}

func TestTimeLimitClosesEverything(t *testing.T) {
	tracker, unsub, rep, clock := newTestTracker(t)
	require.NoError(t, tracker.Track(context.Background(), sym, 100))

	tracker.HandleTick(sym, 121, clock.Now()) // TP1 fills first

	clock.advance(420 * time.Second)
	tracker.HandleTick(sym, 110, clock.Now())

	events := rep.captured()
	require.Len(t, events, 2)
	assert.Equal(t, domain.CloseReasonTimeLimit, events[1].Reason)
	assert.InDelta(t, 0.50, events[1].Fraction, 1e-9)
	assert.Equal(t, 420*time.Second, events[1].Elapsed)
	assert.True(t, events[1].Final)
	assert.False(t, tracker.Active())
	assert.Equal(t, 1, unsub.count())
}

// The time limit outranks every price rule on the same tick.
func TestTimeLimitWinsOverTakeProfit(t *testing.T) {
	tracker, _, rep, clock := newTestTracker(t)
	require.NoError(t, tracker.Track(context.Background(), sym, 100))

	clock.advance(421 * time.Second)
	tracker.HandleTick(sym, 121, clock.Now())

	events := rep.captured()
	require.Len(t, events, 1)
	assert.Equal(t, domain.CloseReasonTimeLimit, events[0].Reason)
	assert.InDelta(t, 1.0, events[0].Fraction, 1e-9)
}

func TestHighWaterMarkNeverDecreases(t *testing.T) {
	tracker, _, _, clock := newTestTracker(t)
	require.NoError(t, tracker.Track(context.Background(), sym, 100))

	tracker.HandleTick(sym, 110, clock.Now())
	tracker.HandleTick(sym, 105, clock.Now())

	status := tracker.Status()
	require.NotNil(t, status)
	assert.InDelta(t, 110, status.HighWaterMark, 1e-9)
}

// Before TP2 fills, a pullback from the high-water mark must not trigger the
// trailing rule; the breakeven stop is the active downside protection.
func TestTrailingInactiveUntilSecondTakeProfit(t *testing.T) {
	tracker, _, rep, clock := newTestTracker(t)
	require.NoError(t, tracker.Track(context.Background(), sym, 100))

	tracker.HandleTick(sym, 121, clock.Now()) // TP1
	tracker.HandleTick(sym, 130, clock.Now()) // HWM 130
	tracker.HandleTick(sym, 115, clock.Now()) // 115 <= 130*0.9=117, but TP2 still pending

	events := rep.captured()
	require.Len(t, events, 1)
	assert.True(t, tracker.Active())
}

func TestTrackAllowsNewPositionAfterClose(t *testing.T) {
	tracker, _, _, clock := newTestTracker(t)
	require.NoError(t, tracker.Track(context.Background(), sym, 100))
	tracker.HandleTick(sym, 80, clock.Now())
	require.False(t, tracker.Active())

	require.NoError(t, tracker.Track(context.Background(), "SPY260828P00630000", 50))
	assert.True(t, tracker.Active())
}
