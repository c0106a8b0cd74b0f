package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"optionScalpBot/internal/domain"
	"optionScalpBot/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockMarketData struct {
	history   []*domain.Bar
	latest    *domain.Bar
	latestErr error
}

func (m *mockMarketData) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Bar, error) {
	return m.history, nil
}

func (m *mockMarketData) FetchLatest(ctx context.Context, symbol string) (*domain.Bar, error) {
	return m.latest, m.latestErr
}

type mockQuotes struct {
	mid float64
	err error
}

func (m *mockQuotes) LatestMid(ctx context.Context, symbol string) (float64, error) {
	return m.mid, m.err
}

type mockOrders struct {
	longs, shorts int
	err           error
}

func (m *mockOrders) OpenLong(ctx context.Context) error  { m.longs++; return m.err }
func (m *mockOrders) OpenShort(ctx context.Context) error { m.shorts++; return m.err }

type mockStream struct {
	subscribed   []string
	unsubscribed []string
	subscribeErr error
}

func (m *mockStream) ConnectWithRetry(ctx context.Context) error { return nil }
func (m *mockStream) Listen(ctx context.Context) error           { return nil }
func (m *mockStream) Disconnect() error                          { return nil }

func (m *mockStream) Subscribe(ctx context.Context, symbol string) error {
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.subscribed = append(m.subscribed, symbol)
	return nil
}

func (m *mockStream) Unsubscribe(ctx context.Context, symbol string) error {
	m.unsubscribed = append(m.unsubscribed, symbol)
	return nil
}

type mockTracker struct {
	active  bool
	tracked []string
	entries []float64
}

func (m *mockTracker) Track(ctx context.Context, symbol string, entryPrice float64) error {
	m.tracked = append(m.tracked, symbol)
	m.entries = append(m.entries, entryPrice)
	return nil
}

func (m *mockTracker) Active() bool                 { return m.active }
func (m *mockTracker) Status() *risk.PositionStatus { return nil }

type mockSignals struct {
	required int
	signal   domain.Signal
}

func (m *mockSignals) RequiredDataPoints() int { return m.required }
func (m *mockSignals) Signal(ctx context.Context, bars []*domain.Bar) domain.Signal {
	return m.signal
}

type fixture struct {
	service *TradingService
	market  *mockMarketData
	quotes  *mockQuotes
	orders  *mockOrders
	stream  *mockStream
	tracker *mockTracker
	signals *mockSignals
}

var testNow = time.Date(2026, 8, 28, 14, 45, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		market: &mockMarketData{
			latest: &domain.Bar{Timestamp: testNow, Symbol: "SPY", Close: 640.73},
		},
		quotes:  &mockQuotes{mid: 1.00},
		orders:  &mockOrders{},
		stream:  &mockStream{},
		tracker: &mockTracker{},
		signals: &mockSignals{required: 1, signal: domain.Neutral},
	}
	svc, err := NewTradingService(Config{
		Underlying: "SPY",
		HistoryWindow: func(now time.Time) (time.Time, time.Time, error) {
			return now.Add(-time.Hour), now, nil
		},
		Logger:       nopLogger{},
		MarketData:   f.market,
		OptionQuotes: f.quotes,
		Orders:       f.orders,
		Stream:       f.stream,
		Tracker:      f.tracker,
		Signals:      f.signals,
		Now:          func() time.Time { return testNow },
	})
	require.NoError(t, err)
	f.service = svc
	return f
}

func TestNewTradingServiceRequiresDependencies(t *testing.T) {
	_, err := NewTradingService(Config{Logger: nopLogger{}, Underlying: "SPY"})
	assert.Error(t, err)

	_, err = NewTradingService(Config{})
	assert.Error(t, err)
}

func TestRunCycleEntersOnLongSignal(t *testing.T) {
	f := newFixture(t)
	f.signals.signal = domain.Long

	f.service.runCycle(context.Background())

	assert.Equal(t, 1, f.orders.longs)
	assert.Equal(t, 0, f.orders.shorts)
	require.Equal(t, []string{"SPY260828C00640000"}, f.stream.subscribed)
	require.Equal(t, []string{"SPY260828C00640000"}, f.tracker.tracked)
	assert.InDelta(t, 1.00, f.tracker.entries[0], 1e-9)
}

func TestRunCycleEntersOnShortSignal(t *testing.T) {
	f := newFixture(t)
	f.signals.signal = domain.Short

	f.service.runCycle(context.Background())

	assert.Equal(t, 1, f.orders.shorts)
	require.Equal(t, []string{"SPY260828P00641000"}, f.stream.subscribed)
	require.Len(t, f.tracker.tracked, 1)
}

func TestRunCycleNeutralSignalDoesNothing(t *testing.T) {
	f := newFixture(t)

	f.service.runCycle(context.Background())

	assert.Zero(t, f.orders.longs+f.orders.shorts)
	assert.Empty(t, f.stream.subscribed)
	assert.Empty(t, f.tracker.tracked)
}

func TestRunCycleSkipsEntryWhilePositionOpen(t *testing.T) {
	f := newFixture(t)
	f.signals.signal = domain.Long
	f.tracker.active = true

	f.service.runCycle(context.Background())

	assert.Zero(t, f.orders.longs)
	assert.Empty(t, f.stream.subscribed)
	assert.Empty(t, f.tracker.tracked)
}

func TestRunCycleSkipsWhileWarmingUp(t *testing.T) {
	f := newFixture(t)
	f.signals.signal = domain.Long
	f.signals.required = 100

	f.service.runCycle(context.Background())

	assert.Empty(t, f.tracker.tracked)
}

func TestRunCycleSkipsWhenLatestBarUnavailable(t *testing.T) {
	f := newFixture(t)
	f.signals.signal = domain.Long
	f.market.latestErr = errors.New("no bar")

	f.service.runCycle(context.Background())

	assert.Empty(t, f.tracker.tracked)
}

func TestEntryAbandonedWithoutEntryQuote(t *testing.T) {
	f := newFixture(t)
	f.signals.signal = domain.Long
	f.quotes.err = errors.New("no quote")

	f.service.runCycle(context.Background())

	assert.Empty(t, f.tracker.tracked)
	assert.Equal(t, []string{"SPY260828C00640000"}, f.stream.unsubscribed, "subscription must be rolled back")
}

func TestWebhookFailureDoesNotBlockEntry(t *testing.T) {
	f := newFixture(t)
	f.signals.signal = domain.Long
	f.orders.err = errors.New("endpoint down")

	f.service.runCycle(context.Background())

	require.Len(t, f.tracker.tracked, 1)
}

func TestAppendBarDeduplicatesTimestamps(t *testing.T) {
	f := newFixture(t)
	first := &domain.Bar{Timestamp: testNow, Close: 640.0}
	revised := &domain.Bar{Timestamp: testNow, Close: 640.5}
	next := &domain.Bar{Timestamp: testNow.Add(time.Minute), Close: 641.0}

	f.service.appendBar(first)
	f.service.appendBar(revised)
	f.service.appendBar(next)

	require.Len(t, f.service.bars, 2)
	assert.InDelta(t, 640.5, f.service.bars[0].Close, 1e-9)
	assert.InDelta(t, 641.0, f.service.bars[1].Close, 1e-9)
}
