package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"optionScalpBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(Config{
		DBPath: filepath.Join(t.TempDir(), "journal.db"),
		Logger: nopLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordExitRoundTrip(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	event := &domain.ExitEvent{
		Symbol:        "SPY260828C00640000",
		Reason:        domain.CloseReasonTakeProfit1,
		Price:         1.21,
		EntryPrice:    1.00,
		HighWaterMark: 1.21,
		Fraction:      0.50,
		Elapsed:       95 * time.Second,
		Final:         false,
		FiredAt:       time.Date(2026, 8, 28, 14, 35, 0, 0, time.UTC),
	}
	id, err := j.RecordExit(ctx, event)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, event.ID)

	events, err := j.FindBySymbol(ctx, "SPY260828C00640000", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	got := events[0]
	assert.Equal(t, domain.CloseReasonTakeProfit1, got.Reason)
	assert.InDelta(t, 1.21, got.Price, 1e-9)
	assert.InDelta(t, 0.50, got.Fraction, 1e-9)
	assert.Equal(t, 95*time.Second, got.Elapsed)
	assert.False(t, got.Final)
	assert.True(t, got.FiredAt.Equal(event.FiredAt))
}

func TestFindBySymbolNewestFirst(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 28, 14, 35, 0, 0, time.UTC)

	for i, reason := range []domain.CloseReason{
		domain.CloseReasonTakeProfit1,
		domain.CloseReasonTakeProfit2,
		domain.CloseReasonTrailingStop,
	} {
		_, err := j.RecordExit(ctx, &domain.ExitEvent{
			Symbol:  "SPY260828C00640000",
			Reason:  reason,
			Price:   1.0,
			FiredAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	events, err := j.FindBySymbol(ctx, "SPY260828C00640000", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.CloseReasonTrailingStop, events[0].Reason)
	assert.Equal(t, domain.CloseReasonTakeProfit2, events[1].Reason)
}

func TestFindBySymbolUnknownIsEmpty(t *testing.T) {
	j := newTestJournal(t)
	events, err := j.FindBySymbol(context.Background(), "SPY260828P00630000", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestExitFiredSwallowsNothingOnHealthyDB(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	j.ExitFired(ctx, &domain.ExitEvent{
		Symbol:  "SPY260828C00640000",
		Reason:  domain.CloseReasonHardStop,
		Price:   0.80,
		Final:   true,
		FiredAt: time.Now().UTC(),
	})

	events, err := j.FindBySymbol(ctx, "SPY260828C00640000", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Final)
}
