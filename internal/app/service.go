// Package app wires the market data, signal, stream and exit components into
// the trading loop: load history, poll a fresh bar every minute, enter on an
// aggregate signal, then let quote ticks drive the exits.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"optionScalpBot/internal/domain"
	"optionScalpBot/internal/options"
	"optionScalpBot/internal/ports"
	"optionScalpBot/internal/risk"
)

// Bars older than this fall off the in-memory history. Deep enough for every
// indicator warm-up with a full day of margin.
const maxBarCacheSize = 500

// quoteStream is the slice of the stream client the service drives.
type quoteStream interface {
	ConnectWithRetry(ctx context.Context) error
	Subscribe(ctx context.Context, symbol string) error
	Unsubscribe(ctx context.Context, symbol string) error
	Listen(ctx context.Context) error
	Disconnect() error
}

// positionTracker is the slice of the exit tracker the service drives.
type positionTracker interface {
	Track(ctx context.Context, symbol string, entryPrice float64) error
	Active() bool
	Status() *risk.PositionStatus
}

// signalSource turns bar histories into directional signals.
type signalSource interface {
	RequiredDataPoints() int
	Signal(ctx context.Context, bars []*domain.Bar) domain.Signal
}

// Config holds the dependencies and parameters for the trading service.
type Config struct {
	Underlying    string
	HistoryWindow func(now time.Time) (start, end time.Time, err error)

	Logger       ports.Logger
	MarketData   ports.MarketDataClient
	OptionQuotes ports.OptionQuoteClient
	Orders       ports.OrderNotifier
	Stream       quoteStream
	Tracker      positionTracker
	Signals      signalSource
	Now          func() time.Time // Optional clock override
}

// TradingService runs the trading loop.
type TradingService struct {
	cfg    Config
	logger ports.Logger
	now    func() time.Time

	bars []*domain.Bar
}

// NewTradingService creates the trading service.
func NewTradingService(cfg Config) (*TradingService, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required for trading service")
	}
	if cfg.Underlying == "" {
		return nil, fmt.Errorf("underlying symbol is required: %w", ports.ErrConfigurationError)
	}
	if cfg.HistoryWindow == nil || cfg.MarketData == nil || cfg.OptionQuotes == nil ||
		cfg.Orders == nil || cfg.Stream == nil || cfg.Tracker == nil || cfg.Signals == nil {
		return nil, fmt.Errorf("trading service is missing a dependency: %w", ports.ErrConfigurationError)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TradingService{cfg: cfg, logger: cfg.Logger, now: now}, nil
}

// Start runs the service until the context is cancelled or an interrupt
// arrives. It blocks.
func (s *TradingService) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Shutdown signal received", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.loadHistory(ctx); err != nil {
		return err
	}

	if err := s.cfg.Stream.ConnectWithRetry(ctx); err != nil {
		return fmt.Errorf("connecting quote stream: %w", err)
	}
	defer func() {
		if err := s.cfg.Stream.Disconnect(); err != nil {
			s.logger.Warn(context.Background(), "Error disconnecting quote stream", map[string]interface{}{"error": err.Error()})
		}
	}()
	go s.superviseStream(ctx, cancel)

	s.logger.Info(ctx, "Trading loop started", map[string]interface{}{
		"underlying": s.cfg.Underlying,
		"history":    len(s.bars),
		"required":   s.cfg.Signals.RequiredDataPoints(),
	})

	for {
		if err := s.waitUntilNextMinute(ctx); err != nil {
			s.logger.Info(context.Background(), "Trading loop stopped")
			return nil
		}
		s.runCycle(ctx)
	}
}

// loadHistory seeds the bar cache with the session so far. Running without
// enough history would make every signal neutral, so an empty window is
// fatal.
func (s *TradingService) loadHistory(ctx context.Context) error {
	now := s.now()
	start, end, err := s.cfg.HistoryWindow(now)
	if err != nil {
		return fmt.Errorf("resolving session window: %w", err)
	}
	if now.Before(end) {
		end = now
	}

	bars, err := s.cfg.MarketData.FetchHistory(ctx, s.cfg.Underlying, start, end)
	if err != nil {
		return fmt.Errorf("loading bar history for %s: %w", s.cfg.Underlying, err)
	}
	s.bars = bars
	s.trimBars()
	s.logger.Info(ctx, "Bar history loaded", map[string]interface{}{"symbol": s.cfg.Underlying, "bars": len(s.bars)})
	return nil
}

// superviseStream keeps the read loop alive. Listen returning nil means a
// deliberate stop; an error means the transport dropped and the connection is
// retried. An exhausted retry budget stops the whole service.
func (s *TradingService) superviseStream(ctx context.Context, cancel context.CancelFunc) {
	for {
		err := s.cfg.Stream.Listen(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}
		s.logger.Warn(ctx, "Quote stream dropped, reconnecting", map[string]interface{}{"error": err.Error()})
		if err := s.cfg.Stream.ConnectWithRetry(ctx); err != nil {
			s.logger.Error(ctx, err, "Quote stream could not be re-established, stopping service")
			cancel()
			return
		}
	}
}

// waitUntilNextMinute sleeps until shortly after the next minute boundary,
// when the previous bar has closed and become fetchable.
func (s *TradingService) waitUntilNextMinute(ctx context.Context) error {
	next := s.now().Truncate(time.Minute).Add(time.Minute + time.Second)
	timer := time.NewTimer(next.Sub(s.now()))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runCycle executes one per-minute iteration: refresh the bar cache,
// aggregate a signal and act on it when flat.
func (s *TradingService) runCycle(ctx context.Context) {
	bar, err := s.cfg.MarketData.FetchLatest(ctx, s.cfg.Underlying)
	if err != nil {
		s.logger.Warn(ctx, "Skipping cycle, latest bar unavailable", map[string]interface{}{"symbol": s.cfg.Underlying, "error": err.Error()})
		return
	}
	s.appendBar(bar)

	if len(s.bars) < s.cfg.Signals.RequiredDataPoints() {
		s.logger.Debug(ctx, "Indicators still warming up", map[string]interface{}{"bars": len(s.bars), "required": s.cfg.Signals.RequiredDataPoints()})
		return
	}

	sig := s.cfg.Signals.Signal(ctx, s.bars)
	if sig == domain.Neutral {
		return
	}

	if s.cfg.Tracker.Active() {
		s.reportInProgress(ctx, sig, bar.Close)
		return
	}
	s.enterPosition(ctx, sig, bar.Close)
}

// appendBar adds the latest bar, deduplicating on timestamp: the data API
// returns the same bar again until the next minute closes.
func (s *TradingService) appendBar(bar *domain.Bar) {
	if n := len(s.bars); n > 0 && !bar.Timestamp.After(s.bars[n-1].Timestamp) {
		s.bars[n-1] = bar
		return
	}
	s.bars = append(s.bars, bar)
	s.trimBars()
}

func (s *TradingService) trimBars() {
	if len(s.bars) > maxBarCacheSize {
		s.bars = append([]*domain.Bar(nil), s.bars[len(s.bars)-maxBarCacheSize:]...)
	}
}

// reportInProgress logs the signal that was skipped because a position is
// already being managed, including the contract it would have traded.
func (s *TradingService) reportInProgress(ctx context.Context, sig domain.Signal, spot float64) {
	fields := map[string]interface{}{
		"signal":   sig.String(),
		"contract": options.Build(s.cfg.Underlying, sig, spot, s.now()),
	}
	if status := s.cfg.Tracker.Status(); status != nil {
		fields["open"] = status.Symbol
		fields["elapsed"] = status.Elapsed.String()
		fields["remaining"] = status.RemainingFraction
	}
	s.logger.Info(ctx, "Signal skipped, position in progress", fields)
}

// enterPosition notifies the order webhook, subscribes the contract's quote
// stream and hands the position to the exit tracker. The webhook is
// notify-only, so a delivery failure is logged and entry continues; a missing
// entry quote aborts and rolls the subscription back.
func (s *TradingService) enterPosition(ctx context.Context, sig domain.Signal, spot float64) {
	contract := options.Build(s.cfg.Underlying, sig, spot, s.now())
	if contract == "" {
		return
	}
	s.logger.Info(ctx, "Entering position", map[string]interface{}{"signal": sig.String(), "contract": contract, "spot": spot})

	var notifyErr error
	if sig == domain.Long {
		notifyErr = s.cfg.Orders.OpenLong(ctx)
	} else {
		notifyErr = s.cfg.Orders.OpenShort(ctx)
	}
	if notifyErr != nil {
		s.logger.Warn(ctx, "Order webhook delivery failed", map[string]interface{}{"contract": contract, "error": notifyErr.Error()})
	}

	if err := s.cfg.Stream.Subscribe(ctx, contract); err != nil {
		s.logger.Error(ctx, err, "Could not subscribe contract, entry abandoned", map[string]interface{}{"contract": contract})
		return
	}

	mid, err := s.cfg.OptionQuotes.LatestMid(ctx, contract)
	if err != nil {
		s.logger.Warn(ctx, "No entry quote for contract, entry abandoned", map[string]interface{}{"contract": contract, "error": err.Error()})
		if unsubErr := s.cfg.Stream.Unsubscribe(ctx, contract); unsubErr != nil {
			s.logger.Warn(ctx, "Failed to roll back subscription", map[string]interface{}{"contract": contract, "error": unsubErr.Error()})
		}
		return
	}

	if err := s.cfg.Tracker.Track(ctx, contract, mid); err != nil {
		s.logger.Error(ctx, err, "Could not start exit tracking", map[string]interface{}{"contract": contract})
		if unsubErr := s.cfg.Stream.Unsubscribe(ctx, contract); unsubErr != nil {
			s.logger.Warn(ctx, "Failed to roll back subscription", map[string]interface{}{"contract": contract, "error": unsubErr.Error()})
		}
	}
}
