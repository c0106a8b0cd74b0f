package stream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"optionScalpBot/internal/domain"
	"optionScalpBot/internal/ports"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
)

// ConnState is the connection state of the quote stream client.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateAuthenticated
	StateListening
)

// String returns the string representation of the ConnState.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateListening:
		return "LISTENING"
	default:
		return "UNKNOWN"
	}
}

// Transport is a single established streaming connection. It exists so tests
// can drive the client without a network; production uses the websocket
// dialer below.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a Transport to the quote feed.
type Dialer func(ctx context.Context, url string) (Transport, error)

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteMessage(data []byte) error {
	return t.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

func websocketDialer(ctx context.Context, url string) (Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}

// TickHandler consumes mid-price ticks for tracked symbols. The exit tracker
// implements this; it is invoked before observer fan-out so exit decisions
// never wait on reporting.
type TickHandler interface {
	HandleTick(symbol string, price float64, ts time.Time)
}

// Config holds configuration for the quote stream client.
type Config struct {
	URL                  string
	Key                  string
	Secret               string
	Logger               ports.Logger
	Dialer               Dialer        // Optional; defaults to a websocket dialer
	ReconnectDelay       time.Duration // Initial backoff delay for ConnectWithRetry
	MaxReconnectAttempts int           // Attempts before ConnectWithRetry gives up
}

// Client manages the single authenticated connection to the options quote
// feed: connect/authenticate, subscribe/unsubscribe per contract symbol,
// decode inbound batches and fan quotes out.
//
// All mutable state (transport, state, subscription set) is guarded by mu.
// Listen is the sole reader of the transport and runs in exactly one
// goroutine; Subscribe/Unsubscribe/Disconnect are safe to call concurrently
// with it.
type Client struct {
	cfg    Config
	logger ports.Logger
	dial   Dialer

	mu          sync.Mutex
	transport   Transport
	state       ConnState
	closing     bool // Set by Disconnect so Listen can tell deliberate closes from failures
	subscribed  map[string]struct{}
	tickHandler TickHandler
	observers   []ports.QuoteObserver
}

// New creates a new quote stream client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for quote stream client")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("stream URL is required: %w", ports.ErrConfigurationError)
	}
	dial := cfg.Dialer
	if dial == nil {
		dial = websocketDialer
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 1 * time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 10
	}
	return &Client{
		cfg:        cfg,
		logger:     cfg.Logger,
		dial:       dial,
		state:      StateDisconnected,
		subscribed: make(map[string]struct{}),
	}, nil
}

// SetTickHandler registers the consumer of tracked-symbol ticks.
// Registration happens once at startup, before Listen is started.
func (c *Client) SetTickHandler(h TickHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickHandler = h
}

// AddObserver registers an additional quote observer. Observers are notified
// after the tick handler, in registration order.
func (c *Client) AddObserver(obs ports.QuoteObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, obs)
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscriptions returns a sorted snapshot of the subscription set.
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	symbols := make([]string, 0, len(c.subscribed))
	for sym := range c.subscribed {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// Connect opens the transport and authenticates, blocking for the single
// authenticate-result message. A no-op when already authenticated or
// listening. On authentication failure the transport is closed, the state
// returns to Disconnected and ports.ErrAuthenticationFailed is returned.
//
// After a successful handshake any retained subscriptions are re-sent, so a
// reconnect resumes the same quote flow.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateAuthenticated || c.state == StateListening {
		c.logger.Debug(ctx, "Quote stream already connected and authenticated")
		return nil
	}
	c.state = StateConnecting
	c.closing = false

	t, err := c.dial(ctx, c.cfg.URL)
	if err != nil {
		c.state = StateDisconnected
		return fmt.Errorf("dialing quote feed: %w: %w", ports.ErrConnectionFailed, err)
	}

	if err := c.authenticate(ctx, t); err != nil {
		_ = t.Close()
		c.state = StateDisconnected
		return err
	}

	c.transport = t
	c.state = StateAuthenticated
	c.logger.Info(ctx, "Quote stream authenticated", map[string]interface{}{"url": c.cfg.URL})

	// Resubscribe the retained set after a reconnect.
	if len(c.subscribed) > 0 {
		symbols := make([]string, 0, len(c.subscribed))
		for sym := range c.subscribed {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		payload, err := encodeSubscribe(symbols)
		if err != nil {
			return err
		}
		if err := c.transport.WriteMessage(payload); err != nil {
			return fmt.Errorf("resubscribing after reconnect: %w: %w", ports.ErrTransportClosed, err)
		}
		c.logger.Info(ctx, "Resubscribed retained symbols", map[string]interface{}{"symbols": symbols})
	}

	return nil
}

// authenticate performs the blocking auth handshake on a fresh transport.
func (c *Client) authenticate(ctx context.Context, t Transport) error {
	payload, err := encodeAuth(c.cfg.Key, c.cfg.Secret)
	if err != nil {
		return err
	}
	if err := t.WriteMessage(payload); err != nil {
		return fmt.Errorf("sending auth request: %w: %w", ports.ErrConnectionFailed, err)
	}

	frame, err := t.ReadMessage()
	if err != nil {
		return fmt.Errorf("reading auth result: %w: %w", ports.ErrConnectionFailed, err)
	}
	raws, err := decodeBatch(frame)
	if err != nil {
		return fmt.Errorf("auth result: %w: %w", ports.ErrAuthenticationFailed, err)
	}
	if len(raws) == 0 {
		return fmt.Errorf("auth result: empty batch: %w", ports.ErrAuthenticationFailed)
	}
	rec, err := decodeRecord(raws[0])
	if err != nil {
		return fmt.Errorf("auth result: %w: %w", ports.ErrAuthenticationFailed, err)
	}
	if rec.Type != recordTypeSuccess {
		c.logger.Warn(ctx, "Quote feed rejected authentication", map[string]interface{}{"kind": rec.Type, "message": rec.Message, "code": rec.Code})
		return fmt.Errorf("auth rejected (%s): %w", rec.Message, ports.ErrAuthenticationFailed)
	}
	return nil
}

// ConnectWithRetry wraps Connect with exponential backoff and jitter for
// transport-level failures. Authentication failures are surfaced immediately,
// never retried.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	b := &backoff.Backoff{
		Min:    c.cfg.ReconnectDelay,
		Max:    time.Minute,
		Factor: 2,
		Jitter: true,
	}
	for attempt := 1; ; attempt++ {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ports.ErrAuthenticationFailed) {
			return err
		}
		if attempt >= c.cfg.MaxReconnectAttempts {
			return fmt.Errorf("giving up after %d connection attempts: %w", attempt, err)
		}
		delay := b.Duration()
		c.logger.Warn(ctx, "Quote feed connection failed, retrying", map[string]interface{}{"attempt": attempt, "delay": delay.String(), "error": err.Error()})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("connect retry aborted: %w: %w", ports.ErrContextCanceled, ctx.Err())
		}
	}
}

// Subscribe requests quote ticks for an option symbol, implicitly connecting
// first. No-op when already subscribed.
//
// Policy: the request is fire-and-forget. The symbol is recorded in the
// subscription set as soon as the request is written; the asynchronous
// confirmation is only logged when it shows up on the listen stream.
func (c *Client) Subscribe(ctx context.Context, symbol string) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscribed[symbol]; ok {
		c.logger.Debug(ctx, "Already subscribed", map[string]interface{}{"symbol": symbol})
		return nil
	}
	if c.transport == nil {
		// Disconnect raced the implicit connect above.
		return fmt.Errorf("subscribing %s: %w", symbol, ports.ErrNotConnected)
	}
	payload, err := encodeSubscribe([]string{symbol})
	if err != nil {
		return err
	}
	if err := c.transport.WriteMessage(payload); err != nil {
		return fmt.Errorf("sending subscribe for %s: %w: %w", symbol, ports.ErrTransportClosed, err)
	}
	c.subscribed[symbol] = struct{}{}
	c.logger.Info(ctx, "Subscribed to option quotes", map[string]interface{}{"symbol": symbol})
	return nil
}

// Unsubscribe drops quote ticks for an option symbol. No-op when not
// subscribed or not connected.
func (c *Client) Unsubscribe(ctx context.Context, symbol string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscribed[symbol]; !ok {
		c.logger.Debug(ctx, "Not subscribed", map[string]interface{}{"symbol": symbol})
		return nil
	}
	if c.transport == nil {
		// The connection died with the subscription in place; dropping the
		// entry is enough, the server side is gone already.
		delete(c.subscribed, symbol)
		return nil
	}
	payload, err := encodeUnsubscribe([]string{symbol})
	if err != nil {
		return err
	}
	if err := c.transport.WriteMessage(payload); err != nil {
		return fmt.Errorf("sending unsubscribe for %s: %w: %w", symbol, ports.ErrTransportClosed, err)
	}
	delete(c.subscribed, symbol)
	c.logger.Info(ctx, "Unsubscribed from option quotes", map[string]interface{}{"symbol": symbol})
	return nil
}

// Listen is the sole long-running read loop. It decodes inbound batches,
// forwards quote mid prices to the tick handler and observers, and returns
// when the transport closes: nil after a deliberate Disconnect, a
// ports.ErrTransportClosed-wrapped error otherwise (the caller decides
// whether to reconnect).
func (c *Client) Listen(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateAuthenticated {
		c.mu.Unlock()
		return fmt.Errorf("listen requires an authenticated connection: %w", ports.ErrNotConnected)
	}
	t := c.transport
	c.state = StateListening
	c.mu.Unlock()
	c.logger.Info(ctx, "Quote stream listening")

	for {
		frame, err := t.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closing := c.closing
			if c.transport == t {
				_ = t.Close()
				c.transport = nil
			}
			c.state = StateDisconnected
			c.mu.Unlock()

			if closing || ctx.Err() != nil {
				c.logger.Info(ctx, "Quote stream stopped")
				return nil
			}
			c.logger.Warn(ctx, "Quote stream transport closed", map[string]interface{}{"error": err.Error()})
			return fmt.Errorf("quote stream read: %w: %w", ports.ErrTransportClosed, err)
		}
		c.handleFrame(ctx, frame)
	}
}

// handleFrame decodes one inbound frame. Decode errors never terminate the
// stream: an undecodable batch is dropped whole, a malformed record inside an
// otherwise valid batch is dropped alone.
func (c *Client) handleFrame(ctx context.Context, frame []byte) {
	raws, err := decodeBatch(frame)
	if err != nil {
		c.logger.Warn(ctx, "Dropping undecodable message batch", map[string]interface{}{"error": err.Error(), "bytes": len(frame)})
		return
	}
	for _, raw := range raws {
		rec, err := decodeRecord(raw)
		if err != nil {
			c.logger.Warn(ctx, "Dropping malformed record", map[string]interface{}{"error": err.Error()})
			continue
		}
		c.handleRecord(ctx, rec)
	}
}

func (c *Client) handleRecord(ctx context.Context, rec *record) {
	switch rec.Type {
	case recordTypeQuote:
		if rec.BidPrice == nil || rec.AskPrice == nil {
			// One-sided market; not an error, just nothing to evaluate.
			c.logger.Debug(ctx, "Quote missing bid or ask, skipping", map[string]interface{}{"symbol": rec.Symbol})
			return
		}
		quote := domain.Quote{
			Symbol:    rec.Symbol,
			BidPrice:  *rec.BidPrice,
			AskPrice:  *rec.AskPrice,
			Timestamp: rec.Timestamp,
		}
		mid := quote.Mid()

		c.mu.Lock()
		handler := c.tickHandler
		observers := append([]ports.QuoteObserver(nil), c.observers...)
		c.mu.Unlock()

		// The lock is released before fan-out: the tick handler may call
		// back into Unsubscribe when an exit destroys its position.
		if handler != nil {
			handler.HandleTick(rec.Symbol, mid, rec.Timestamp)
		}
		for _, obs := range observers {
			obs.OnQuote(rec.Symbol, mid, rec.Timestamp)
		}
	case recordTypeSubscription, recordTypeUnsubscription:
		c.logger.Info(ctx, "Subscription update confirmed", map[string]interface{}{"kind": rec.Type})
	case recordTypeError:
		c.logger.Warn(ctx, "Quote feed reported an error", map[string]interface{}{"message": rec.Message, "code": rec.Code})
	case recordTypeSuccess:
		c.logger.Debug(ctx, "Quote feed control message", map[string]interface{}{"message": rec.Message})
	default:
		c.logger.Debug(ctx, "Skipping unknown record kind", map[string]interface{}{"kind": rec.Type})
	}
}

// Disconnect stops the listen loop, closes the transport and clears the
// subscription set. Safe to call multiple times and from any goroutine; the
// listen loop observes the closed transport promptly and exits cleanly.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected && c.transport == nil {
		return nil
	}
	c.closing = true
	if c.transport != nil {
		_ = c.transport.Close()
		c.transport = nil
	}
	c.subscribed = make(map[string]struct{})
	c.state = StateDisconnected
	c.logger.Info(context.Background(), "Quote stream disconnected")
	return nil
}
