// Package alpaca implements the market data ports against the Alpaca Data
// API: minute bars for the underlying and latest quotes for option contracts.
package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"optionScalpBot/internal/domain"
	"optionScalpBot/internal/ports"

	"github.com/go-resty/resty/v2"
)

// Config holds configuration for the Alpaca data client.
type Config struct {
	BaseURL   string
	APIKey    string
	SecretKey string
	Feed      string // Bar feed, e.g. "iex" or "sip"
	Logger    ports.Logger
	Timeout   time.Duration
}

// Client talks to the Alpaca Data API over REST. It implements
// ports.MarketDataClient and ports.OptionQuoteClient.
type Client struct {
	http   *resty.Client
	feed   string
	logger ports.Logger
}

type barPayload struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

type barsResponse struct {
	Bars          []barPayload `json:"bars"`
	NextPageToken *string      `json:"next_page_token"`
}

type latestBarResponse struct {
	Bar *barPayload `json:"bar"`
}

type optionQuotePayload struct {
	BidPrice *float64  `json:"bp"`
	AskPrice *float64  `json:"ap"`
	Time     time.Time `json:"t"`
}

type latestOptionQuotesResponse struct {
	Quotes map[string]optionQuotePayload `json:"quotes"`
}

// New creates a new Alpaca data client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for alpaca client")
	}
	if cfg.BaseURL == "" || cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("alpaca base URL and credentials are required: %w", ports.ErrConfigurationError)
	}
	if cfg.Feed == "" {
		cfg.Feed = "iex"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("APCA-API-KEY-ID", cfg.APIKey).
		SetHeader("APCA-API-SECRET-KEY", cfg.SecretKey)

	return &Client{http: httpClient, feed: cfg.Feed, logger: cfg.Logger}, nil
}

// FetchHistory loads 1-minute bars for the underlying between start and end,
// following pagination. Returns ports.ErrNoHistoricalData when the range is
// empty.
func (c *Client) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Bar, error) {
	op := "FetchHistory"
	var bars []*domain.Bar
	pageToken := ""

	for {
		var payload barsResponse
		req := c.http.R().
			SetContext(ctx).
			SetResult(&payload).
			SetQueryParams(map[string]string{
				"timeframe": "1Min",
				"start":     start.Format(time.RFC3339),
				"end":       end.Format(time.RFC3339),
				"limit":     "10000",
				"feed":      c.feed,
			})
		if pageToken != "" {
			req.SetQueryParam("page_token", pageToken)
		}
		resp, err := req.Get(fmt.Sprintf("/v2/stocks/%s/bars", symbol))
		if err != nil {
			return nil, fmt.Errorf("%s: requesting bars for %s: %w", op, symbol, err)
		}
		if err := c.checkStatus(op, resp); err != nil {
			return nil, err
		}

		for _, b := range payload.Bars {
			bars = append(bars, c.toBar(symbol, b))
		}
		if payload.NextPageToken == nil || *payload.NextPageToken == "" {
			break
		}
		pageToken = *payload.NextPageToken
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: no bars for %s in range: %w", op, symbol, ports.ErrNoHistoricalData)
	}
	forwardFill(bars)
	c.logger.Debug(ctx, "Fetched bar history", map[string]interface{}{"symbol": symbol, "bars": len(bars)})
	return bars, nil
}

// forwardFill patches zero price fields with the previous close; thin minutes
// come back from the feed with gaps.
func forwardFill(bars []*domain.Bar) {
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		b := bars[i]
		if b.Open == 0 {
			b.Open = prev
		}
		if b.High == 0 {
			b.High = prev
		}
		if b.Low == 0 {
			b.Low = prev
		}
		if b.Close == 0 {
			b.Close = prev
		}
	}
}

// FetchLatest loads the most recent 1-minute bar for the underlying.
func (c *Client) FetchLatest(ctx context.Context, symbol string) (*domain.Bar, error) {
	op := "FetchLatest"
	var payload latestBarResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&payload).
		SetQueryParam("feed", c.feed).
		Get(fmt.Sprintf("/v2/stocks/%s/bars/latest", symbol))
	if err != nil {
		return nil, fmt.Errorf("%s: requesting latest bar for %s: %w", op, symbol, err)
	}
	if err := c.checkStatus(op, resp); err != nil {
		return nil, err
	}
	if payload.Bar == nil {
		return nil, fmt.Errorf("%s: no latest bar for %s: %w", op, symbol, ports.ErrNoHistoricalData)
	}
	return c.toBar(symbol, *payload.Bar), nil
}

// LatestMid returns the current mid price of an option contract. A quote
// missing either side maps to ports.ErrNoQuote.
func (c *Client) LatestMid(ctx context.Context, symbol string) (float64, error) {
	op := "LatestMid"
	var payload latestOptionQuotesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&payload).
		SetQueryParam("symbols", symbol).
		Get("/v1beta1/options/quotes/latest")
	if err != nil {
		return 0, fmt.Errorf("%s: requesting quote for %s: %w", op, symbol, err)
	}
	if err := c.checkStatus(op, resp); err != nil {
		return 0, err
	}

	q, ok := payload.Quotes[symbol]
	if !ok || q.BidPrice == nil || q.AskPrice == nil {
		return 0, fmt.Errorf("%s: no two-sided quote for %s: %w", op, symbol, ports.ErrNoQuote)
	}
	return (*q.BidPrice + *q.AskPrice) / 2, nil
}

func (c *Client) toBar(symbol string, p barPayload) *domain.Bar {
	return &domain.Bar{
		Timestamp: p.Timestamp,
		Symbol:    symbol,
		Open:      p.Open,
		High:      p.High,
		Low:       p.Low,
		Close:     p.Close,
		Volume:    p.Volume,
	}
}

func (c *Client) checkStatus(op string, resp *resty.Response) error {
	switch {
	case resp.IsSuccess():
		return nil
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return fmt.Errorf("%s: %s: %w", op, resp.Status(), ports.ErrAuthenticationFailed)
	case resp.StatusCode() == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %s: %w", op, resp.Status(), ports.ErrRateLimited)
	case resp.StatusCode() == http.StatusNotFound:
		return fmt.Errorf("%s: %s: %w", op, resp.Status(), ports.ErrNotFound)
	default:
		return fmt.Errorf("%s: unexpected response %s: %s: %w", op, resp.Status(), resp.String(), ports.ErrUnknown)
	}
}
