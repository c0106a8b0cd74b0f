// Package webhook posts order intents to external automation endpoints. One
// endpoint per direction; execution happens downstream, this side only
// notifies.
package webhook

import (
	"context"
	"fmt"
	"time"

	"optionScalpBot/internal/ports"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Config holds the webhook endpoints. Either URL may be empty, in which case
// that direction is a logged no-op.
type Config struct {
	CallURL string
	PutURL  string
	Logger  ports.Logger
	Timeout time.Duration
}

// Notifier implements ports.OrderNotifier over HTTP webhooks.
type Notifier struct {
	http    *resty.Client
	callURL string
	putURL  string
	logger  ports.Logger
}

type event struct {
	EventID string `json:"event_id"`
	Side    string `json:"side"`
	SentAt  string `json:"sent_at"`
}

// New creates a new webhook notifier.
func New(cfg Config) (*Notifier, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for webhook notifier")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		http:    resty.New().SetTimeout(timeout),
		callURL: cfg.CallURL,
		putURL:  cfg.PutURL,
		logger:  cfg.Logger,
	}, nil
}

// OpenLong posts the call-side entry event.
func (n *Notifier) OpenLong(ctx context.Context) error {
	return n.post(ctx, n.callURL, "long")
}

// OpenShort posts the put-side entry event.
func (n *Notifier) OpenShort(ctx context.Context) error {
	return n.post(ctx, n.putURL, "short")
}

func (n *Notifier) post(ctx context.Context, url, side string) error {
	if url == "" {
		n.logger.Debug(ctx, "No webhook configured, skipping order notification", map[string]interface{}{"side": side})
		return nil
	}
	payload := event{
		EventID: uuid.NewString(),
		Side:    side,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	}
	resp, err := n.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(url)
	if err != nil {
		return fmt.Errorf("posting %s order webhook: %w", side, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%s order webhook rejected: %s: %w", side, resp.Status(), ports.ErrInvalidRequest)
	}
	n.logger.Info(ctx, "Order webhook delivered", map[string]interface{}{"side": side, "event": payload.EventID})
	return nil
}
