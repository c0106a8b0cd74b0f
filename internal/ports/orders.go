package ports

import "context"

// OrderNotifier signals the order-placement collaborator that a position
// should be opened. Notifications are fire-and-forget: the core never waits
// for a fill confirmation.
type OrderNotifier interface {
	OpenLong(ctx context.Context) error
	OpenShort(ctx context.Context) error
}
