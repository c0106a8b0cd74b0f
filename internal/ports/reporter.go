package ports

import (
	"context"

	"optionScalpBot/internal/domain"
)

// ExitReporter consumes exit-tier events emitted by the position tracker.
// Reporting is best-effort; implementations must not block the tick path
// on failure.
type ExitReporter interface {
	ExitFired(ctx context.Context, event *domain.ExitEvent)
}
