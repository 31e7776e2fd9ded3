// Package idempotency remembers provider event ids so a webhook is applied at
// most once within the retention window.
package idempotency

import (
	"context"
	"time"
)

// DefaultTTL covers the default freshness window plus a margin for provider
// retries that arrive after a restart.
const DefaultTTL = 24 * time.Hour

// Guard records processed event ids. MarkIfAbsent must be atomic: of several
// concurrent callers with the same id exactly one observes true.
type Guard interface {
	MarkIfAbsent(ctx context.Context, id string) (bool, error)
	IsProcessed(ctx context.Context, id string) (bool, error)
	// Forget releases a mark so a redelivery can be applied again.
	Forget(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}
