package webhook

import (
	"context"
	"time"
)

// Settlement is emitted once a webhook moves a transaction to a terminal status.
type Settlement struct {
	EventID               string    `json:"event_id,omitempty"`
	Reference             string    `json:"reference"`
	Provider              string    `json:"provider"`
	Operation             string    `json:"operation"`
	ProviderTransactionID string    `json:"provider_transaction_id,omitempty"`
	Amount                int64     `json:"amount"`
	Currency              string    `json:"currency"`
	Status                string    `json:"status"`
	SettledAt             time.Time `json:"settled_at"`
}

// Publisher delivers settlements downstream. Delivery is at-most-once: a
// failed publish is logged and not retried.
type Publisher interface {
	PublishSettlement(ctx context.Context, s Settlement) error
}

type NopPublisher struct{}

func (NopPublisher) PublishSettlement(context.Context, Settlement) error { return nil }
