// Package gateway holds the provider adapters the orchestrator dispatches to.
// Adapters normalize each provider's answer into a Result; transport faults,
// token failures and 5xx answers are returned as errors.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Normalized provider status strings.
const (
	StatusSuccess  = "SUCCESS"
	StatusPending  = "PENDING"
	StatusAccepted = "ACCEPTED"
	StatusFailed   = "FAILED"
)

var ErrNotConfigured = errors.New("gateway: provider not configured")

type MobileMoneyRequest struct {
	Phone     string
	Amount    int64
	Currency  string
	Reference string
}

// Result is the synchronous answer of a mobile-money operator.
type Result struct {
	HTTPStatus            int
	Status                string
	ProviderTransactionID string
	Body                  string
}

type MobileMoney interface {
	InitiateCollection(ctx context.Context, req MobileMoneyRequest) (Result, error)
	InitiateWithdrawal(ctx context.Context, req MobileMoneyRequest) (Result, error)
}

type IntentRequest struct {
	Amount    int64
	Currency  string
	Reference string
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Raw          string
}

type TransferRequest struct {
	Amount             int64
	Currency           string
	Reference          string
	ConnectedAccountID string
}

type Transfer struct {
	ID  string
	Raw string
}

type Payout struct {
	ID     string
	Status string
	Raw    string
}

type Card interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	Transfer(ctx context.Context, req TransferRequest) (Transfer, error)
	Payout(ctx context.Context, req TransferRequest) (Payout, error)
}

// ProviderError is an upstream answer that is not usable as a result.
type ProviderError struct {
	Provider   string
	HTTPStatus int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: upstream status %d", e.Provider, e.HTTPStatus)
}
