package payment

import (
	"context"

	"github.com/example/payment-integration-service/internal/ledger"
)

// ServiceContract is what the HTTP handlers depend on.
type ServiceContract interface {
	Collect(ctx context.Context, req MobileMoneyRequest) (*Result, error)
	Withdraw(ctx context.Context, req MobileMoneyRequest) (*Result, error)
	CreateIntent(ctx context.Context, req IntentRequest) (*Result, error)
	Transfer(ctx context.Context, req TransferRequest) (*Result, error)
	Payout(ctx context.Context, req TransferRequest) (*Result, error)
	Get(ctx context.Context, reference string) (*ledger.Transaction, error)
}
