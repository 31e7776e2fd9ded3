package payment

import "github.com/example/payment-integration-service/internal/ledger"

type MobileMoneyRequest struct {
	Provider  ledger.Provider
	Phone     string
	Amount    int64
	Currency  string
	Reference string
}

type IntentRequest struct {
	Amount    int64
	Currency  string
	Reference string
}

type TransferRequest struct {
	Amount             int64
	Currency           string
	Reference          string
	ConnectedAccountID string
}

// Result is the normalized answer of an initiate call. Existing is set when the
// reference was already known and no provider call was made.
type Result struct {
	Transaction    *ledger.Transaction
	Existing       bool
	ProviderStatus string
	RawBody        string
}

func (r *Result) Reference() string { return r.Transaction.Reference }

func (r *Result) ClientSecret() string { return r.Transaction.ClientSecret }

// ProviderTransactionID is the Stripe transfer or payout id for card operations.
func (r *Result) ProviderTransactionID() string { return r.Transaction.ProviderTransactionID }
