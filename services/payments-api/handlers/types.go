// services/payments-api/handlers/types.go
package handlers

import "time"

type MobileMoneyIn struct {
	Provider  string `json:"provider,omitempty"` // optional, must match the path
	Phone     string `json:"phone"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency,omitempty"`
	Reference string `json:"reference,omitempty"`
}

type MobileMoneyOut struct {
	ProviderStatus string `json:"providerStatus"`
	RawBody        string `json:"rawBody"`
	Reference      string `json:"reference"`
	Status         string `json:"status"`
}

type IntentIn struct {
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency,omitempty"`
	Reference string `json:"reference,omitempty"`
}

type IntentOut struct {
	ClientSecret string `json:"clientSecret"`
	Reference    string `json:"reference"`
	Status       string `json:"status,omitempty"`
}

type TransferIn struct {
	Amount             int64  `json:"amount"`
	Currency           string `json:"currency,omitempty"`
	Reference          string `json:"reference,omitempty"`
	ConnectedAccountID string `json:"connectedAccountId,omitempty"`
}

type TransferOut struct {
	TransferID string `json:"transferId"`
	Reference  string `json:"reference"`
	Status     string `json:"status"`
}

type PayoutOut struct {
	PayoutID  string `json:"payoutId"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

type TransactionOut struct {
	Reference             string    `json:"reference"`
	Provider              string    `json:"provider"`
	Operation             string    `json:"operation"`
	ProviderTransactionID string    `json:"providerTransactionId,omitempty"`
	Amount                int64     `json:"amount"`
	Currency              string    `json:"currency"`
	Status                string    `json:"status"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

type WebhookOut struct {
	Status string `json:"status"`
}

type ErrorOut struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
