package ledger

import (
	"fmt"
	"strings"
	"time"
)

type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderMTN    Provider = "mtn"
	ProviderAirtel Provider = "airtel"
)

// ParseProvider maps a path segment or config value onto the closed provider set.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderStripe, ProviderMTN, ProviderAirtel:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

func (p Provider) IsMobileMoney() bool { return p == ProviderMTN || p == ProviderAirtel }

type Operation string

const (
	OperationCollect  Operation = "collect"
	OperationWithdraw Operation = "withdraw"
	OperationIntent   Operation = "intent"
	OperationTransfer Operation = "transfer"
	OperationPayout   Operation = "payout"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCreated   Status = "CREATED"
	StatusInitiated Status = "INITIATED"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusCreated, StatusInitiated, StatusSuccess, StatusFailed},
	StatusCreated:   {StatusSuccess, StatusFailed},
	StatusInitiated: {StatusSuccess, StatusFailed},
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool { return s == StatusSuccess || s == StatusFailed }

type Transaction struct {
	ID                    string
	Reference             string
	Provider              Provider
	Operation             Operation
	ProviderTransactionID string
	Amount                int64
	Currency              string
	Status                Status
	ProviderStatus        string
	Phone                 string
	ClientSecret          string
	RawProviderResponse   string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Transition moves the row to status to, or fails with ErrInvalidTransition
// leaving the row untouched.
func (t *Transaction) Transition(to Status) error {
	if !t.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	return nil
}
