package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

type StripeConfig struct {
	SecretKey string
	// BaseURL overrides the API endpoint; used against stripe-mock and tests.
	BaseURL string
	Timeout time.Duration
}

// Stripe implements Card on top of the official SDK.
type Stripe struct {
	sc *client.API
}

func NewStripe(cfg StripeConfig) (*Stripe, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, ErrNotConfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	bc := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.BaseURL != "" {
		bc.URL = stripe.String(strings.TrimRight(cfg.BaseURL, "/"))
	}
	api := stripe.GetBackendWithConfig(stripe.APIBackend, bc)
	backends := &stripe.Backends{API: api, Connect: api, Uploads: api}
	return &Stripe{sc: client.New(strings.TrimSpace(cfg.SecretKey), backends)}, nil
}

// CreateIntent uses the reference as the Stripe idempotency key so a retried
// request can never create a second intent.
func (s *Stripe) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Amount),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.Reference)
	params.AddMetadata("reference", req.Reference)

	pi, err := s.sc.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, wrapStripe(err)
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status), Raw: rawJSON(pi.LastResponse)}, nil
}

func (s *Stripe) Transfer(ctx context.Context, req TransferRequest) (Transfer, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		Destination:   stripe.String(req.ConnectedAccountID),
		TransferGroup: stripe.String(req.Reference),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.Reference)
	params.AddMetadata("reference", req.Reference)

	tr, err := s.sc.Transfers.New(params)
	if err != nil {
		return Transfer{}, wrapStripe(err)
	}
	return Transfer{ID: tr.ID, Raw: rawJSON(tr.LastResponse)}, nil
}

func (s *Stripe) Payout(ctx context.Context, req TransferRequest) (Payout, error) {
	params := &stripe.PayoutParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.Reference)
	params.AddMetadata("reference", req.Reference)
	if req.ConnectedAccountID != "" {
		params.SetStripeAccount(req.ConnectedAccountID)
	}

	po, err := s.sc.Payouts.New(params)
	if err != nil {
		return Payout{}, wrapStripe(err)
	}
	return Payout{ID: po.ID, Status: string(po.Status), Raw: rawJSON(po.LastResponse)}, nil
}

func rawJSON(r *stripe.APIResponse) string {
	if r == nil {
		return ""
	}
	return string(r.RawJSON)
}

func wrapStripe(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &ProviderError{Provider: "stripe", HTTPStatus: se.HTTPStatusCode, Body: se.Msg}
	}
	return err
}
