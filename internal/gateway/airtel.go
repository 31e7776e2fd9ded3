package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AirtelConfig struct {
	APIURL       string
	ClientID     string
	ClientSecret string
	APIKey       string
	Country      string
	CallbackURL  string
	Timeout      time.Duration
}

type Airtel struct {
	cfg    AirtelConfig
	client *http.Client
	tokens *tokenSource
	newID  func() string
}

func NewAirtel(cfg AirtelConfig) (*Airtel, error) {
	if cfg.APIURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Country == "" {
		cfg.Country = "UG"
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	client := httpClient(cfg.Timeout)
	return &Airtel{
		cfg:    cfg,
		client: client,
		tokens: newTokenSource("airtel", client, cfg.APIURL+"/v1/oauth/token", cfg.ClientID, cfg.ClientSecret, nil),
		newID:  uuid.NewString,
	}, nil
}

func (a *Airtel) InitiateCollection(ctx context.Context, req MobileMoneyRequest) (Result, error) {
	return a.send(ctx, "/collection/v1_0/requesttopay", req, newTransferBody(req, true))
}

func (a *Airtel) InitiateWithdrawal(ctx context.Context, req MobileMoneyRequest) (Result, error) {
	return a.send(ctx, "/disbursement/v1_0/transfer", req, newTransferBody(req, false))
}

func (a *Airtel) send(ctx context.Context, path string, req MobileMoneyRequest, body transferBody) (Result, error) {
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return Result{}, err
	}
	refID := a.newID()
	headers := map[string]string{
		"Authorization":             "Bearer " + token,
		"X-Reference-Id":            refID,
		"X-Callback-Url":            a.cfg.CallbackURL,
		"X-Country":                 a.cfg.Country,
		"X-Currency":                req.Currency,
		"Ocp-Apim-Subscription-Key": a.cfg.APIKey,
	}
	return postJSON(ctx, a.client, "airtel", a.cfg.APIURL+path, headers, body, refID)
}
