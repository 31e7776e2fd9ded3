package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type MTNConfig struct {
	APIURL          string
	ClientID        string
	ClientSecret    string
	SubscriptionKey string
	TargetEnv       string
	CallbackURL     string
	Timeout         time.Duration
}

// MTN talks to the MoMo collection and disbursement APIs.
type MTN struct {
	cfg    MTNConfig
	client *http.Client
	tokens *tokenSource
	newID  func() string
}

func NewMTN(cfg MTNConfig) (*MTN, error) {
	if cfg.APIURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.SubscriptionKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.TargetEnv == "" {
		cfg.TargetEnv = "sandbox"
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	client := httpClient(cfg.Timeout)
	return &MTN{
		cfg:    cfg,
		client: client,
		tokens: newTokenSource("mtn", client, cfg.APIURL+"/token/", cfg.ClientID, cfg.ClientSecret,
			map[string]string{"Ocp-Apim-Subscription-Key": cfg.SubscriptionKey}),
		newID: uuid.NewString,
	}, nil
}

func (m *MTN) InitiateCollection(ctx context.Context, req MobileMoneyRequest) (Result, error) {
	return m.send(ctx, "/requesttopay", newTransferBody(req, true))
}

func (m *MTN) InitiateWithdrawal(ctx context.Context, req MobileMoneyRequest) (Result, error) {
	return m.send(ctx, "/disbursement", newTransferBody(req, false))
}

// send posts body with a fresh X-Reference-Id, which MTN uses as its own
// transaction id and echoes back in callbacks.
func (m *MTN) send(ctx context.Context, path string, body transferBody) (Result, error) {
	token, err := m.tokens.Token(ctx)
	if err != nil {
		return Result{}, err
	}
	refID := m.newID()
	headers := map[string]string{
		"Authorization":             "Bearer " + token,
		"X-Reference-Id":            refID,
		"X-Target-Environment":      m.cfg.TargetEnv,
		"X-Callback-Url":            m.cfg.CallbackURL,
		"Ocp-Apim-Subscription-Key": m.cfg.SubscriptionKey,
	}
	return postJSON(ctx, m.client, "mtn", m.cfg.APIURL+path, headers, body, refID)
}
