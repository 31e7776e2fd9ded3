// Package webhook authenticates provider callbacks, applies each event at most
// once and reconciles the ledger row the event refers to.
package webhook

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/payment-integration-service/internal/idempotency"
	"github.com/example/payment-integration-service/internal/ledger"
	perr "github.com/example/payment-integration-service/pkg/errors"
	"github.com/example/payment-integration-service/pkg/metrics"
)

type Outcome string

const (
	Accepted         Outcome = "accepted"
	AlreadyProcessed Outcome = "already_processed"
)

const (
	HeaderStripeSignature = "Stripe-Signature"
	HeaderMTNSignature    = "X-MTN-Signature"
	HeaderAirtelSignature = "X-Airtel-Signature"
	HeaderTimestamp       = "X-Request-Timestamp"

	DefaultSkew = 300 * time.Second
)

type Secrets struct {
	Stripe string
	MTN    string
	Airtel string
}

type Config struct {
	Secrets Secrets
	Skew    time.Duration
}

type Engine struct {
	cfg   Config
	guard idempotency.Guard
	repo  ledger.Repository
	pub   Publisher
	log   *zap.Logger
	now   func() time.Time
}

func NewEngine(cfg Config, guard idempotency.Guard, repo ledger.Repository, pub Publisher, log *zap.Logger) *Engine {
	if cfg.Skew <= 0 {
		cfg.Skew = DefaultSkew
	}
	if pub == nil {
		pub = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg, guard: guard, repo: repo, pub: pub, log: log.Named("webhook"), now: time.Now}
}

// Handle verifies one callback and applies it unless its event id was seen
// before. Errors carry pkg/errors codes: BAD_PAYLOAD and INVALID_SIGNATURE
// are the caller's fault, everything else should make the provider retry.
func (e *Engine) Handle(ctx context.Context, provider ledger.Provider, payload []byte, headers http.Header) (Outcome, error) {
	out, err := e.handle(ctx, provider, payload, headers)
	if err != nil {
		metrics.IncWebhook(string(provider), perr.CodeOf(err))
		return "", err
	}
	metrics.IncWebhook(string(provider), string(out))
	return out, nil
}

func (e *Engine) handle(ctx context.Context, provider ledger.Provider, payload []byte, headers http.Header) (Outcome, error) {
	if len(payload) == 0 {
		return "", perr.New(perr.CodeBadPayload, "missing payload")
	}

	var (
		ev  event
		err error
	)
	switch provider {
	case ledger.ProviderStripe:
		ev, err = e.verifyStripe(payload, headers.Get(HeaderStripeSignature))
	case ledger.ProviderMTN:
		ev, err = e.verifyHMAC(provider, e.cfg.Secrets.MTN, payload, headers.Get(HeaderMTNSignature), headers.Get(HeaderTimestamp))
	case ledger.ProviderAirtel:
		ev, err = e.verifyHMAC(provider, e.cfg.Secrets.Airtel, payload, headers.Get(HeaderAirtelSignature), headers.Get(HeaderTimestamp))
	default:
		return "", perr.New(perr.CodeBadPayload, "unknown provider")
	}
	if err != nil {
		e.log.Warn("webhook rejected", zap.String("provider", string(provider)), zap.Error(err))
		return "", err
	}

	log := e.log.With(zap.String("provider", string(provider)), zap.String("event_id", ev.id))

	if ev.id != "" {
		marked, err := e.guard.MarkIfAbsent(ctx, ev.id)
		if err != nil {
			return "", perr.Wrap(perr.CodeInternal, "idempotency guard unavailable", err)
		}
		if !marked {
			log.Info("webhook already processed")
			return AlreadyProcessed, nil
		}
	}

	if err := e.reconcile(ctx, provider, ev, log); err != nil {
		if ev.id != "" {
			if ferr := e.guard.Forget(ctx, ev.id); ferr != nil {
				log.Error("could not release event mark", zap.Error(ferr))
			}
		}
		log.Error("reconciliation failed", zap.Error(err))
		return "", perr.Wrap(perr.CodeInternal, "reconciliation failed", err)
	}

	log.Info("webhook accepted")
	return Accepted, nil
}
