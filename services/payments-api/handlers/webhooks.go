// services/payments-api/handlers/webhooks.go
package handlers

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/payment-integration-service/internal/ledger"
	"github.com/example/payment-integration-service/internal/webhook"
	perr "github.com/example/payment-integration-service/pkg/errors"
)

// WebhookProcessor is implemented by *webhook.Engine.
type WebhookProcessor interface {
	Handle(ctx context.Context, provider ledger.Provider, payload []byte, headers http.Header) (webhook.Outcome, error)
}

type Webhooks struct {
	engine WebhookProcessor
	log    *zap.Logger
}

func NewWebhooks(engine WebhookProcessor, log *zap.Logger) *Webhooks {
	if log == nil {
		log = zap.NewNop()
	}
	return &Webhooks{engine: engine, log: log.Named("webhooks-http")}
}

func (h *Webhooks) Stripe(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, ledger.ProviderStripe)
}

func (h *Webhooks) MTN(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, ledger.ProviderMTN)
}

func (h *Webhooks) Airtel(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, ledger.ProviderAirtel)
}

// handle passes the raw body through untouched; signatures are computed over
// the exact bytes the provider sent.
func (h *Webhooks) handle(w http.ResponseWriter, r *http.Request, provider ledger.Provider) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, perr.Wrap(perr.CodeBadPayload, "could not read webhook body", err))
		return
	}

	outcome, err := h.engine.Handle(r.Context(), provider, payload, r.Header)
	if err != nil {
		log := h.log.With(zap.String("provider", string(provider)), zap.String("code", perr.CodeOf(err)))
		if perr.HTTPStatus(perr.CodeOf(err)) >= http.StatusInternalServerError {
			log.Error("webhook failed, provider will retry", zap.Error(err))
		} else {
			log.Warn("webhook rejected", zap.Error(err))
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WebhookOut{Status: string(outcome)})
}
