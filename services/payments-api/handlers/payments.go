// services/payments-api/handlers/payments.go
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/example/payment-integration-service/internal/ledger"
	"github.com/example/payment-integration-service/internal/payment"
	perr "github.com/example/payment-integration-service/pkg/errors"
)

type Payments struct {
	svc payment.ServiceContract
	log *zap.Logger
}

func NewPayments(svc payment.ServiceContract, log *zap.Logger) *Payments {
	if log == nil {
		log = zap.NewNop()
	}
	return &Payments{svc: svc, log: log.Named("payments-http")}
}

// Collect and Withdraw serve POST /payments/{provider}/collect|withdraw.
// A FAILED provider answer is still a 200 carrying the provider's raw body.
func (h *Payments) Collect(w http.ResponseWriter, r *http.Request) {
	h.mobileMoney(w, r, h.svc.Collect)
}

func (h *Payments) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.mobileMoney(w, r, h.svc.Withdraw)
}

type mobileMoneyFunc func(ctx context.Context, req payment.MobileMoneyRequest) (*payment.Result, error)

func (h *Payments) mobileMoney(w http.ResponseWriter, r *http.Request, op mobileMoneyFunc) {
	provider, err := ledger.ParseProvider(mux.Vars(r)["provider"])
	if err != nil || !provider.IsMobileMoney() {
		writeError(w, perr.New(perr.CodeInvalidRequest, "provider must be mtn or airtel"))
		return
	}
	var in MobileMoneyIn
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	if in.Provider != "" && !strings.EqualFold(strings.TrimSpace(in.Provider), string(provider)) {
		writeError(w, perr.New(perr.CodeInvalidRequest, "body provider does not match path"))
		return
	}

	res, err := op(r.Context(), payment.MobileMoneyRequest{
		Provider:  provider,
		Phone:     in.Phone,
		Amount:    in.Amount,
		Currency:  in.Currency,
		Reference: in.Reference,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MobileMoneyOut{
		ProviderStatus: res.ProviderStatus,
		RawBody:        res.RawBody,
		Reference:      res.Reference(),
		Status:         string(res.Transaction.Status),
	})
}

func (h *Payments) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var in IntentIn
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.svc.CreateIntent(r.Context(), payment.IntentRequest{
		Amount:    in.Amount,
		Currency:  in.Currency,
		Reference: in.Reference,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, IntentOut{
		ClientSecret: res.ClientSecret(),
		Reference:    res.Reference(),
		Status:       string(res.Transaction.Status),
	})
}

func (h *Payments) Transfer(w http.ResponseWriter, r *http.Request) {
	in, ok := h.transferIn(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Transfer(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TransferOut{
		TransferID: res.ProviderTransactionID(),
		Reference:  res.Reference(),
		Status:     string(res.Transaction.Status),
	})
}

func (h *Payments) Payout(w http.ResponseWriter, r *http.Request) {
	in, ok := h.transferIn(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Payout(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PayoutOut{
		PayoutID:  res.ProviderTransactionID(),
		Reference: res.Reference(),
		Status:    string(res.Transaction.Status),
	})
}

func (h *Payments) transferIn(w http.ResponseWriter, r *http.Request) (payment.TransferRequest, bool) {
	var in TransferIn
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return payment.TransferRequest{}, false
	}
	return payment.TransferRequest{
		Amount:             in.Amount,
		Currency:           in.Currency,
		Reference:          in.Reference,
		ConnectedAccountID: in.ConnectedAccountID,
	}, true
}

// Get serves GET /payments/{reference}.
func (h *Payments) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.svc.Get(r.Context(), mux.Vars(r)["reference"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TransactionOut{
		Reference:             tx.Reference,
		Provider:              string(tx.Provider),
		Operation:             string(tx.Operation),
		ProviderTransactionID: tx.ProviderTransactionID,
		Amount:                tx.Amount,
		Currency:              tx.Currency,
		Status:                string(tx.Status),
		CreatedAt:             tx.CreatedAt,
		UpdatedAt:             tx.UpdatedAt,
	})
}
