package webhook

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/payment-integration-service/internal/gateway"
	"github.com/example/payment-integration-service/internal/ledger"
)

// errNotReady means the row is still PENDING: the synchronous provider call
// has not finished, so the provider should redeliver later.
var errNotReady = errors.New("webhook: transaction still pending")

// maxSettleAttempts bounds re-reads after a concurrent writer moved the row.
const maxSettleAttempts = 3

func (e *Engine) reconcile(ctx context.Context, provider ledger.Provider, ev event, log *zap.Logger) error {
	var to ledger.Status
	switch ev.status {
	case gateway.StatusSuccess:
		to = ledger.StatusSuccess
	case gateway.StatusFailed:
		to = ledger.StatusFailed
	default:
		log.Debug("non-terminal provider status, nothing to reconcile", zap.String("status", ev.status), zap.String("type", ev.kind))
		return nil
	}

	for attempt := 1; ; attempt++ {
		tx, err := e.lookup(ctx, provider, ev)
		if ledger.IsNotFound(err) {
			log.Warn("no transaction for webhook",
				zap.String("reference", ev.reference),
				zap.String("provider_transaction_id", ev.providerTxID),
			)
			return nil
		}
		if err != nil {
			return err
		}

		txLog := log.With(zap.String("reference", tx.Reference))
		switch {
		case tx.Provider != provider:
			txLog.Warn("webhook provider does not own transaction", zap.String("owner", string(tx.Provider)))
			return nil
		case tx.Status.IsTerminal():
			txLog.Info("transaction already settled", zap.String("status", string(tx.Status)))
			return nil
		case tx.Status == ledger.StatusPending:
			return errNotReady
		}

		from := tx.Status
		if err := tx.Transition(to); err != nil {
			txLog.Warn("transition rejected", zap.Error(err))
			return nil
		}
		if ev.providerTxID != "" && tx.ProviderTransactionID == "" {
			tx.ProviderTransactionID = ev.providerTxID
		}
		err = e.repo.Save(ctx, tx, from)
		if ledger.IsStale(err) && attempt < maxSettleAttempts {
			txLog.Info("transaction changed while settling, reading it again", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return err
		}
		txLog.Info("transaction settled", zap.String("status", string(tx.Status)))

		if err := e.pub.PublishSettlement(ctx, newSettlement(tx, ev.id)); err != nil {
			txLog.Error("settlement event not published", zap.Error(err))
		}
		return nil
	}
}

func (e *Engine) lookup(ctx context.Context, provider ledger.Provider, ev event) (*ledger.Transaction, error) {
	if ev.reference != "" {
		tx, err := e.repo.FindByReference(ctx, ev.reference)
		if err == nil || !ledger.IsNotFound(err) {
			return tx, err
		}
	}
	return e.repo.FindByProviderTransactionID(ctx, provider, ev.providerTxID)
}

func newSettlement(tx *ledger.Transaction, eventID string) Settlement {
	return Settlement{
		EventID:               eventID,
		Reference:             tx.Reference,
		Provider:              string(tx.Provider),
		Operation:             string(tx.Operation),
		ProviderTransactionID: tx.ProviderTransactionID,
		Amount:                tx.Amount,
		Currency:              tx.Currency,
		Status:                string(tx.Status),
		SettledAt:             time.Now().UTC(),
	}
}
