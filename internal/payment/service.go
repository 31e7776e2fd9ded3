package payment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/payment-integration-service/internal/currency"
	"github.com/example/payment-integration-service/internal/gateway"
	"github.com/example/payment-integration-service/internal/ledger"
	perr "github.com/example/payment-integration-service/pkg/errors"
	"github.com/example/payment-integration-service/pkg/logger"
	"github.com/example/payment-integration-service/pkg/metrics"
)

const (
	defaultProviderTimeout = 30 * time.Second
	// persistTimeout bounds the ledger write after a provider call. The write
	// runs detached from the request so a client hang-up cannot strand the
	// row in PENDING.
	persistTimeout = 5 * time.Second
)

// Gateways is the set of configured provider adapters. A nil entry means the
// provider is not configured and its operations are rejected before any row
// is written.
type Gateways struct {
	MTN    gateway.MobileMoney
	Airtel gateway.MobileMoney
	Card   gateway.Card
}

type Service struct {
	repo     ledger.Repository
	gateways Gateways
	currency currency.Validator
	timeout  time.Duration
	log      *zap.Logger
	newID    func() string
}

func NewService(repo ledger.Repository, gateways Gateways, validator currency.Validator, timeout time.Duration, log *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		gateways: gateways,
		currency: validator,
		timeout:  timeout,
		log:      log.Named("payment"),
		newID:    uuid.NewString,
	}
}

// outcome is what a provider call contributes to the ledger row.
type outcome struct {
	status         ledger.Status
	providerStatus string
	providerTxID   string
	raw            string
	clientSecret   string
}

type providerCall func(ctx context.Context, tx *ledger.Transaction) (outcome, error)

func (s *Service) Collect(ctx context.Context, req MobileMoneyRequest) (*Result, error) {
	return s.mobileMoney(ctx, ledger.OperationCollect, req)
}

func (s *Service) Withdraw(ctx context.Context, req MobileMoneyRequest) (*Result, error) {
	return s.mobileMoney(ctx, ledger.OperationWithdraw, req)
}

func (s *Service) mobileMoney(ctx context.Context, op ledger.Operation, req MobileMoneyRequest) (*Result, error) {
	var gw gateway.MobileMoney
	switch req.Provider {
	case ledger.ProviderMTN:
		gw = s.gateways.MTN
	case ledger.ProviderAirtel:
		gw = s.gateways.Airtel
	default:
		return nil, perr.New(perr.CodeInvalidRequest, "provider must be mtn or airtel")
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	ref, err := normalizeReference(req.Reference)
	if err != nil {
		return nil, err
	}
	cur, err := s.currency.Validate(req.Currency)
	if err != nil {
		return nil, err
	}
	if gw == nil {
		return nil, perr.Wrap(perr.CodeProviderFailure, string(req.Provider)+" is not configured", gateway.ErrNotConfigured)
	}

	tx := &ledger.Transaction{
		Reference: ref,
		Provider:  req.Provider,
		Operation: op,
		Amount:    req.Amount,
		Currency:  cur,
		Phone:     phone,
	}
	return s.initiate(ctx, tx, "", func(ctx context.Context, tx *ledger.Transaction) (outcome, error) {
		gr := gateway.MobileMoneyRequest{Phone: tx.Phone, Amount: tx.Amount, Currency: tx.Currency, Reference: tx.Reference}
		var (
			res gateway.Result
			err error
		)
		if op == ledger.OperationCollect {
			res, err = gw.InitiateCollection(ctx, gr)
		} else {
			res, err = gw.InitiateWithdrawal(ctx, gr)
		}
		if err != nil {
			return outcome{}, err
		}
		return outcome{
			status:         statusFromProvider(res.Status),
			providerStatus: res.Status,
			providerTxID:   res.ProviderTransactionID,
			raw:            res.Body,
		}, nil
	})
}

func (s *Service) CreateIntent(ctx context.Context, req IntentRequest) (*Result, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	ref, err := normalizeReference(req.Reference)
	if err != nil {
		return nil, err
	}
	cur, err := s.currency.Validate(req.Currency)
	if err != nil {
		return nil, err
	}
	if s.gateways.Card == nil {
		return nil, perr.Wrap(perr.CodeProviderFailure, "stripe is not configured", gateway.ErrNotConfigured)
	}

	tx := &ledger.Transaction{
		Reference: ref,
		Provider:  ledger.ProviderStripe,
		Operation: ledger.OperationIntent,
		Amount:    req.Amount,
		Currency:  cur,
	}
	return s.initiate(ctx, tx, "", func(ctx context.Context, tx *ledger.Transaction) (outcome, error) {
		intent, err := s.gateways.Card.CreateIntent(ctx, gateway.IntentRequest{
			Amount:    tx.Amount,
			Currency:  tx.Currency,
			Reference: tx.Reference,
		})
		if err != nil {
			return outcome{}, err
		}
		return outcome{
			status:         ledger.StatusCreated,
			providerStatus: intent.Status,
			providerTxID:   intent.ID,
			raw:            intent.Raw,
			clientSecret:   intent.ClientSecret,
		}, nil
	})
}

func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*Result, error) {
	if strings.TrimSpace(req.ConnectedAccountID) == "" {
		return nil, perr.New(perr.CodeInvalidRequest, "connectedAccountId is required for transfers")
	}
	return s.card(ctx, ledger.OperationTransfer, "transfer-", req, func(ctx context.Context, gr gateway.TransferRequest) (outcome, error) {
		tr, err := s.gateways.Card.Transfer(ctx, gr)
		if err != nil {
			return outcome{}, err
		}
		return outcome{status: ledger.StatusSuccess, providerTxID: tr.ID, raw: tr.Raw}, nil
	})
}

func (s *Service) Payout(ctx context.Context, req TransferRequest) (*Result, error) {
	return s.card(ctx, ledger.OperationPayout, "payout-", req, func(ctx context.Context, gr gateway.TransferRequest) (outcome, error) {
		po, err := s.gateways.Card.Payout(ctx, gr)
		if err != nil {
			return outcome{}, err
		}
		return outcome{status: statusFromPayout(po.Status), providerStatus: po.Status, providerTxID: po.ID, raw: po.Raw}, nil
	})
}

func (s *Service) card(ctx context.Context, op ledger.Operation, prefix string, req TransferRequest,
	call func(context.Context, gateway.TransferRequest) (outcome, error)) (*Result, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	ref, err := normalizeReference(req.Reference)
	if err != nil {
		return nil, err
	}
	cur, err := s.currency.Validate(req.Currency)
	if err != nil {
		return nil, err
	}
	if s.gateways.Card == nil {
		return nil, perr.Wrap(perr.CodeProviderFailure, "stripe is not configured", gateway.ErrNotConfigured)
	}
	account := strings.TrimSpace(req.ConnectedAccountID)

	tx := &ledger.Transaction{
		Reference: ref,
		Provider:  ledger.ProviderStripe,
		Operation: op,
		Amount:    req.Amount,
		Currency:  cur,
	}
	return s.initiate(ctx, tx, prefix, func(ctx context.Context, tx *ledger.Transaction) (outcome, error) {
		return call(ctx, gateway.TransferRequest{
			Amount:             tx.Amount,
			Currency:           tx.Currency,
			Reference:          tx.Reference,
			ConnectedAccountID: account,
		})
	})
}

func (s *Service) Get(ctx context.Context, reference string) (*ledger.Transaction, error) {
	tx, err := s.repo.FindByReference(ctx, strings.TrimSpace(reference))
	if ledger.IsNotFound(err) {
		return nil, perr.New(perr.CodeNotFound, "transaction not found")
	}
	if err != nil {
		return nil, perr.Wrap(perr.CodeInternal, "ledger lookup failed", err)
	}
	return tx, nil
}

// initiate runs the shared dedupe, create, call and persist sequence. The
// caller has validated tx; refPrefix is used when a reference is synthesized.
func (s *Service) initiate(ctx context.Context, tx *ledger.Transaction, refPrefix string, call providerCall) (*Result, error) {
	log := s.log.With(
		zap.String("provider", string(tx.Provider)),
		zap.String("operation", string(tx.Operation)),
	)

	if tx.Reference != "" {
		existing, err := s.repo.FindByReference(ctx, tx.Reference)
		switch {
		case err == nil:
			log.Info("reference already known, returning stored transaction", zap.String("reference", tx.Reference))
			return existingResult(existing), nil
		case !ledger.IsNotFound(err):
			return nil, perr.Wrap(perr.CodeInternal, "ledger lookup failed", err)
		}
	} else {
		tx.Reference = refPrefix + s.newID()
	}

	now := time.Now().UTC()
	tx.ID = s.newID()
	tx.Status = ledger.StatusPending
	tx.CreatedAt = now
	tx.UpdatedAt = now

	if err := s.repo.Create(ctx, tx); err != nil {
		if !ledger.IsDuplicate(err) {
			return nil, perr.Wrap(perr.CodeInternal, "ledger insert failed", err)
		}
		// lost a race with a concurrent request for the same reference
		existing, err := s.repo.FindByReference(ctx, tx.Reference)
		if err != nil {
			return nil, perr.Wrap(perr.CodeInternal, "ledger lookup failed", err)
		}
		log.Info("duplicate insert resolved to stored transaction", zap.String("reference", tx.Reference))
		return existingResult(existing), nil
	}

	log = log.With(zap.String("reference", tx.Reference))
	if tx.Phone != "" {
		log = log.With(zap.String("phone", logger.RedactPhone(tx.Phone)))
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	out, callErr := call(cctx, tx)
	cancel()

	if callErr != nil {
		tx.RawProviderResponse = callErr.Error()
		_ = tx.Transition(ledger.StatusFailed)
		metrics.IncProviderCall(string(tx.Provider), string(tx.Operation), string(tx.Status))
		log.Error("provider call failed", zap.Error(callErr))
		if err := s.persist(ctx, tx); err != nil {
			log.Error("could not persist failed transaction", zap.Error(err))
		}
		return nil, perr.Wrap(perr.CodeProviderFailure, string(tx.Provider)+" call failed", callErr)
	}

	tx.ProviderTransactionID = out.providerTxID
	tx.ProviderStatus = out.providerStatus
	tx.RawProviderResponse = out.raw
	tx.ClientSecret = out.clientSecret
	if err := tx.Transition(out.status); err != nil {
		_ = tx.Transition(ledger.StatusFailed)
		if saveErr := s.persist(ctx, tx); saveErr != nil {
			log.Error("could not persist failed transaction", zap.Error(saveErr))
		}
		return nil, perr.Wrap(perr.CodeInternal, "unexpected provider outcome", err)
	}
	metrics.IncProviderCall(string(tx.Provider), string(tx.Operation), string(tx.Status))

	if err := s.persist(ctx, tx); err != nil {
		log.Error("could not persist provider outcome", zap.Error(err))
		return nil, perr.Wrap(perr.CodeInternal, "ledger update failed", err)
	}
	log.Info("provider call completed",
		zap.String("status", string(tx.Status)),
		zap.String("provider_status", out.providerStatus),
	)

	return &Result{Transaction: tx, ProviderStatus: out.providerStatus, RawBody: out.raw}, nil
}

// persist moves the row out of PENDING. It keeps the request's values but
// not its cancellation.
func (s *Service) persist(ctx context.Context, tx *ledger.Transaction) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	return s.repo.Save(pctx, tx, ledger.StatusPending)
}

func existingResult(tx *ledger.Transaction) *Result {
	return &Result{
		Transaction:    tx,
		Existing:       true,
		ProviderStatus: tx.ProviderStatus,
		RawBody:        tx.RawProviderResponse,
	}
}

// statusFromProvider maps a mobile-money status. Anything that is not a
// success or an acknowledged in-flight request is a failure.
func statusFromProvider(s string) ledger.Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case gateway.StatusSuccess:
		return ledger.StatusSuccess
	case gateway.StatusPending, gateway.StatusAccepted:
		return ledger.StatusInitiated
	default:
		return ledger.StatusFailed
	}
}

func statusFromPayout(s string) ledger.Status {
	switch strings.ToLower(s) {
	case "paid":
		return ledger.StatusSuccess
	case "pending", "in_transit":
		return ledger.StatusInitiated
	default:
		return ledger.StatusFailed
	}
}

var _ ServiceContract = (*Service)(nil)
