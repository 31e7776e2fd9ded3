package payment

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/example/payment-integration-service/internal/gateway"
	"github.com/example/payment-integration-service/internal/ledger"
)

type RepositoryMock struct {
	mock.Mock
	ledger.Repository
}

func (m *RepositoryMock) FindByReference(ctx context.Context, reference string) (*ledger.Transaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *RepositoryMock) Create(ctx context.Context, tx *ledger.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *RepositoryMock) Save(ctx context.Context, tx *ledger.Transaction, from ledger.Status) error {
	return m.Called(ctx, tx, from).Error(0)
}

// ctxRepository fails writes on a finished context, like a database driver.
type ctxRepository struct {
	*ledger.InMemoryRepository
}

func (r ctxRepository) Save(ctx context.Context, tx *ledger.Transaction, from ledger.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.InMemoryRepository.Save(ctx, tx, from)
}

// blockingMobileMoney waits for the call context to end, or runs onCall and
// returns res.
type blockingMobileMoney struct {
	block  bool
	onCall func()
	res    gateway.Result
}

func (b blockingMobileMoney) InitiateCollection(ctx context.Context, _ gateway.MobileMoneyRequest) (gateway.Result, error) {
	if b.block {
		<-ctx.Done()
		return gateway.Result{}, ctx.Err()
	}
	if b.onCall != nil {
		b.onCall()
	}
	return b.res, nil
}

func (b blockingMobileMoney) InitiateWithdrawal(ctx context.Context, req gateway.MobileMoneyRequest) (gateway.Result, error) {
	return b.InitiateCollection(ctx, req)
}

type MobileMoneyMock struct {
	mock.Mock
}

func (m *MobileMoneyMock) InitiateCollection(ctx context.Context, req gateway.MobileMoneyRequest) (gateway.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(gateway.Result), args.Error(1)
}

func (m *MobileMoneyMock) InitiateWithdrawal(ctx context.Context, req gateway.MobileMoneyRequest) (gateway.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(gateway.Result), args.Error(1)
}

type CardMock struct {
	mock.Mock
}

func (m *CardMock) CreateIntent(ctx context.Context, req gateway.IntentRequest) (gateway.Intent, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(gateway.Intent), args.Error(1)
}

func (m *CardMock) Transfer(ctx context.Context, req gateway.TransferRequest) (gateway.Transfer, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(gateway.Transfer), args.Error(1)
}

func (m *CardMock) Payout(ctx context.Context, req gateway.TransferRequest) (gateway.Payout, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(gateway.Payout), args.Error(1)
}
