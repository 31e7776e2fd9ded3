package handlers

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"

	"github.com/example/payment-integration-service/internal/ledger"
	"github.com/example/payment-integration-service/internal/payment"
	"github.com/example/payment-integration-service/internal/webhook"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) result(args mock.Arguments) (*payment.Result, error) {
	if res, ok := args.Get(0).(*payment.Result); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ServiceMock) Collect(ctx context.Context, req payment.MobileMoneyRequest) (*payment.Result, error) {
	return m.result(m.Called(ctx, req))
}

func (m *ServiceMock) Withdraw(ctx context.Context, req payment.MobileMoneyRequest) (*payment.Result, error) {
	return m.result(m.Called(ctx, req))
}

func (m *ServiceMock) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Result, error) {
	return m.result(m.Called(ctx, req))
}

func (m *ServiceMock) Transfer(ctx context.Context, req payment.TransferRequest) (*payment.Result, error) {
	return m.result(m.Called(ctx, req))
}

func (m *ServiceMock) Payout(ctx context.Context, req payment.TransferRequest) (*payment.Result, error) {
	return m.result(m.Called(ctx, req))
}

func (m *ServiceMock) Get(ctx context.Context, reference string) (*ledger.Transaction, error) {
	args := m.Called(ctx, reference)
	if tx, ok := args.Get(0).(*ledger.Transaction); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

type ProcessorMock struct {
	mock.Mock
}

func (m *ProcessorMock) Handle(ctx context.Context, provider ledger.Provider, payload []byte, headers http.Header) (webhook.Outcome, error) {
	args := m.Called(ctx, provider, payload, headers)
	return args.Get(0).(webhook.Outcome), args.Error(1)
}
