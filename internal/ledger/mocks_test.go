package ledger

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

type DBMock struct {
	mock.Mock
}

func (m *DBMock) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	a := m.Called(ctx, sql, args)
	return a.Get(0).(pgconn.CommandTag), a.Error(1)
}

func (m *DBMock) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	a := m.Called(ctx, sql, args)
	return a.Get(0).(pgx.Row)
}

func (m *DBMock) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// rowStub answers Scan with a fixed error, a fixed status or a fixed
// transaction.
type rowStub struct {
	tx     *Transaction
	status Status
	err    error
}

func (r rowStub) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.tx == nil {
		*dest[0].(*string) = string(r.status)
		return nil
	}
	vals := []any{
		r.tx.ID, r.tx.Reference, string(r.tx.Provider), string(r.tx.Operation), r.tx.ProviderTransactionID,
		r.tx.Amount, r.tx.Currency, string(r.tx.Status), r.tx.ProviderStatus, r.tx.Phone, r.tx.ClientSecret,
		r.tx.RawProviderResponse, r.tx.CreatedAt, r.tx.UpdatedAt,
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = vals[i].(string)
		case *int64:
			*p = vals[i].(int64)
		case *time.Time:
			*p = vals[i].(time.Time)
		}
	}
	return nil
}
