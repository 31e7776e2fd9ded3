package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Schema is applied by the migrate command. Uniqueness of reference is the
// guarantee the orchestrator relies on under concurrent requests.
const Schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id                      VARCHAR(36) PRIMARY KEY,
	reference               VARCHAR(64) NOT NULL,
	provider                VARCHAR(16) NOT NULL,
	operation               VARCHAR(16) NOT NULL,
	provider_transaction_id VARCHAR(128),
	amount                  BIGINT NOT NULL CHECK (amount > 0),
	currency                CHAR(3) NOT NULL,
	status                  VARCHAR(16) NOT NULL,
	provider_status         VARCHAR(64),
	phone                   VARCHAR(20),
	client_secret           TEXT,
	raw_provider_response   TEXT,
	created_at              TIMESTAMPTZ NOT NULL,
	updated_at              TIMESTAMPTZ NOT NULL
);
ALTER TABLE transactions ADD COLUMN IF NOT EXISTS provider_status VARCHAR(64);
CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_reference ON transactions (reference);
CREATE INDEX IF NOT EXISTS ix_transactions_provider_txid ON transactions (provider, provider_transaction_id);
`

const (
	qColumns = `id, reference, provider, operation, COALESCE(provider_transaction_id, ''), amount, currency, status,
COALESCE(provider_status, ''), COALESCE(phone, ''), COALESCE(client_secret, ''), COALESCE(raw_provider_response, ''),
created_at, updated_at`

	qInsert = `INSERT INTO transactions (id, reference, provider, operation, provider_transaction_id, amount, currency,
status, provider_status, phone, client_secret, raw_provider_response, created_at, updated_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''),
$13, $14)`

	// the status guard turns the update into a compare-and-set
	qUpdate = `UPDATE transactions SET provider_transaction_id = NULLIF($2, ''), status = $3, provider_status = NULLIF($4, ''),
client_secret = NULLIF($5, ''), raw_provider_response = NULLIF($6, ''), updated_at = $7 WHERE reference = $1 AND status = $8`

	qStatus = `SELECT status FROM transactions WHERE reference = $1`

	qByReference  = `SELECT ` + qColumns + ` FROM transactions WHERE reference = $1`
	qByProviderTx = `SELECT ` + qColumns + ` FROM transactions WHERE provider = $1 AND provider_transaction_id = $2
ORDER BY created_at DESC LIMIT 1`
)

// DB is the slice of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres connects a pool and verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	return pool, nil
}

func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ledger: migrate: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByReference(ctx context.Context, reference string) (*Transaction, error) {
	return r.scanOne(r.db.QueryRow(ctx, qByReference, reference))
}

func (r *PostgresRepository) FindByProviderTransactionID(ctx context.Context, provider Provider, providerTxID string) (*Transaction, error) {
	if providerTxID == "" {
		return nil, ErrNotFound
	}
	return r.scanOne(r.db.QueryRow(ctx, qByProviderTx, string(provider), providerTxID))
}

func (r *PostgresRepository) Create(ctx context.Context, t *Transaction) error {
	_, err := r.db.Exec(ctx, qInsert,
		t.ID, t.Reference, string(t.Provider), string(t.Operation), t.ProviderTransactionID,
		t.Amount, t.Currency, string(t.Status), t.ProviderStatus, t.Phone, t.ClientSecret, t.RawProviderResponse,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateReference
		}
		return fmt.Errorf("ledger: insert %s: %w", t.Reference, err)
	}
	return nil
}

func (r *PostgresRepository) Save(ctx context.Context, t *Transaction, from Status) error {
	tag, err := r.db.Exec(ctx, qUpdate,
		t.Reference, t.ProviderTransactionID, string(t.Status), t.ProviderStatus, t.ClientSecret,
		t.RawProviderResponse, t.UpdatedAt, string(from),
	)
	if err != nil {
		return fmt.Errorf("ledger: update %s: %w", t.Reference, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var current string
	err = r.db.QueryRow(ctx, qStatus, t.Reference).Scan(&current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("ledger: status %s: %w", t.Reference, err)
	}
	return fmt.Errorf("%w: %s is %s, expected %s", ErrStaleStatus, t.Reference, current, from)
}

func (r *PostgresRepository) Ping(ctx context.Context) error { return r.db.Ping(ctx) }

func (r *PostgresRepository) scanOne(row pgx.Row) (*Transaction, error) {
	var (
		t                           Transaction
		provider, operation, status string
	)
	err := row.Scan(&t.ID, &t.Reference, &provider, &operation, &t.ProviderTransactionID, &t.Amount,
		&t.Currency, &status, &t.ProviderStatus, &t.Phone, &t.ClientSecret, &t.RawProviderResponse, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: scan: %w", err)
	}
	t.Provider = Provider(provider)
	t.Operation = Operation(operation)
	t.Status = Status(status)
	return &t, nil
}
