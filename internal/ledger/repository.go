package ledger

import (
	"context"
	"sync"
)

// Repository persists transactions. Create must reject a second row with the
// same reference with ErrDuplicateReference; lookups return ErrNotFound.
//
// Save is a compare-and-set: it writes tx only while the stored row is still
// in status from, and returns ErrStaleStatus otherwise.
type Repository interface {
	FindByReference(ctx context.Context, reference string) (*Transaction, error)
	FindByProviderTransactionID(ctx context.Context, provider Provider, providerTxID string) (*Transaction, error)
	Create(ctx context.Context, tx *Transaction) error
	Save(ctx context.Context, tx *Transaction, from Status) error
	Ping(ctx context.Context) error
}

type InMemoryRepository struct {
	mu   sync.Mutex
	data map[string]*Transaction
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{data: make(map[string]*Transaction)}
}

func (r *InMemoryRepository) FindByReference(_ context.Context, reference string) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[reference]
	if !ok {
		return nil, ErrNotFound
	}
	cpy := *t
	return &cpy, nil
}

func (r *InMemoryRepository) FindByProviderTransactionID(_ context.Context, provider Provider, providerTxID string) (*Transaction, error) {
	if providerTxID == "" {
		return nil, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.data {
		if t.Provider == provider && t.ProviderTransactionID == providerTxID {
			cpy := *t
			return &cpy, nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryRepository) Create(_ context.Context, tx *Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[tx.Reference]; ok {
		return ErrDuplicateReference
	}
	cpy := *tx
	r.data[tx.Reference] = &cpy
	return nil
}

func (r *InMemoryRepository) Save(_ context.Context, tx *Transaction, from Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.data[tx.Reference]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != from {
		return ErrStaleStatus
	}
	cpy := *tx
	r.data[tx.Reference] = &cpy
	return nil
}

func (r *InMemoryRepository) Ping(context.Context) error { return nil }
