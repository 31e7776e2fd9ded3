package webhook

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/example/payment-integration-service/internal/idempotency"
	"github.com/example/payment-integration-service/internal/ledger"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) PublishSettlement(ctx context.Context, s Settlement) error {
	return m.Called(ctx, s).Error(0)
}

// RepositoryMock wraps a real repository and lets tests fail Save.
type RepositoryMock struct {
	mock.Mock
	ledger.Repository
}

func (m *RepositoryMock) Save(ctx context.Context, tx *ledger.Transaction, from ledger.Status) error {
	return m.Called(ctx, tx, from).Error(0)
}

type GuardMock struct {
	mock.Mock
	idempotency.Guard
}

func (m *GuardMock) MarkIfAbsent(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// barrierRepository holds FindByReference until n readers have their copy, so
// concurrent deliveries all see the same starting row.
type barrierRepository struct {
	ledger.Repository
	n int

	mu      sync.Mutex
	arrived int
	release chan struct{}
}

func newBarrierRepository(repo ledger.Repository, n int) *barrierRepository {
	return &barrierRepository{Repository: repo, n: n, release: make(chan struct{})}
}

func (r *barrierRepository) FindByReference(ctx context.Context, reference string) (*ledger.Transaction, error) {
	tx, err := r.Repository.FindByReference(ctx, reference)
	r.mu.Lock()
	r.arrived++
	if r.arrived == r.n {
		close(r.release)
	}
	r.mu.Unlock()
	<-r.release
	return tx, err
}
