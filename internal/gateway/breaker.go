package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type BreakerConfig struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func newBreaker(name string, cfg BreakerConfig, log *zap.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// countsAsSuccess keeps upstream 4xx answers (declines, bad destination
// accounts) from tripping the breaker; the service itself is healthy.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var pe *ProviderError
	return errors.As(err, &pe) && pe.HTTPStatus >= 400 && pe.HTTPStatus < 500
}

// BreakerMobileMoney fails fast with gobreaker.ErrOpenState once an operator
// keeps erroring. FAILED results do not count against the breaker.
type BreakerMobileMoney struct {
	next MobileMoney
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerMobileMoney(name string, next MobileMoney, cfg BreakerConfig, log *zap.Logger) *BreakerMobileMoney {
	return &BreakerMobileMoney{next: next, cb: newBreaker(name, cfg, log)}
}

func (b *BreakerMobileMoney) InitiateCollection(ctx context.Context, req MobileMoneyRequest) (Result, error) {
	return runResult(b.cb, func() (Result, error) { return b.next.InitiateCollection(ctx, req) })
}

func (b *BreakerMobileMoney) InitiateWithdrawal(ctx context.Context, req MobileMoneyRequest) (Result, error) {
	return runResult(b.cb, func() (Result, error) { return b.next.InitiateWithdrawal(ctx, req) })
}

func runResult(cb *gobreaker.CircuitBreaker, fn func() (Result, error)) (Result, error) {
	out, err := cb.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		return Result{}, err
	}
	return out.(Result), nil
}

type BreakerCard struct {
	next Card
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerCard(name string, next Card, cfg BreakerConfig, log *zap.Logger) *BreakerCard {
	return &BreakerCard{next: next, cb: newBreaker(name, cfg, log)}
}

func (b *BreakerCard) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	out, err := b.cb.Execute(func() (interface{}, error) { return b.next.CreateIntent(ctx, req) })
	if err != nil {
		return Intent{}, err
	}
	return out.(Intent), nil
}

func (b *BreakerCard) Transfer(ctx context.Context, req TransferRequest) (Transfer, error) {
	out, err := b.cb.Execute(func() (interface{}, error) { return b.next.Transfer(ctx, req) })
	if err != nil {
		return Transfer{}, err
	}
	return out.(Transfer), nil
}

func (b *BreakerCard) Payout(ctx context.Context, req TransferRequest) (Payout, error) {
	out, err := b.cb.Execute(func() (interface{}, error) { return b.next.Payout(ctx, req) })
	if err != nil {
		return Payout{}, err
	}
	return out.(Payout), nil
}
