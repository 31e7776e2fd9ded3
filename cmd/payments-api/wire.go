package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/payment-integration-service/internal/config"
	"github.com/example/payment-integration-service/internal/gateway"
	"github.com/example/payment-integration-service/internal/idempotency"
	"github.com/example/payment-integration-service/internal/ledger"
	"github.com/example/payment-integration-service/internal/payment"
	"github.com/example/payment-integration-service/internal/webhook"
	"github.com/example/payment-integration-service/services/payments-api/queue"
)

func buildLedger(ctx context.Context, cfg config.Config, log *zap.Logger) (ledger.Repository, func(), error) {
	if cfg.Ledger.Backend != "postgres" {
		log.Warn("using in-memory ledger; transactions are lost on restart")
		return ledger.NewInMemoryRepository(), func() {}, nil
	}
	pool, err := ledger.OpenPostgres(ctx, cfg.Ledger.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	return ledger.NewPostgresRepository(pool), pool.Close, nil
}

func buildGuard(cfg config.Config) (idempotency.Guard, func()) {
	if cfg.Idempotency.Backend != "redis" {
		return idempotency.NewMemoryGuard(cfg.Idempotency.TTL), func() {}
	}
	g := idempotency.NewRedisGuard(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Idempotency.TTL)
	return g, func() { _ = g.Close() }
}

func buildPublisher(cfg config.Config, log *zap.Logger) (webhook.Publisher, func()) {
	if len(cfg.Kafka.Brokers) == 0 {
		return webhook.NopPublisher{}, func() {}
	}
	bus := queue.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	return bus, func() {
		if err := bus.Close(); err != nil {
			log.Warn("closing settlement publisher", zap.Error(err))
		}
	}
}

// buildGateways leaves a provider nil when its credentials are absent; the
// service then answers PROVIDER_FAILURE for it without touching the ledger.
func buildGateways(cfg config.Config, log *zap.Logger) payment.Gateways {
	bc := gateway.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		OpenTimeout:      cfg.Breaker.OpenTimeout,
	}
	var gws payment.Gateways

	mtn, err := gateway.NewMTN(gateway.MTNConfig{
		APIURL:          cfg.MTN.APIURL,
		ClientID:        cfg.MTN.ClientID,
		ClientSecret:    cfg.MTN.ClientSecret,
		SubscriptionKey: cfg.MTN.SubscriptionKey,
		TargetEnv:       cfg.MTN.TargetEnv,
		CallbackURL:     cfg.MTN.CallbackURL,
		Timeout:         cfg.ProviderTimeout,
	})
	if logUnconfigured(log, "mtn", err) {
		gws.MTN = gateway.NewBreakerMobileMoney("mtn", mtn, bc, log)
	}

	airtel, err := gateway.NewAirtel(gateway.AirtelConfig{
		APIURL:       cfg.Airtel.APIURL,
		ClientID:     cfg.Airtel.ClientID,
		ClientSecret: cfg.Airtel.ClientSecret,
		APIKey:       cfg.Airtel.APIKey,
		Country:      cfg.Airtel.Country,
		CallbackURL:  cfg.Airtel.CallbackURL,
		Timeout:      cfg.ProviderTimeout,
	})
	if logUnconfigured(log, "airtel", err) {
		gws.Airtel = gateway.NewBreakerMobileMoney("airtel", airtel, bc, log)
	}

	stripe, err := gateway.NewStripe(gateway.StripeConfig{
		SecretKey: cfg.Stripe.SecretKey,
		BaseURL:   cfg.Stripe.BaseURL,
		Timeout:   cfg.ProviderTimeout,
	})
	if logUnconfigured(log, "stripe", err) {
		gws.Card = gateway.NewBreakerCard("stripe", stripe, bc, log)
	}
	return gws
}

func logUnconfigured(log *zap.Logger, provider string, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, gateway.ErrNotConfigured):
		log.Warn("provider not configured, requests will fail", zap.String("provider", provider))
	default:
		log.Error("provider setup failed", zap.String("provider", provider), zap.Error(err))
	}
	return false
}
