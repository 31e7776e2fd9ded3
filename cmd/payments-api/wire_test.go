package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/payment-integration-service/internal/config"
	"github.com/example/payment-integration-service/internal/idempotency"
	"github.com/example/payment-integration-service/internal/ledger"
	"github.com/example/payment-integration-service/internal/webhook"
	"github.com/example/payment-integration-service/services/payments-api/queue"
)

func TestBuildGuard(t *testing.T) {
	cfg := config.Config{Idempotency: config.Idempotency{Backend: "memory", TTL: time.Hour}}
	g, closeFn := buildGuard(cfg)
	defer closeFn()
	require.IsType(t, &idempotency.MemoryGuard{}, g)

	mr := miniredis.RunT(t)
	cfg.Idempotency.Backend = "redis"
	cfg.Redis.Addr = mr.Addr()
	g, closeFn = buildGuard(cfg)
	defer closeFn()
	require.IsType(t, &idempotency.RedisGuard{}, g)

	fresh, err := g.MarkIfAbsent(context.Background(), "evt_1")
	require.NoError(t, err)
	require.True(t, fresh)
	require.True(t, mr.Exists("webhook:event:evt_1"))
}

func TestBuildPublisher(t *testing.T) {
	p, closeFn := buildPublisher(config.Config{}, zap.NewNop())
	closeFn()
	require.IsType(t, webhook.NopPublisher{}, p)

	p, closeFn = buildPublisher(config.Config{Kafka: config.Kafka{Brokers: []string{"localhost:9092"}, Topic: "payments.settled"}}, zap.NewNop())
	defer closeFn()
	bus, ok := p.(*queue.Bus)
	require.True(t, ok)
	require.Equal(t, "payments.settled", bus.Topic())
}

func TestBuildLedger_Memory(t *testing.T) {
	repo, closeFn, err := buildLedger(context.Background(), config.Config{Ledger: config.Ledger{Backend: "memory"}}, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()
	require.IsType(t, &ledger.InMemoryRepository{}, repo)
}

func TestBuildGateways(t *testing.T) {
	gws := buildGateways(config.Config{}, zap.NewNop())
	require.Nil(t, gws.MTN)
	require.Nil(t, gws.Airtel)
	require.Nil(t, gws.Card)

	var cfg config.Config
	cfg.MTN = config.MTN{APIURL: "http://sandbox/mtn", ClientID: "id", ClientSecret: "s", SubscriptionKey: "k"}
	cfg.Airtel = config.Airtel{APIURL: "http://sandbox/airtel", ClientID: "id", ClientSecret: "s"}
	cfg.Stripe = config.Stripe{SecretKey: "sk_test_123"}
	gws = buildGateways(cfg, zap.NewNop())
	require.NotNil(t, gws.MTN)
	require.NotNil(t, gws.Airtel)
	require.NotNil(t, gws.Card)
}

func TestRootCmd(t *testing.T) {
	root := rootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["serve"])
	require.True(t, names["migrate"])

	t.Setenv("PIS_LEDGER_DSN", "")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"migrate"})
	require.EqualError(t, root.Execute(), "ledger.dsn is required for migrate")
}
