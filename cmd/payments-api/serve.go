package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/payment-integration-service/internal/config"
	"github.com/example/payment-integration-service/internal/currency"
	"github.com/example/payment-integration-service/internal/grpcserver"
	"github.com/example/payment-integration-service/internal/payment"
	"github.com/example/payment-integration-service/internal/webhook"
	"github.com/example/payment-integration-service/pkg/logger"
	api "github.com/example/payment-integration-service/services/payments-api"
	"github.com/example/payment-integration-service/services/payments-api/handlers"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the payments HTTP API and the admin gRPC health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	repo, closeRepo, err := buildLedger(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	guard, closeGuard := buildGuard(cfg)
	defer closeGuard()

	pub, closePub := buildPublisher(cfg, log)
	defer closePub()

	svc := payment.NewService(repo, buildGateways(cfg, log), currency.NewValidator(cfg.DefaultCurrency), cfg.ProviderTimeout, log)
	engine := webhook.NewEngine(webhook.Config{
		Secrets: webhook.Secrets{
			Stripe: cfg.Webhook.Secrets.Stripe,
			MTN:    cfg.Webhook.Secrets.MTN,
			Airtel: cfg.Webhook.Secrets.Airtel,
		},
		Skew: cfg.Webhook.Skew,
	}, guard, repo, pub, log)

	server := api.NewAPIServer(
		api.Options{AllowedOrigins: cfg.CORS.AllowedOrigins, APIKeyMatches: cfg.APIKeyMatches},
		handlers.NewPayments(svc, log),
		handlers.NewWebhooks(engine, log),
		log,
	)

	health := grpcserver.NewHealthServer(map[string]grpcserver.Pinger{
		"ledger":      repo,
		"idempotency": guard,
	}, grpcserver.DefaultInterval, log)
	lis, err := net.Listen("tcp", cfg.AdminAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.AdminAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		health.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return health.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		health.Stop()
		return nil
	})
	g.Go(func() error {
		return server.Start(gctx, cfg.HTTPAddr)
	})

	log.Info("payments-api started",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("admin_addr", cfg.AdminAddr),
		zap.String("ledger", cfg.Ledger.Backend),
		zap.String("idempotency", cfg.Idempotency.Backend),
	)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("payments-api stopped")
	return nil
}
