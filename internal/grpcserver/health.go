// Package grpcserver runs the admin gRPC endpoint. It serves the standard
// grpc.health.v1 service with one entry per backing store and an empty-name
// entry for the process as a whole.
package grpcserver

import (
	"context"
	"net"
	"sync"
	"time"

	gp "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const DefaultInterval = 15 * time.Second

// Pinger is satisfied by ledger.Repository and idempotency.Guard.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthServer struct {
	srv      *grpc.Server
	health   *health.Server
	checks   map[string]Pinger
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger

	stopOnce sync.Once
}

func NewHealthServer(checks map[string]Pinger, interval time.Duration, log *zap.Logger) *HealthServer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(gp.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(gp.StreamServerInterceptor),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	gp.Register(srv)

	// unknown until the first probe
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for name := range checks {
		hs.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}

	return &HealthServer{
		srv:      srv,
		health:   hs,
		checks:   checks,
		interval: interval,
		timeout:  interval / 2,
		log:      log.Named("grpc-health"),
	}
}

// Probe pings every backend once and publishes the results. The overall
// status is SERVING only when all backends answered.
func (h *HealthServer) Probe(ctx context.Context) bool {
	healthy := true
	for name, p := range h.checks {
		pctx, cancel := context.WithTimeout(ctx, h.timeout)
		err := p.Ping(pctx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			healthy = false
			status = healthpb.HealthCheckResponse_NOT_SERVING
			h.log.Warn("backend unhealthy", zap.String("backend", name), zap.Error(err))
		}
		h.health.SetServingStatus(name, status)
	}
	overall := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", overall)
	return healthy
}

// Run probes immediately and then every interval until ctx is done.
func (h *HealthServer) Run(ctx context.Context) {
	h.Probe(ctx)
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.Probe(ctx)
		}
	}
}

func (h *HealthServer) Serve(lis net.Listener) error {
	h.log.Info("serving gRPC health", zap.String("addr", lis.Addr().String()))
	return h.srv.Serve(lis)
}

// Stop flips every entry to NOT_SERVING so load balancers drain, then stops
// the server gracefully.
func (h *HealthServer) Stop() {
	h.stopOnce.Do(func() {
		h.health.Shutdown()
		h.srv.GracefulStop()
	})
}
