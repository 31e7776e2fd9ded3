// Package api wires the payments HTTP surface: API-key protected payment
// routes, provider webhooks, health and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/example/payment-integration-service/pkg/metrics"
	"github.com/example/payment-integration-service/services/payments-api/handlers"
)

const serviceName = "payments-api"

type Options struct {
	AllowedOrigins []string
	APIKeyMatches  func(key string) bool
}

type APIServer struct {
	router   *mux.Router
	handler  http.Handler
	payments *handlers.Payments
	webhooks *handlers.Webhooks
	log      *zap.Logger
}

func NewAPIServer(opts Options, payments *handlers.Payments, webhooks *handlers.Webhooks, log *zap.Logger) *APIServer {
	if log == nil {
		log = zap.NewNop()
	}
	s := &APIServer{
		router:   mux.NewRouter(),
		payments: payments,
		webhooks: webhooks,
		log:      log.Named("http"),
	}
	s.setupRoutes(opts.APIKeyMatches)

	s.handler = cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", handlers.HeaderAPIKey},
	}).Handler(s.router)
	return s
}

func (s *APIServer) setupRoutes(apiKeyMatches func(string) bool) {
	s.router.Use(metrics.Middleware(serviceName))

	// metrics & health
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)

	// stripe routes are registered before {provider} so they win the match
	p := s.router.PathPrefix("/payments").Subrouter()
	p.Use(handlers.RequireAPIKey(apiKeyMatches))
	p.HandleFunc("/stripe/create-payment-intent", s.payments.CreateIntent).Methods(http.MethodPost)
	p.HandleFunc("/stripe/transfer", s.payments.Transfer).Methods(http.MethodPost)
	p.HandleFunc("/stripe/payout", s.payments.Payout).Methods(http.MethodPost)
	p.HandleFunc("/{provider}/collect", s.payments.Collect).Methods(http.MethodPost)
	p.HandleFunc("/{provider}/withdraw", s.payments.Withdraw).Methods(http.MethodPost)
	p.HandleFunc("/{reference}", s.payments.Get).Methods(http.MethodGet)

	wh := s.router.PathPrefix("/webhooks").Subrouter()
	wh.HandleFunc("/stripe", s.webhooks.Stripe).Methods(http.MethodPost)
	wh.HandleFunc("/mtn", s.webhooks.MTN).Methods(http.MethodPost)
	wh.HandleFunc("/airtel", s.webhooks.Airtel).Methods(http.MethodPost)
}

func (s *APIServer) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":      true,
		"service": serviceName,
		"ts":      time.Now().UTC(),
	})
}

func (s *APIServer) Handler() http.Handler { return s.handler }

// Start serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *APIServer) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("payments API listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
