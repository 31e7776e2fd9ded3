// services/provider-sandbox/main.go
package main

import (
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/payment-integration-service/pkg/logger"
	m "github.com/example/payment-integration-service/pkg/metrics"
)

const serviceName = "provider-sandbox"

func main() {
	zl, err := logger.New(getEnv("LOG_LEVEL", "info"), getEnv("LOG_FORMAT", "json"))
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	sb := newSandbox(
		rate("FAIL_RATE"),
		rate("DECLINE_RATE"),
		duration("CALLBACK_DELAY", 2*time.Second),
		map[operator]string{
			mtn:    os.Getenv("MTN_WEBHOOK_SECRET"),
			airtel: os.Getenv("AIRTEL_WEBHOOK_SECRET"),
		},
		rng.Float64,
		zl.Named(serviceName),
	)

	r := mux.NewRouter()
	r.Use(m.Middleware(serviceName))

	// health
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "service": serviceName})
	}).Methods(http.MethodGet)

	sb.routes(r)

	// expose metrics
	r.Handle("/metrics", promhttp.Handler())

	addr := getEnv("HTTP_ADDR", ":8081")
	zl.Info("listening", zap.String("service", serviceName), zap.String("addr", addr))
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		zl.Fatal("serve", zap.Error(err))
	}
}

/******************** Utils ********************/
func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// rate reads a probability in [0,1]; anything else means 0.
func rate(k string) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			return f
		}
	}
	return 0.0
}

func duration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if dur, err := time.ParseDuration(v); err == nil && dur >= 0 {
			return dur
		}
	}
	return d
}
