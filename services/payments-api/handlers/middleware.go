// services/payments-api/handlers/middleware.go
package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	perr "github.com/example/payment-integration-service/pkg/errors"
)

const HeaderAPIKey = "X-Api-Key"

// RequireAPIKey rejects requests whose X-Api-Key does not match.
func RequireAPIKey(matches func(key string) bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !matches(r.Header.Get(HeaderAPIKey)) {
				writeError(w, perr.New(perr.CodeUnauthorized, "Unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
