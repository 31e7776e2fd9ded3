package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	perr "github.com/example/payment-integration-service/pkg/errors"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders a coded error. Internal causes are not echoed back.
func writeError(w http.ResponseWriter, err error) {
	code := perr.CodeOf(err)
	status := perr.HTTPStatus(code)
	msg := perr.MessageOf(err)
	if status >= http.StatusInternalServerError && code != perr.CodeProviderFailure {
		msg = "internal error"
	}
	writeJSON(w, status, ErrorOut{Error: code, Message: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return perr.New(perr.CodeInvalidRequest, "request body is empty")
		}
		return perr.Wrap(perr.CodeInvalidRequest, "malformed request body", err)
	}
	return nil
}
