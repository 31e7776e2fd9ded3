// payment-integration-service/pkg/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes shared by the orchestrator, the webhook engine and the HTTP layer.
const (
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeAlreadyExists    = "ALREADY_EXISTS"
	CodeProviderFailure  = "PROVIDER_FAILURE"
	CodeBadPayload       = "BAD_PAYLOAD"
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodeCryptography     = "CRYPTOGRAPHY"
	CodeNotFound         = "NOT_FOUND"
	CodeInternal         = "INTERNAL"
)

type E struct {
	Code    string
	Message string
	Err     error
}

func (e E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e E) Unwrap() error { return e.Err }

// Is matches any E carrying the same code, so callers can write
// errors.Is(err, errors.New(CodeBadPayload, "")).
func (e E) Is(target error) bool {
	var t E
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func New(code, msg string) error {
	return E{Code: code, Message: msg}
}

func Wrap(code, msg string, err error) error {
	return E{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost E in err's chain, or CodeInternal.
func CodeOf(err error) string {
	var e E
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the message of the outermost E, falling back to err.Error().
func MessageOf(err error) string {
	var e E
	if stderrors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func HasCode(err error, code string) bool {
	var e E
	return stderrors.As(err, &e) && e.Code == code
}

func HTTPStatus(code string) int {
	switch code {
	case CodeUnauthorized, CodeInvalidSignature:
		return http.StatusUnauthorized
	case CodeInvalidRequest, CodeBadPayload:
		return http.StatusBadRequest
	case CodeAlreadyExists:
		return http.StatusOK
	case CodeNotFound:
		return http.StatusNotFound
	case CodeProviderFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
