package payment

import (
	"strings"

	perr "github.com/example/payment-integration-service/pkg/errors"
)

const (
	maxReferenceLen = 64
	minPhoneDigits  = 9
	maxPhoneDigits  = 15
)

func validateAmount(amount int64) error {
	if amount <= 0 {
		return perr.New(perr.CodeInvalidRequest, "amount must be a positive number of minor units")
	}
	return nil
}

func normalizeReference(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if len(ref) > maxReferenceLen {
		return "", perr.New(perr.CodeInvalidRequest, "reference must be at most 64 characters")
	}
	return ref, nil
}

// normalizePhone strips a leading '+' and requires 9-15 digits.
func normalizePhone(phone string) (string, error) {
	p := strings.TrimPrefix(strings.TrimSpace(phone), "+")
	if len(p) < minPhoneDigits || len(p) > maxPhoneDigits {
		return "", perr.New(perr.CodeInvalidRequest, "phone must have 9 to 15 digits")
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return "", perr.New(perr.CodeInvalidRequest, "phone must contain digits only")
		}
	}
	return p, nil
}
