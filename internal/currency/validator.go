package currency

import (
	"strings"

	perr "github.com/example/payment-integration-service/pkg/errors"
)

const DefaultCode = "USD"

var supported = func() map[string]struct{} {
	codes := []string{
		"AED", "AFN", "ALL", "AMD", "ANG", "AOA", "ARS", "AUD", "AWG", "AZN",
		"BAM", "BBD", "BDT", "BGN", "BIF", "BMD", "BND", "BOB", "BRL", "BSD",
		"BWP", "BYN", "BZD", "CAD", "CDF", "CHF", "CLP", "CNY", "COP", "CRC",
		"CVE", "CZK", "DJF", "DKK", "DOP", "DZD", "EGP", "ETB", "EUR", "FJD",
		"FKP", "GBP", "GEL", "GIP", "GMD", "GNF", "GTQ", "GYD", "HKD", "HNL",
		"HRK", "HTG", "HUF", "IDR", "ILS", "INR", "ISK", "JMD", "JPY", "KES",
		"KGS", "KHR", "KMF", "KRW", "KYD", "KZT", "LAK", "LBP", "LKR", "LRD",
		"LSL", "MAD", "MDL", "MGA", "MKD", "MMK", "MNT", "MOP", "MRU", "MUR",
		"MVR", "MWK", "MXN", "MYR", "MZN", "NAD", "NGN", "NIO", "NOK", "NPR",
		"NZD", "PAB", "PEN", "PGK", "PHP", "PKR", "PLN", "PYG", "QAR", "RON",
		"RSD", "RUB", "RWF", "SAR", "SBD", "SCR", "SEK", "SGD", "SHP", "SLL",
		"SOS", "SRD", "STN", "SZL", "THB", "TJS", "TOP", "TRY", "TTD", "TWD",
		"TZS", "UAH", "UGX", "USD", "UYU", "UZS", "VND", "VUV", "WST", "XAF",
		"XCD", "XOF", "XPF", "YER", "ZAR", "ZMW",
	}
	m := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		m[c] = struct{}{}
	}
	return m
}()

// Validator normalizes currency codes against the fixed supported set. The
// zero value falls back to DefaultCode.
type Validator struct {
	fallback string
}

// NewValidator returns a Validator that substitutes fallback for blank codes.
// An empty or unsupported fallback is replaced with DefaultCode.
func NewValidator(fallback string) Validator {
	f := strings.ToUpper(strings.TrimSpace(fallback))
	if !IsSupported(f) {
		f = DefaultCode
	}
	return Validator{fallback: f}
}

func (v Validator) Default() string {
	if v.fallback == "" {
		return DefaultCode
	}
	return v.fallback
}

func (v Validator) Validate(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" {
		return v.Default(), nil
	}
	if len(c) != 3 {
		return "", perr.New(perr.CodeInvalidRequest, "currency must be a 3-letter ISO-4217 code")
	}
	if _, ok := supported[c]; !ok {
		return "", perr.New(perr.CodeInvalidRequest, "unsupported currency: "+code)
	}
	return c, nil
}

func IsSupported(code string) bool {
	_, ok := supported[strings.ToUpper(code)]
	return ok
}

// Count returns the number of supported currency codes.
func Count() int { return len(supported) }
