// Package signature decodes and verifies HMAC-SHA256 webhook signatures sent by
// the mobile-money operators.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrBadFormat = errors.New("signature: bad format")
	ErrMismatch  = errors.New("signature: mismatch")
	ErrNoSecret  = errors.New("signature: secret not configured")
)

// Decode turns a signature header into raw digest bytes. A scheme prefix such
// as "sha256=" is dropped up to the first '=' unless that '=' only starts
// Base64 padding. The remainder is tried as
// standard Base64 first and as hex second.
//
// A 64-char hex digest is also valid Base64 (48 bytes), so a Base64 result
// only wins outright when it has the length of a SHA-256 digest.
func Decode(header string) ([]byte, error) {
	s := strings.TrimSpace(header)
	if idx := strings.IndexByte(s, '='); idx > 0 && strings.Trim(s[idx+1:], "=") != "" {
		s = s[idx+1:]
	}
	if s == "" {
		return nil, ErrBadFormat
	}
	b64, b64Err := base64.StdEncoding.DecodeString(s)
	if b64Err == nil && len(b64) == sha256.Size {
		return b64, nil
	}
	if len(s)%2 == 0 {
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}
	if b64Err == nil {
		return b64, nil
	}
	return nil, ErrBadFormat
}

func Compute(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

// Verify checks header against HMAC-SHA256(secret, body) in constant time.
func Verify(secret, body []byte, header string) error {
	if len(secret) == 0 {
		return ErrNoSecret
	}
	expected, err := Decode(header)
	if err != nil {
		return err
	}
	if !hmac.Equal(Compute(secret, body), expected) {
		return ErrMismatch
	}
	return nil
}

// Sign renders a header value in the "sha256=<hex>" form accepted by Decode.
func Sign(secret, body []byte) string {
	return "sha256=" + hex.EncodeToString(Compute(secret, body))
}
