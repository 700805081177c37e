// Package signature computes and checks Razorpay HMAC-SHA256 signatures.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrMissingSecret is returned instead of signing with an empty key.
var ErrMissingSecret = errors.New("signature secret is not configured")

// Separator joins identifiers before signing, e.g. "order_id|payment_id".
const Separator = "|"

// Sign returns hex(HMAC-SHA256(secret, join(ids, "|"))).
func Sign(secret string, ids ...string) (string, error) {
	return SignPayload(secret, []byte(strings.Join(ids, Separator)))
}

// SignPayload returns hex(HMAC-SHA256(secret, body)).
func SignPayload(secret string, body []byte) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether candidate is the signature of ids under secret.
// A malformed candidate is a mismatch, not an error.
func Verify(secret, candidate string, ids ...string) (bool, error) {
	return VerifyPayload(secret, []byte(strings.Join(ids, Separator)), candidate)
}

// VerifyPayload reports whether candidate is the signature of body under secret.
func VerifyPayload(secret string, body []byte, candidate string) (bool, error) {
	expected, err := SignPayload(secret, body)
	if err != nil {
		return false, err
	}
	// Constant time over the exact hex text; "ABC" and "abc" are different
	// signatures. Lengths may leak, contents may not.
	return hmac.Equal([]byte(expected), []byte(candidate)), nil
}
