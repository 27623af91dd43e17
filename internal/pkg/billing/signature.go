package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifyGatewaySignature checks a gateway payment-completion signature:
// hex(HMAC-SHA256(secret, orderID + "|" + paymentID)). The comparison is
// constant time. An empty secret means the rail is disabled, not silently
// insecure.
func VerifyGatewaySignature(orderID, paymentID, signature, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return &ConfigurationError{Reason: "payment gateway key secret is not set"}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signature)))
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(expected, got) {
		return ErrInvalidSignature
	}
	return nil
}
