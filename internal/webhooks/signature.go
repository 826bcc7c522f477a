package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// Sign computes the hex-encoded HMAC-SHA256 of body under secret. This is the
// signature outbound deliveries carry and inbound callers must present.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a presented signature against the raw request body in constant
// time. A "sha256=" prefix on the header value is tolerated. The presented
// value is decoded before comparison so length never leaks a partial match.
func Verify(body []byte, presented, secret string) bool {
	presented = strings.TrimPrefix(presented, signaturePrefix)

	decoded, err := hex.DecodeString(presented)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}
