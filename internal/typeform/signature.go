package typeform

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const signaturePrefix = "sha256="

// Sign computes the signature Typeform attaches to a delivery: HMAC-SHA256
// over the raw request body, base64-encoded, prefixed with "sha256=".
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a delivery's signature header against the raw,
// unparsed body bytes. Hashing anything other than the exact bytes on the
// wire (a re-serialized parse, say) will not match the sender's signature.
// An empty secret fails closed.
func VerifySignature(body []byte, header, secret string) bool {
	if strings.TrimSpace(secret) == "" {
		return false
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	return hmac.Equal([]byte(Sign(body, secret)), []byte(header))
}
