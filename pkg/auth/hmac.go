package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
)

// SignaturePrefix is the algorithm tag GitHub puts in front of the X-Hub-Signature digest
const SignaturePrefix = "sha1="

// Sign computes the X-Hub-Signature header value for body
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is the HMAC-SHA1 of the raw body
// under secret. Missing or malformed signatures are rejected. The comparison
// runs in constant time over the expected length; a length mismatch is
// rejected without comparing bytes.
func VerifySignature(signature string, body []byte, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	expected := Sign(body, secret)
	if len(signature) != len(expected) {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
