package saltedge

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// StringToSign builds the canonical "{expires}|{method}|{url}|{body}" message
// shared by outbound request signing and inbound callback verification.
func StringToSign(expiresAt, method, url, body string) string {
	return expiresAt + "|" + method + "|" + url + "|" + body
}

// Sign returns base64(HMAC-SHA256(secret, message)).
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches message under secret.
// The comparison runs in constant time.
func VerifySignature(secret, message, signature string) bool {
	expected := Sign(secret, message)
	return hmac.Equal([]byte(expected), []byte(signature))
}
