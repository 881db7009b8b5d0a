package functions

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SigningConfig holds HMAC authentication configuration for function calls
type SigningConfig struct {
	KeyID string // Identifies the signing key on the function gateway
	Key   string // Shared secret for HMAC signing
}

// CalculateSignature calculates the HMAC-SHA256 signature for a function call
// Signature = HMAC-SHA256(functionName + payload, key)
func CalculateSignature(key, functionName string, payload []byte) string {
	concat := append([]byte(functionName), payload...)

	h := hmac.New(sha256.New, []byte(key))
	h.Write(concat)

	return hex.EncodeToString(h.Sum(nil))
}

// ValidateSignature validates a signature in constant time
func ValidateSignature(key, functionName string, payload []byte, signature string) bool {
	expected := CalculateSignature(key, functionName, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
