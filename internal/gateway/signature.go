package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

func hmacSHA256Hex(secret string, parts ...[]byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	for _, p := range parts {
		mac.Write(p)
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// equalHex compares two hex signatures in constant time, ignoring case.
func equalHex(expected, got string) bool {
	want, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	have, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(got)))
	if err != nil {
		return false
	}
	return hmac.Equal(want, have)
}
