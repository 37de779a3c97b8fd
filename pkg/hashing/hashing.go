// Package hashing computes the keyed name hash used to compare child
// names under a folder without decrypting them.
package hashing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// NameHash returns HMAC-SHA256(parentHashKey, name) rendered as lowercase
// hex. This is the value sent as "hash" on create, rename, and move.
func NameHash(parentHashKey []byte, name string) string {
	mac := hmac.New(sha256.New, parentHashKey)
	mac.Write([]byte(name))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal reports whether two hex-encoded hashes refer to the same name
// hash, using a constant-time comparison so cache/lookup code never leaks
// timing information about hash contents.
func Equal(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	decodedA, err := hex.DecodeString(a)
	if err != nil {
		return false
	}
	decodedB, err := hex.DecodeString(b)
	if err != nil {
		return false
	}
	return hmac.Equal(decodedA, decodedB)
}
