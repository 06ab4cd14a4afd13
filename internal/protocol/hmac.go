package protocol

import (
	"crypto/hmac"
	"crypto/sha256"
)

// sign returns the first n bytes of HMAC-SHA256(key, data).
func sign(key, data []byte, n int) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)[:n]
}

// verify constant-time-compares sig against HMAC-SHA256(key, data)[:len(sig)].
func verify(key, data, sig []byte) bool {
	expected := sign(key, data, len(sig))
	return hmac.Equal(expected, sig)
}

// CommunityHash returns the first 8 bytes of SHA-256(community). It is a
// namespacing value, not a secret (spec.md §3).
func CommunityHash(community string) [CommunityHashSize]byte {
	sum := sha256.Sum256([]byte(community))
	var out [CommunityHashSize]byte
	copy(out[:], sum[:CommunityHashSize])
	return out
}
