// Package credential provides the caller identity digest.
// This package has NO dependencies on I/O or external packages.
package credential

import (
	"crypto/sha256"
	"encoding/hex"
)

// DigestPrefix marks digested credentials so they cannot be confused with
// raw API keys in logs or storage.
const DigestPrefix = "mk_"

// digestLen is the number of hex characters kept from the SHA-256 sum.
// 16 hex chars = 64 bits, plenty for attribution, useless for reversal.
const digestLen = 16

// Digest returns a short non-reversible identifier for a raw API key.
// The raw key is never persisted; every store and log line sees only this.
// Empty input returns the empty string.
func Digest(raw string) string {
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(raw))
	return DigestPrefix + hex.EncodeToString(sum[:])[:digestLen]
}

// IsDigest reports whether s already looks like a digested credential.
func IsDigest(s string) bool {
	return len(s) == len(DigestPrefix)+digestLen && s[:len(DigestPrefix)] == DigestPrefix
}
