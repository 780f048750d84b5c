package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashQuery returns the one-way hash stored in audit events in place of raw
// query text, which may embed PHI-derived literals.
func HashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

// HashPHI returns a deterministic one-way hash of a PHI value, usable as an
// index or join key without exposing the value itself.
func HashPHI(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
