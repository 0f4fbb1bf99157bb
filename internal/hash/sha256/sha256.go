// Package sha256 digests archived run reports.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements report.Hasher with hex-encoded SHA-256.
type Hasher struct{}

// New returns a Hasher.
func New() Hasher {
	return Hasher{}
}

// Hash returns the lowercase hex digest of data. It never fails.
func (Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
