// Package sha256 derives content digests used as fallback canonical ids for
// items whose source does not expose a stable identifier.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements crawler.Hasher using SHA-256.
type Hasher struct {
	prefix string
}

// New returns a SHA-256 hasher. Digests are prefixed with prefix so they
// cannot collide with ids supplied by the source.
func New(prefix string) *Hasher {
	return &Hasher{prefix: prefix}
}

// Hash hashes the input and returns the prefixed hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return h.prefix + hex.EncodeToString(sum[:]), nil
}
