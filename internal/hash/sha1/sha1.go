// Package sha1 provides SHA-1 hashing for document content tracking.
// Content hashes are change detectors, not security boundaries, and the
// stored history predates stronger digests, so SHA-1 stays the wire format.
package sha1

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic change detection
	"encoding/hex"
)

// Hasher implements ingest.Hasher using SHA-1.
type Hasher struct{}

// New returns a SHA-1 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}
