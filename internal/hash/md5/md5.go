// Package md5 provides the content fingerprint used for script dedup.
package md5

import (
	"crypto/md5" //nolint:gosec // fingerprint for dedup, not security
	"encoding/hex"
)

// Hasher implements harvest.Hasher using MD5.
type Hasher struct{}

// New returns an MD5 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := md5.Sum(data) //nolint:gosec
	return hex.EncodeToString(sum[:]), nil
}
