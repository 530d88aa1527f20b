package m

import (
	"crypto"
	"encoding/hex"
	"hash"

	"github.com/zeebo/blake3"
	_ "golang.org/x/crypto/blake2b" // Register algorithms.
)

// Hash is a hash algorithm.
type Hash string

// Hashes
//
//nolint:golint,stylecheck
const (
	BLAKE2b_256 Hash = "BLAKE2b_256"
	BLAKE3      Hash = "BLAKE3"
)

// New returns a new hash.Hash.
func (h Hash) New() hash.Hash {
	switch h {
	case BLAKE2b_256:
		return crypto.BLAKE2b_256.New()
	case BLAKE3:
		return blake3.New()
	default:
		return nil
	}
}

// Digest calculates and returns the hash sum over the given data.
// Panics on unknown hash algorithms.
func (h Hash) Digest(data []byte) []byte {
	hasher := h.New()
	if hasher == nil {
		panic("invalid hash algorithm: " + string(h))
	}

	_, _ = hasher.Write(data) // Never returns an error.
	defer hasher.Reset()      // Internal state may leak data if kept in memory.
	return hasher.Sum(nil)
}

// HexDigest is like Digest, but returns the sum hex encoded.
func (h Hash) HexDigest(data []byte) string {
	return hex.EncodeToString(h.Digest(data))
}
