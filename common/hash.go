// Package common provides the small fixed-size value types (hashes,
// addresses) shared across the node's consensus and validator packages.
package common

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// HashLength is the expected length of a hash in bytes.
const HashLength = 32

// Hash represents a 32-byte hash of arbitrary data (a block hash, an
// approval's parent hash, ...).
type Hash [HashLength]byte

// BytesToHash sets the left-padded (big-endian) low-order bytes of b into a
// Hash. If b is larger than HashLength it is truncated from the left.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// HashBytes returns the sha3-256 digest of value as a Hash.
func HashBytes(value []byte) Hash {
	var h Hash
	sum := sha3.Sum256(value)
	copy(h[:], sum[:])
	return h
}

// Bytes returns a copy of the hash's underlying bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, HashLength)
	copy(out, h[:])
	return out
}

// Hex returns the "0x"-prefixed hex encoding of h.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

// String implements fmt.Stringer.
func (h Hash) String() string {
	return h.Hex()
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// HexToHash decodes a "0x"-prefixed (or bare) hex string into a Hash. Panics
// on malformed input, matching the convention used elsewhere in this
// codebase for test/fixture helpers — callers parsing untrusted input
// should use hex.DecodeString directly.
func HexToHash(s string) Hash {
	return BytesToHash(fromHex(s))
}

func fromHex(s string) []byte {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("common: invalid hex string %q: %v", s, err))
	}
	return b
}
