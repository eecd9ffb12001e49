package common

import (
	"encoding/hex"
)

// AddressLength is the expected length of an account identifier in bytes —
// the low 20 bytes of the sha3-256 digest of the account's ed25519 public
// key.
const AddressLength = 20

// Address identifies a validator account.
type Address [AddressLength]byte

// BytesToAddress sets the left-padded low-order bytes of b into an Address.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// PublicKeyToAddress derives the account identifier for an ed25519 public key.
func PublicKeyToAddress(pubKey []byte) Address {
	digest := HashBytes(pubKey)
	return BytesToAddress(digest[HashLength-AddressLength:])
}

// Bytes returns a copy of the address's underlying bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// Hex returns the "0x"-prefixed hex encoding of a.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return a.Hex()
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// HexToAddress decodes a "0x"-prefixed (or bare) hex string into an Address.
// Panics on malformed input; see HexToHash for rationale.
func HexToAddress(s string) Address {
	return BytesToAddress(fromHex(s))
}
