package common

import "testing"

func TestHexHashRoundTrip(t *testing.T) {
	h := HexToHash("0x0100000000000000000000000000000000000000000000000000000000000002")
	if got, want := len(h.Bytes()), HashLength; got != want {
		t.Fatalf("unexpected hash length: have %d want %d", got, want)
	}

	h2 := HexToHash(h.Hex())
	if h != h2 {
		t.Fatalf("hash did not round-trip through hex: have %s want %s", h2.Hex(), h.Hex())
	}
}

func TestHashBytesDeterministic(t *testing.T) {
	a := HashBytes([]byte("doomslug"))
	b := HashBytes([]byte("doomslug"))
	if a != b {
		t.Fatalf("HashBytes not deterministic: have %s want %s", b.Hex(), a.Hex())
	}
	c := HashBytes([]byte("doomslug2"))
	if a == c {
		t.Fatalf("HashBytes collided for distinct inputs")
	}
}

func TestAddressFromPublicKey(t *testing.T) {
	pub := []byte("fake-ed25519-public-key-bytes--")
	a1 := PublicKeyToAddress(pub)
	a2 := PublicKeyToAddress(pub)
	if a1 != a2 {
		t.Fatalf("PublicKeyToAddress not deterministic")
	}
	if a1.IsZero() {
		t.Fatalf("derived address should not be zero")
	}
}
