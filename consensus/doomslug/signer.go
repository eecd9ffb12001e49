package doomslug

import (
	"github.com/shardstake/gtos/common"
	"github.com/shardstake/gtos/crypto/ed25519"
)

// Ed25519Signer signs approvals on behalf of one local validator identity
// using the node's ed25519 keypair.
type Ed25519Signer struct {
	account    common.Address
	privateKey ed25519.PrivateKey
}

// NewEd25519Signer derives the signer's account id from its public key and
// wraps privateKey for approval signing.
func NewEd25519Signer(privateKey ed25519.PrivateKey) *Ed25519Signer {
	pub := ed25519.PublicFromPrivate(privateKey)
	return &Ed25519Signer{
		account:    common.PublicKeyToAddress(pub),
		privateKey: privateKey,
	}
}

// AccountID implements Signer.
func (s *Ed25519Signer) AccountID() common.Address {
	return s.account
}

// SignApproval implements Signer, signing the exact byte layout
// EncodeApproval would produce for an approval carrying these fields and an
// empty signature — the signature itself is never part of the signed
// payload.
func (s *Ed25519Signer) SignApproval(parentHash common.Hash, referenceHash common.Hash, hasReferenceHash bool, targetHeight uint64, isEndorsement bool) ([]byte, error) {
	unsigned := Approval{
		ParentHash:       parentHash,
		ReferenceHash:    referenceHash,
		HasReferenceHash: hasReferenceHash,
		TargetHeight:     targetHeight,
		IsEndorsement:    isEndorsement,
		AccountID:        s.account,
	}
	payload := EncodeApproval(unsigned)
	return ed25519.Sign(s.privateKey, payload), nil
}

// VerifyApproval reports whether sig is a valid ed25519 signature over a's
// fields (excluding the signature itself) under publicKey. A malformed
// (wrong-length) publicKey is treated as a verification failure rather than
// left to panic, since the caller's contract is to drop silently on failure
// rather than crash on a malformed validator-set entry.
func VerifyApproval(publicKey ed25519.PublicKey, a Approval) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	unsigned := a
	unsigned.Signature = nil
	payload := EncodeApproval(unsigned)
	return ed25519.Verify(publicKey, payload, a.Signature)
}
