// Package doomslug implements the per-validator Doomslug finality gadget: a
// state machine that produces approvals (endorsements and skips), tracks
// incoming approvals by stake, and exposes the largest height that has
// crossed the production threshold and the largest height that has become
// Doomslug-final.
//
// The gadget is not a total-order consensus protocol — it layers a finality
// verdict on top of a fork-choice rule the caller is assumed to resolve.
// Every exported method on Instance is a synchronous, bounded-time state
// mutation; there is no internal locking, because an Instance is owned by a
// single goroutine (the node's event loop) for its entire lifetime.
package doomslug

import (
	"errors"
	"time"

	"github.com/shardstake/gtos/common"
)

// Sentinel errors surfaced by package-level validation.
var (
	// ErrNonMonotonicTip is the programmer error raised when SetTip is
	// called with a height that does not strictly exceed the current tip.
	ErrNonMonotonicTip = errors.New("doomslug: set_tip height must exceed current tip height")
	// ErrTargetNotAboveParent reports a target_height that does not exceed
	// the parent's height. No function in this package returns it.
	ErrTargetNotAboveParent = errors.New("doomslug: target_height must exceed parent height")
)

// Approval is a signed message addressing a single target height: an
// endorsement of a specific parent, or a skip of every height strictly
// between the sender's current tip and the target.
type Approval struct {
	// ParentHash is the hash of the block being endorsed, or the sender's
	// current tip when skipping.
	ParentHash common.Hash
	// ReferenceHash optionally names the last Doomslug-final ancestor the
	// sender has observed. Only meaningful for endorsements; the gadget
	// stores and forwards it but never consults it when computing
	// thresholds (left to the chain layer, per design).
	ReferenceHash common.Hash
	// HasReferenceHash reports whether ReferenceHash is set, since the zero
	// hash is itself a valid (if unlikely) hash value.
	HasReferenceHash bool
	// TargetHeight is strictly greater than the height of ParentHash.
	TargetHeight uint64
	// IsEndorsement is true for an endorsement of ParentHash at
	// TargetHeight, false for a skip of every height in
	// (parent_height, TargetHeight).
	IsEndorsement bool
	// AccountID identifies the sender.
	AccountID common.Address
	// Signature covers every field above, in the wire encoding defined in
	// wire.go (EncodeApproval of the approval with Signature left empty).
	Signature []byte
}

// Equal reports whether two approvals carry identical field values
// (including signature bytes) — the definition of "identical repeats" used
// by the idempotence rule in on_approval.
func (a Approval) Equal(b Approval) bool {
	if a.ParentHash != b.ParentHash || a.ReferenceHash != b.ReferenceHash ||
		a.HasReferenceHash != b.HasReferenceHash || a.TargetHeight != b.TargetHeight ||
		a.IsEndorsement != b.IsEndorsement || a.AccountID != b.AccountID {
		return false
	}
	if len(a.Signature) != len(b.Signature) {
		return false
	}
	for i := range a.Signature {
		if a.Signature[i] != b.Signature[i] {
			return false
		}
	}
	return true
}

// Tip is the chain head currently adopted by this validator, the reference
// point for the timer schedule.
type Tip struct {
	Hash              common.Hash
	Height            uint64
	LastDSFinalHeight uint64
	AdoptedAt         time.Time
}

// ValidatorSet is the read-only collaborator providing stake and public-key
// lookups for the validator set active during this instance's epoch.
// Implementations must be immutable over the instance's lifetime.
type ValidatorSet interface {
	PublicKey(account common.Address) []byte
	Stake(account common.Address) uint64
	TotalStake() uint64
	Contains(account common.Address) bool
}

// Signer is the capability to produce approvals on behalf of a local
// validator identity. Instances without a signer never emit approvals.
type Signer interface {
	AccountID() common.Address
	SignApproval(parentHash common.Hash, referenceHash common.Hash, hasReferenceHash bool, targetHeight uint64, isEndorsement bool) ([]byte, error)
}

// EquivocationEvidence records two differing approvals received from the
// same account at the same target height — slashable evidence the node may
// act on.
type EquivocationEvidence struct {
	AccountID common.Address
	First     Approval
	Second    Approval
}
