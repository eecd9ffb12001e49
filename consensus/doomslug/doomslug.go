package doomslug

import (
	"time"

	"github.com/shardstake/gtos/common"
	"github.com/shardstake/gtos/crypto/ed25519"
	"github.com/shardstake/gtos/params"
)

// Instance is one validator's view of the Doomslug finality gadget: the
// approval tracker, the current tip, and the timer schedule that drives
// this validator's own endorsements and skips. It has no internal locking
// and must be owned by exactly one goroutine for its entire lifetime.
type Instance struct {
	config params.DoomslugConfig
	set    ValidatorSet
	signer Signer // nil for a non-validating (observer) instance

	tracker *tracker

	haveTip bool
	tip     Tip

	timerHeight uint64
	timerStart  time.Time
	endorsedAt  time.Time

	referenceHash    common.Hash
	hasReferenceHash bool

	largestThresholdHeight uint64
	thresholdCrossedAt     time.Time
	largestDSFinalHeight   uint64
}

// New constructs an Instance for one validator-set epoch. signer may be nil,
// in which case the instance tracks approvals and finality but never
// produces its own.
func New(config params.DoomslugConfig, set ValidatorSet, signer Signer) *Instance {
	return &Instance{
		config:  config,
		set:     set,
		signer:  signer,
		tracker: newTracker(config.ThresholdMode, set),
	}
}

// SetTip adopts a new chain head, per spec.md §4.2: the timer schedule
// restarts relative to now, and every approval table entry targeting a
// height at or below the new last-Doomslug-final height is pruned, since no
// future decision can depend on it.
func (d *Instance) SetTip(tip Tip, now time.Time) error {
	return d.setTip(tip, now)
}

// SetReferenceHash records the last Doomslug-final ancestor this validator
// has observed, forwarded verbatim on every endorsement this instance
// produces until the caller updates it again. The gadget never consults
// this value when computing thresholds — resolving and acting on it is the
// chain layer's job.
func (d *Instance) SetReferenceHash(hash common.Hash) {
	d.referenceHash = hash
	d.hasReferenceHash = true
}

// OnApprovalMessage verifies one approval from the network (or from this
// validator's own timer) against the sender's public key, ingests it if the
// signature holds, and reports whether it was newly accepted and whether it
// constitutes equivocation. After accepting
// an endorsement or skip, the caller should re-check
// GetLargestHeightCrossingThreshold and GetLargestHeightWithDoomslugFinality
// since either may have advanced.
func (d *Instance) OnApprovalMessage(a Approval, now time.Time) (accepted bool, equivocated bool) {
	if !d.set.Contains(a.AccountID) {
		return false, false
	}
	if d.haveTip && a.TargetHeight <= d.tip.LastDSFinalHeight {
		return false, false
	}
	if !VerifyApproval(ed25519.PublicKey(d.set.PublicKey(a.AccountID)), a) {
		return false, false
	}
	accepted, equivocated = d.tracker.onApproval(a)
	if !accepted {
		return accepted, equivocated
	}
	d.advanceThresholds(a, now)
	return accepted, equivocated
}

// advanceThresholds recomputes the two monotone watermarks after an
// approval changes tracker state, per spec.md §4.4:
//
//   - largest_height_crossing_threshold is the max T such that either an
//     endorsement threshold crossed for some parent at height T-1, or a
//     skip threshold crossed for T.
//   - a block is Doomslug-final exactly when more than half the stake has
//     endorsed its immediate child — i.e. when the endorsement threshold
//     crosses for (parent_hash, target_height), parent_hash itself
//     (height target_height-1) becomes final. No block-DAG walk is
//     needed: finality is a property of a single (parent, child) pair.
//
// Both watermarks only ever move forward: an approval that fails to cross
// a threshold at its own target height cannot retroactively un-cross one a
// prior approval already crossed.
func (d *Instance) advanceThresholds(a Approval, now time.Time) {
	if a.IsEndorsement {
		if !d.tracker.endorsementCrossed(a.ParentHash, a.TargetHeight) {
			return
		}
		if a.TargetHeight > d.largestThresholdHeight {
			d.largestThresholdHeight = a.TargetHeight
			d.thresholdCrossedAt = now
		}
		if parentHeight := a.TargetHeight - 1; parentHeight > d.largestDSFinalHeight {
			d.largestDSFinalHeight = parentHeight
		}
		return
	}
	// The skip threshold at T is a union over every target_height >= T, so an
	// arriving skip at one height can newly cross the threshold at a lower T
	// that never crossed when evaluated on its own. Re-derive the largest
	// crossing height across all live skip buckets rather than re-checking
	// only the height this approval targets.
	if height, ok := d.tracker.largestSkipCrossingHeight(); ok && height > d.largestThresholdHeight {
		d.largestThresholdHeight = height
		d.thresholdCrossedAt = now
	}
}

// ReadyToProduceBlock reports whether this validator may produce a block
// at targetHeight, per spec.md §4.5: the threshold must have crossed for
// targetHeight, and if the parent is not yet Doomslug-final an extra
// MaxDelay wait past the moment threshold first crossed is required, to
// allow a competing, potentially-finalizable chain to surface.
func (d *Instance) ReadyToProduceBlock(now time.Time, targetHeight uint64, hasDSFinalParent bool) bool {
	if targetHeight > d.largestThresholdHeight {
		return false
	}
	if !hasDSFinalParent && now.Before(d.thresholdCrossedAt.Add(d.config.MaxDelay)) {
		return false
	}
	return true
}

// IsPrevBlockDSFinal reports whether the block identified by parentHash,
// which sits at height targetHeight-1, has achieved Doomslug finality: more
// than half the stake has endorsed it at targetHeight.
func (d *Instance) IsPrevBlockDSFinal(parentHash common.Hash, targetHeight uint64) bool {
	return d.tracker.endorsementCrossed(parentHash, targetHeight)
}

// GetTip returns the currently adopted tip.
func (d *Instance) GetTip() Tip { return d.tip }

// GetLargestHeightCrossingThreshold returns the largest target height for
// which either some parent's endorsements or the skips at or above it have
// crossed the production threshold.
func (d *Instance) GetLargestHeightCrossingThreshold() uint64 { return d.largestThresholdHeight }

// GetLargestHeightWithDoomslugFinality returns the largest height that has
// achieved Doomslug finality.
func (d *Instance) GetLargestHeightWithDoomslugFinality() uint64 { return d.largestDSFinalHeight }

// GetTimerHeight returns the next height the timer schedule will skip if no
// block arrives in time.
func (d *Instance) GetTimerHeight() uint64 { return d.timerHeight }

// GetTimerStart returns the wall-clock origin of the timer's current
// per-height wait: the tip's adoption time until the first skip fires, and
// from then on the moment the most recently fired skip's own delay elapsed
// (timer_started_at advances by delay_for(previous_offset) each skip, per
// spec.md §4.3 step 2), not a fixed anchor for the whole tip.
func (d *Instance) GetTimerStart() time.Time { return d.timerStart }

// DrainEquivocationEvidence returns and clears any equivocation evidence
// accumulated by the approval tracker since the last call.
func (d *Instance) DrainEquivocationEvidence() []EquivocationEvidence {
	return d.tracker.drainEquivocationEvidence()
}
