package doomslug

import (
	"sort"

	"github.com/shardstake/gtos/common"
	"github.com/shardstake/gtos/params"
)

// endorsementKey identifies one (parent_hash, target_height) endorsement
// bucket.
type endorsementKey struct {
	parent common.Hash
	height uint64
}

// accountHeightKey identifies the single slot spec.md §3 reserves per
// (sender, target_height): at most one honest approval may live there,
// regardless of whether it is an endorsement or a skip.
type accountHeightKey struct {
	account common.Address
	height  uint64
}

// tracker aggregates endorsements by (parent_hash, target_height) and skips
// by target_height, maintaining a running stake sum per bucket so threshold
// checks are O(1). It is single-owner: the caller (Instance) never shares
// it across goroutines.
type tracker struct {
	mode params.DoomslugThresholdMode
	set  ValidatorSet

	// endorsements[key] -> (account -> approval), plus a running total.
	endorsements     map[endorsementKey]map[common.Address]Approval
	endorsementTotal map[endorsementKey]uint64

	// skips[height] -> (account -> approval), plus a running total.
	skips     map[uint64]map[common.Address]Approval
	skipTotal map[uint64]uint64

	// lastAtHeight holds the one live approval per (sender, target_height),
	// the source of truth for idempotence and equivocation detection.
	lastAtHeight map[accountHeightKey]Approval

	evidence []EquivocationEvidence
}

func newTracker(mode params.DoomslugThresholdMode, set ValidatorSet) *tracker {
	return &tracker{
		mode:             mode,
		set:              set,
		endorsements:     make(map[endorsementKey]map[common.Address]Approval),
		endorsementTotal: make(map[endorsementKey]uint64),
		skips:            make(map[uint64]map[common.Address]Approval),
		skipTotal:        make(map[uint64]uint64),
		lastAtHeight:     make(map[accountHeightKey]Approval),
	}
}

// onApproval ingests one already-signature-verified approval and reports
// whether it was newly accepted (false for an exact repeat) and whether it
// constitutes equivocation against a prior approval from the same sender at
// the same target height.
func (t *tracker) onApproval(a Approval) (accepted bool, equivocated bool) {
	key := accountHeightKey{account: a.AccountID, height: a.TargetHeight}
	prev, ok := t.lastAtHeight[key]
	if !ok {
		t.insert(a)
		t.lastAtHeight[key] = a
		return true, false
	}
	if prev.Equal(a) {
		return false, false
	}

	// Equivocation: retain both long enough to report, then converge by
	// keeping the lexicographically smaller parent hash. The earlier approval
	// is already counted, so the tables change only when the new one wins.
	t.recordEquivocation(a.AccountID, prev, a)
	if lessHash(a.ParentHash, prev.ParentHash) {
		t.remove(prev)
		t.insert(a)
		t.lastAtHeight[key] = a
	}
	return true, true
}

func (t *tracker) insert(a Approval) {
	if a.IsEndorsement {
		key := endorsementKey{parent: a.ParentHash, height: a.TargetHeight}
		if t.endorsements[key] == nil {
			t.endorsements[key] = make(map[common.Address]Approval)
		}
		t.endorsements[key][a.AccountID] = a
		t.endorsementTotal[key] += t.set.Stake(a.AccountID)
		return
	}
	if t.skips[a.TargetHeight] == nil {
		t.skips[a.TargetHeight] = make(map[common.Address]Approval)
	}
	t.skips[a.TargetHeight][a.AccountID] = a
	t.skipTotal[a.TargetHeight] += t.set.Stake(a.AccountID)
}

func (t *tracker) remove(a Approval) {
	if a.IsEndorsement {
		key := endorsementKey{parent: a.ParentHash, height: a.TargetHeight}
		bucket := t.endorsements[key]
		if bucket == nil {
			return
		}
		if _, ok := bucket[a.AccountID]; !ok {
			return
		}
		delete(bucket, a.AccountID)
		t.endorsementTotal[key] -= t.set.Stake(a.AccountID)
		if len(bucket) == 0 {
			delete(t.endorsements, key)
			delete(t.endorsementTotal, key)
		}
		return
	}
	bucket := t.skips[a.TargetHeight]
	if bucket == nil {
		return
	}
	if _, ok := bucket[a.AccountID]; !ok {
		return
	}
	delete(bucket, a.AccountID)
	t.skipTotal[a.TargetHeight] -= t.set.Stake(a.AccountID)
	if len(bucket) == 0 {
		delete(t.skips, a.TargetHeight)
		delete(t.skipTotal, a.TargetHeight)
	}
}

func (t *tracker) recordEquivocation(account common.Address, first, second Approval) {
	t.evidence = append(t.evidence, EquivocationEvidence{AccountID: account, First: first, Second: second})
}

// drainEquivocationEvidence returns and clears any equivocation evidence
// accumulated since the last call.
func (t *tracker) drainEquivocationEvidence() []EquivocationEvidence {
	if len(t.evidence) == 0 {
		return nil
	}
	out := t.evidence
	t.evidence = nil
	return out
}

func (t *tracker) requiredStake() uint64 {
	return t.set.TotalStake()/2 + 1
}

// endorsementCrossed reports whether the endorsement threshold is crossed
// for (parent, height).
func (t *tracker) endorsementCrossed(parent common.Hash, height uint64) bool {
	if t.mode == params.ThresholdNoApprovals {
		return true
	}
	key := endorsementKey{parent: parent, height: height}
	return t.endorsementTotal[key] >= t.requiredStake()
}

// skipCrossed reports whether the stake behind skips whose target_height is
// >= minHeight crosses the threshold, per spec.md §4.1's "union of skips
// whose target_height >= T" rule. Each account contributes at most once:
// per account, only its highest surviving skip target_height is counted,
// since a lower one would have been superseded by the timer advancing
// (stale skip buckets are pruned as last_ds_final_height advances, but
// within the live window an account may still have skip entries at several
// heights if set_tip hasn't pruned them yet).
func (t *tracker) skipCrossed(minHeight uint64) bool {
	if t.mode == params.ThresholdNoApprovals {
		return true
	}
	highest := make(map[common.Address]uint64)
	for height, bucket := range t.skips {
		if height < minHeight {
			continue
		}
		for account := range bucket {
			if height > highest[account] {
				highest[account] = height
			}
		}
	}
	var total uint64
	for account := range highest {
		total += t.set.Stake(account)
	}
	return total >= t.requiredStake()
}

// largestSkipCrossingHeight returns the largest target_height T for which
// skipCrossed(T) holds, and false if no height crosses at all. Because the
// union defining skipCrossed(T) only grows as T decreases, the set of
// crossing heights is a falling threshold: scanning the heights that
// actually hold skips from highest to lowest and returning the first one
// that crosses finds the maximum, without walking every integer height in
// between.
func (t *tracker) largestSkipCrossingHeight() (uint64, bool) {
	heights := make([]uint64, 0, len(t.skips))
	for height := range t.skips {
		heights = append(heights, height)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] > heights[j] })
	for _, height := range heights {
		if t.skipCrossed(height) {
			return height, true
		}
	}
	return 0, false
}

// pruneBelow drops every endorsement/skip bucket targeting a height at or
// below minHeight, matching spec.md §4.2's "prune all entries with
// target_height <= last_ds_final_height on every set_tip".
func (t *tracker) pruneBelow(minHeight uint64) {
	for key := range t.endorsements {
		if key.height <= minHeight {
			delete(t.endorsements, key)
			delete(t.endorsementTotal, key)
		}
	}
	for height := range t.skips {
		if height <= minHeight {
			delete(t.skips, height)
			delete(t.skipTotal, height)
		}
	}
	for key := range t.lastAtHeight {
		if key.height <= minHeight {
			delete(t.lastAtHeight, key)
		}
	}
}

func lessHash(a, b common.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// endorsers returns the accounts that have endorsed (parent, height), sorted
// deterministically by address. Nothing in this module calls it.
func (t *tracker) endorsers(parent common.Hash, height uint64) []common.Address {
	key := endorsementKey{parent: parent, height: height}
	bucket := t.endorsements[key]
	out := make([]common.Address, 0, len(bucket))
	for account := range bucket {
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool { return lessAddress(out[i], out[j]) })
	return out
}

func lessAddress(a, b common.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
