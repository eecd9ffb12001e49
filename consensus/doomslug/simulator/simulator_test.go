package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shardstake/gtos/common"
	"github.com/shardstake/gtos/consensus/doomslug"
	"github.com/shardstake/gtos/params"
)

func scenarioConfig() params.DoomslugConfig {
	return params.DoomslugConfig{
		MinDelay:         100 * time.Millisecond,
		DelayStep:        200 * time.Millisecond,
		MaxDelay:         1000 * time.Millisecond,
		EndorsementDelay: 50 * time.Millisecond,
		ThresholdMode:    params.ThresholdHalfStake,
	}
}

// signedApproval builds an Approval carrying a real signature from v's own
// keypair, the way the production timer does in buildApproval — needed
// because OnApprovalMessage now verifies every inbound approval against the
// validator set's recorded public key.
func signedApproval(v *Validator, parent common.Hash, targetHeight uint64, isEndorsement bool) doomslug.Approval {
	sig, err := v.Signer.SignApproval(parent, common.Hash{}, false, targetHeight, isEndorsement)
	if err != nil {
		panic(err)
	}
	return doomslug.Approval{
		ParentHash:    parent,
		TargetHeight:  targetHeight,
		IsEndorsement: isEndorsement,
		AccountID:     v.Account,
		Signature:     sig,
	}
}

// TestScenarioS1EightEqualValidatorsReachFinality matches spec.md's S1: 8
// equal-stake validators, synchronous network (GST=0), reach a Doomslug-final
// height >= 50 well within the simulated budget, and the Doomslug-final
// height stays below 512.
func TestScenarioS1EightEqualValidatorsReachFinality(t *testing.T) {
	cfg := scenarioConfig()
	_, validators, err := BuildEqualStakeValidators(8, cfg)
	require.NoError(t, err)

	network := NewNetwork(1, 0, 0, 100, 0, 0)
	chain := NewChain()
	sched := NewScheduler(chain, network, validators, 10)

	result := sched.Run(60_000)

	assert.False(t, result.SafetyViolation, "no two conflicting blocks should both be reported DS-final")
	assert.GreaterOrEqual(t, result.LargestDSFinalHeight, uint64(50))
	assert.Less(t, result.LargestDSFinalHeight, uint64(512))
}

// TestScenarioS2DelayedNetworkEventuallyFinalizes matches spec.md's S2: a
// late GST (500s) with a larger post-GST network delay (delta=2000ms) still
// reaches DS-final height 300 within budget. P5's per-validator timer-start
// bound is checked only indirectly and only at the end of the run: every
// validator's timer height must lie within two heights of every other's,
// since none can fall arbitrarily far behind a synchronous schedule run
// under a shared tick.
func TestScenarioS2DelayedNetworkEventuallyFinalizes(t *testing.T) {
	cfg := scenarioConfig()
	_, validators, err := BuildEqualStakeValidators(8, cfg)
	require.NoError(t, err)

	network := NewNetwork(2, 0, 0, 2000, 500_000, 0)
	chain := NewChain()
	sched := NewScheduler(chain, network, validators, 50)

	result := sched.Run(600_000)

	assert.False(t, result.SafetyViolation)
	assert.GreaterOrEqual(t, result.LargestDSFinalHeight, uint64(300))

	var minTimer, maxTimer uint64
	for i, v := range validators {
		h := v.Instance.GetTimerHeight()
		if i == 0 || h < minTimer {
			minTimer = h
		}
		if i == 0 || h > maxTimer {
			maxTimer = h
		}
	}
	assert.LessOrEqual(t, maxTimer-minTimer, uint64(2), "timer heights should stay tightly bunched under a shared schedule")
}

// TestScenarioS3ByzantineSkipperOfflineValidatorAndDrops matches spec.md's
// S3: one validator always skips instead of endorsing, one is offline, and
// 20% of the remaining approvals are dropped. Network drops messages only
// before GST, so GST is placed after the end of the run. Safety (P1) still
// holds and DS-final height 100 is reached.
func TestScenarioS3ByzantineSkipperOfflineValidatorAndDrops(t *testing.T) {
	cfg := scenarioConfig()
	_, validators, err := BuildEqualStakeValidators(8, cfg)
	require.NoError(t, err)
	validators[0].Byzantine = true
	validators[1].Offline = true

	network := NewNetwork(3, 0, 100, 100, 120_001, 0.2)
	chain := NewChain()
	sched := NewScheduler(chain, network, validators, 10)

	result := sched.Run(120_000)

	assert.False(t, result.SafetyViolation)
	assert.GreaterOrEqual(t, result.LargestDSFinalHeight, uint64(100))
}

// TestScenarioS4MajorityStakeAloneDoesNotCrossStrictThreshold exercises
// spec.md's S4 validator set (stakes 2,1,1 under HalfStake mode) against the
// literal threshold rule stated in spec.md §4.1, sum(stake) >=
// floor(total/2)+1. For total stake 4 that requires 3, so the majority
// holder's stake of 2 alone does NOT cross — unlike S4's narrated outcome,
// which appears to assume a non-strict ">= half" rule. This test
// exercises the safety-critical formula as specified rather than the
// narrated number, and confirms the threshold crosses once the holder of
// stake 2 is joined by either remaining validator.
func TestScenarioS4MajorityStakeAloneDoesNotCrossStrictThreshold(t *testing.T) {
	cfg := scenarioConfig()
	set, validators, err := BuildValidators([]uint64{2, 1, 1}, cfg)
	require.NoError(t, err)
	require.Equal(t, uint64(4), set.TotalStake())

	parent := GenesisHash
	now := time.Now()
	for _, v := range validators {
		require.NoError(t, v.Instance.SetTip(doomslug.Tip{Hash: parent}, now))
	}

	majority := validators[0]
	majority.Instance.OnApprovalMessage(signedApproval(majority, parent, 5, true), now)
	assert.False(t, majority.Instance.IsPrevBlockDSFinal(parent, 5), "stake 2 alone out of total 4 does not satisfy floor(4/2)+1=3")

	second := validators[1]
	majority.Instance.OnApprovalMessage(signedApproval(second, parent, 5, true), now)
	assert.True(t, majority.Instance.IsPrevBlockDSFinal(parent, 5), "stake 2+1=3 crosses floor(4/2)+1=3")
}

// TestScenarioS5SkipThresholdWithoutDSFinalParent matches spec.md's S5: 4
// equal-stake validators, three send skips for target height 7; the skip
// threshold crosses, so ready_to_produce_block(now, 7, true) is true, but
// is_prev_block_ds_final(P_at_height_6, 7) is false since no endorsement of
// height 6 was ever recorded. It also covers the §4.5 reorg-safety wait:
// without a DS-final parent the same instance must hold off producing until
// an extra MaxDelay has elapsed since the threshold first crossed.
func TestScenarioS5SkipThresholdWithoutDSFinalParent(t *testing.T) {
	cfg := scenarioConfig()
	_, validators, err := BuildEqualStakeValidators(4, cfg)
	require.NoError(t, err)

	parentAt6 := ChildHash(GenesisHash, 6)
	now := time.Now()
	inst := validators[0].Instance
	require.NoError(t, inst.SetTip(doomslug.Tip{Hash: parentAt6, Height: 6}, now))

	for _, v := range validators[1:] {
		inst.OnApprovalMessage(signedApproval(v, common.Hash{}, 7, false), now)
	}

	assert.True(t, inst.ReadyToProduceBlock(now, 7, true))
	assert.False(t, inst.IsPrevBlockDSFinal(parentAt6, 7))

	assert.False(t, inst.ReadyToProduceBlock(now, 7, false), "without a DS-final parent, producing must wait an extra MaxDelay past the threshold crossing")
	assert.True(t, inst.ReadyToProduceBlock(now.Add(cfg.MaxDelay), 7, false), "once MaxDelay has elapsed since the threshold crossed, a non-final parent no longer blocks production")
}

// TestScenarioS6StaleApprovalBelowLastDSFinalHeightIgnored matches spec.md's
// S6: set_tip(height=10, last_ds_final_height=8), then an approval for
// target height 3 has no effect.
func TestScenarioS6StaleApprovalBelowLastDSFinalHeightIgnored(t *testing.T) {
	cfg := scenarioConfig()
	_, validators, err := BuildEqualStakeValidators(4, cfg)
	require.NoError(t, err)

	inst := validators[0].Instance
	now := time.Now()
	require.NoError(t, inst.SetTip(doomslug.Tip{Hash: GenesisHash, Height: 10, LastDSFinalHeight: 8}, now))

	accepted, _ := inst.OnApprovalMessage(signedApproval(validators[1], GenesisHash, 3, true), now)
	assert.False(t, accepted)
	assert.Equal(t, uint64(0), inst.GetLargestHeightCrossingThreshold())
}

// TestPropertySafetyNoConflictingFinalBlocksUnderMinorityEquivocation
// exercises P1: with fewer than half the stake double-signing across two
// competing parent hashes at the same target height, at most one of the two
// can cross the endorsement threshold.
func TestPropertySafetyNoConflictingFinalBlocksUnderMinorityEquivocation(t *testing.T) {
	cfg := scenarioConfig()
	set, validators, err := BuildValidators([]uint64{1, 1, 1, 1, 1}, cfg) // total 5, required 3
	require.NoError(t, err)
	require.Equal(t, uint64(5), set.TotalStake())

	parentA := common.HashBytes([]byte("fork-a"))
	parentB := common.HashBytes([]byte("fork-b"))
	now := time.Now()
	inst := validators[0].Instance
	require.NoError(t, inst.SetTip(doomslug.Tip{Hash: parentA}, now))

	// One equivocating validator (stake 1, well under half of 5) signs both
	// forks; two honest validators endorse A, one honest validator endorses B.
	inst.OnApprovalMessage(signedApproval(validators[0], parentA, 1, true), now)
	inst.OnApprovalMessage(signedApproval(validators[1], parentA, 1, true), now)
	inst.OnApprovalMessage(signedApproval(validators[2], parentB, 1, true), now)
	equivocator := validators[3]
	inst.OnApprovalMessage(signedApproval(equivocator, parentA, 1, true), now)
	_, equivocated := inst.OnApprovalMessage(signedApproval(equivocator, parentB, 1, true), now)

	assert.True(t, equivocated)
	finalA := inst.IsPrevBlockDSFinal(parentA, 1)
	finalB := inst.IsPrevBlockDSFinal(parentB, 1)
	assert.False(t, finalA && finalB, "both forks must never be DS-final simultaneously")
}

// TestPropertyFinalityAndThresholdAreMonotone exercises P2/P3: both
// watermarks only ever move forward as approvals accumulate.
func TestPropertyFinalityAndThresholdAreMonotone(t *testing.T) {
	cfg := scenarioConfig()
	_, validators, err := BuildEqualStakeValidators(4, cfg)
	require.NoError(t, err)

	now := time.Now()
	inst := validators[0].Instance
	parent := GenesisHash
	require.NoError(t, inst.SetTip(doomslug.Tip{Hash: parent}, now))

	var prevThreshold, prevFinal uint64
	for height := uint64(1); height <= 5; height++ {
		p := ChildHash(parent, height-1)
		for _, v := range validators[:3] {
			inst.OnApprovalMessage(signedApproval(v, p, height, true), now)
		}
		threshold := inst.GetLargestHeightCrossingThreshold()
		final := inst.GetLargestHeightWithDoomslugFinality()
		assert.GreaterOrEqual(t, threshold, prevThreshold)
		assert.GreaterOrEqual(t, final, prevFinal)
		prevThreshold, prevFinal = threshold, final
	}
}

// TestPropertyApprovalIdempotence exercises P4 directly against one
// Instance, bypassing the network: replaying the exact same message twice
// must not change observable state.
func TestPropertyApprovalIdempotence(t *testing.T) {
	cfg := scenarioConfig()
	_, validators, err := BuildEqualStakeValidators(3, cfg)
	require.NoError(t, err)

	now := time.Now()
	inst := validators[0].Instance
	require.NoError(t, inst.SetTip(doomslug.Tip{Hash: GenesisHash}, now))

	approval := signedApproval(validators[1], GenesisHash, 1, true)
	accepted1, _ := inst.OnApprovalMessage(approval, now)
	accepted2, equivocated2 := inst.OnApprovalMessage(approval, now)
	assert.True(t, accepted1)
	assert.False(t, accepted2)
	assert.False(t, equivocated2)
}

// TestPropertyPostGSTLivenessReachesFinality exercises P6: once the network
// becomes synchronous (GST reached immediately here), an honest majority
// eventually produces and finalizes blocks.
func TestPropertyPostGSTLivenessReachesFinality(t *testing.T) {
	cfg := scenarioConfig()
	_, validators, err := BuildEqualStakeValidators(5, cfg)
	require.NoError(t, err)

	network := NewNetwork(4, 0, 0, 50, 0, 0)
	chain := NewChain()
	sched := NewScheduler(chain, network, validators, 10)

	result := sched.Run(30_000)

	assert.False(t, result.SafetyViolation)
	assert.Greater(t, result.LargestDSFinalHeight, uint64(0))
}
