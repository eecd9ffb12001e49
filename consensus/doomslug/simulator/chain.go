package simulator

import (
	"bytes"
	"sort"
	"time"

	"github.com/shardstake/gtos/common"
	"github.com/shardstake/gtos/consensus/doomslug"
)

// Network's message delay/loss model, together with each Instance's own
// timer and threshold logic, is the behavior under test. Driving an actual
// fork-choice rule and competing forks is the chain layer's job (spec.md
// §1), out of scope here; Run instead advances a single, non-forking chain
// — the simplest driver that still exercises every public Doomslug
// operation under realistic delay and loss.

// blockInfo is one produced block's chain position.
type blockInfo struct {
	parent common.Hash
	height uint64
}

// Chain is the single, non-forking block sequence the scheduler advances.
// It is intentionally the simplest possible stand-in for a real fork-choice
// rule: exactly one chain, no competing branches, so tests concentrate on
// Doomslug's own safety and liveness rather than fork-choice correctness.
type Chain struct {
	blocks map[common.Hash]blockInfo
	tip    common.Hash
}

// NewChain seeds the chain with GenesisHash at height 0.
func NewChain() *Chain {
	return &Chain{
		blocks: map[common.Hash]blockInfo{GenesisHash: {height: 0}},
		tip:    GenesisHash,
	}
}

// Produce appends a new block on top of parent and returns its hash.
func (c *Chain) Produce(parent common.Hash) common.Hash {
	info, ok := c.blocks[parent]
	if !ok {
		panic("simulator: Produce called with unknown parent")
	}
	height := info.height + 1
	hash := ChildHash(parent, height)
	c.blocks[hash] = blockInfo{parent: parent, height: height}
	c.tip = hash
	return hash
}

// Height returns the height of hash, or 0 if unknown.
func (c *Chain) Height(hash common.Hash) uint64 {
	return c.blocks[hash].height
}

// Scheduler drives a fixed set of validators through simulated time in
// millisecond ticks, round-robining block production among validators that
// report themselves ready, and routing every produced approval through a
// Network.
type Scheduler struct {
	Chain      *Chain
	Network    *Network
	Validators []*Validator
	TickMs     uint64

	// lastDSFinalHeight is the highest height any proposer has observed
	// Doomslug finality for so far; monotone by construction since it is
	// only ever raised, never lowered, matching spec.md §4.2's
	// non-decreasing last_ds_final_height invariant.
	lastDSFinalHeight uint64
}

// NewScheduler wires validators onto chain via network, ticking in steps of
// tickMs simulated milliseconds.
func NewScheduler(chain *Chain, network *Network, validators []*Validator, tickMs uint64) *Scheduler {
	genesis := doomslug.Tip{Hash: GenesisHash, AdoptedAt: epoch(0)}
	for _, v := range validators {
		_ = v.Instance.SetTip(genesis, epoch(0))
	}
	return &Scheduler{
		Chain:      chain,
		Network:    network,
		Validators: validators,
		TickMs:     tickMs,
	}
}

// epoch converts a simulated millisecond tick into a time.Time usable by
// Instance, which only ever compares time.Time values against each other —
// the epoch itself is arbitrary.
func epoch(ms uint64) time.Time {
	return time.Unix(0, int64(ms)*int64(time.Millisecond))
}

// Run advances the simulation from tick 0 to totalMs, returning the final
// largest Doomslug-final height observed across every online validator and
// any safety violation detected (two different blocks at the same height
// both reported Doomslug-final by some validator).
type RunResult struct {
	LargestDSFinalHeight uint64
	SafetyViolation      bool
}

func (s *Scheduler) Run(totalMs uint64) RunResult {
	finalAtHeight := make(map[uint64]common.Hash)
	result := RunResult{}

	for now := uint64(0); now <= totalMs; now += s.TickMs {
		t := epoch(now)

		for _, v := range s.Validators {
			if v.Offline {
				continue
			}
			approvals, err := v.Instance.ProcessTimer(t)
			if err != nil {
				continue
			}
			for _, a := range approvals {
				if v.Byzantine && a.IsEndorsement {
					sig, err := v.Signer.SignApproval(a.ParentHash, a.ReferenceHash, a.HasReferenceHash, a.TargetHeight, false)
					if err != nil {
						continue
					}
					a.IsEndorsement = false
					a.Signature = sig
				}
				for _, other := range s.Validators {
					if other.Account == v.Account || other.Offline {
						continue
					}
					s.Network.Send(now, v.Account, other.Account, a)
				}
			}
		}

		for _, m := range s.Network.DeliverUpTo(now) {
			for _, v := range s.Validators {
				if v.Account == m.to && !v.Offline {
					v.Instance.OnApprovalMessage(m.approval, t)
				}
			}
		}

		s.maybeProduce(t, &finalAtHeight, &result)
	}

	for _, v := range s.Validators {
		if v.Offline {
			continue
		}
		if h := v.Instance.GetLargestHeightWithDoomslugFinality(); h > result.LargestDSFinalHeight {
			result.LargestDSFinalHeight = h
		}
	}
	return result
}

// maybeProduce lets the lowest-address ready validator extend the chain by
// one block whenever some validator's threshold has advanced past the
// current tip height, then broadcasts the new tip to every online
// validator via SetTip.
func (s *Scheduler) maybeProduce(t time.Time, finalAtHeight *map[uint64]common.Hash, result *RunResult) {
	proposer := s.readyProposer(t)
	if proposer == nil {
		return
	}
	tipHeight := s.Chain.Height(s.Chain.tip)
	nextHeight := tipHeight + 1
	parent := s.Chain.tip
	hash := s.Chain.Produce(parent)

	if proposer.Instance.IsPrevBlockDSFinal(parent, nextHeight) && tipHeight > s.lastDSFinalHeight {
		s.lastDSFinalHeight = tipHeight
	}
	if existing, ok := (*finalAtHeight)[tipHeight]; ok && existing != parent {
		result.SafetyViolation = true
	} else if s.lastDSFinalHeight == tipHeight {
		(*finalAtHeight)[tipHeight] = parent
	}

	for _, v := range s.Validators {
		if v.Offline {
			continue
		}
		_ = v.Instance.SetTip(doomslug.Tip{
			Hash:              hash,
			Height:            nextHeight,
			LastDSFinalHeight: s.lastDSFinalHeight,
			AdoptedAt:         t,
		}, t)
	}
}

// readyProposer returns the lowest-address online validator whose own view
// of the chain reports it may produce the next block, or nil.
func (s *Scheduler) readyProposer(t time.Time) *Validator {
	candidates := make([]*Validator, 0, len(s.Validators))
	for _, v := range s.Validators {
		if v.Offline {
			continue
		}
		candidates = append(candidates, v)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return bytes.Compare(candidates[i].Account[:], candidates[j].Account[:]) < 0
	})
	for _, v := range candidates {
		tipHeight := v.Instance.GetTip().Height
		nextHeight := tipHeight + 1
		if v.Instance.ReadyToProduceBlock(t, nextHeight, true) {
			return v
		}
	}
	return nil
}
