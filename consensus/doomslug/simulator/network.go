// Package simulator drives many Doomslug instances through a discrete-event
// network test double, exercising the property and scenario tests that
// cannot be expressed as single-instance unit tests: safety and liveness
// under randomized delay, message loss, byzantine skippers, and offline
// validators.
package simulator

import (
	"math/rand"
	"sort"

	"github.com/shardstake/gtos/common"
	"github.com/shardstake/gtos/consensus/doomslug"
)

// pendingMessage is one approval in flight between two validators.
type pendingMessage struct {
	deliverAt uint64 // simulated millisecond tick
	from      common.Address
	to        common.Address
	approval  doomslug.Approval
}

// Network is a discrete-event message bus: approvals queued via Send are
// delivered in non-decreasing tick order, with per-message random delay and
// loss applied according to the configured parameters.
type Network struct {
	rng *rand.Rand

	// delayMinMs/delayMaxMs bound the per-message delivery delay before GST.
	// After GST every message is delivered within deltaMs.
	delayMinMs uint64
	delayMaxMs uint64
	deltaMs    uint64
	gstMs      uint64

	// dropFraction is the probability (0..1) that a message sent before GST
	// is dropped outright. No drops occur at or after GST, matching the
	// liveness assumption in spec.md §5 ("bounded delivery after GST").
	dropFraction float64

	queue []pendingMessage
}

// NewNetwork builds a network test double seeded for reproducibility, as
// consensus/dpos/dpos.go seeds math/rand explicitly for in-turn jitter
// rather than relying on the global source.
func NewNetwork(seed int64, delayMinMs, delayMaxMs, deltaMs, gstMs uint64, dropFraction float64) *Network {
	return &Network{
		rng:          rand.New(rand.NewSource(seed)),
		delayMinMs:   delayMinMs,
		delayMaxMs:   delayMaxMs,
		deltaMs:      deltaMs,
		gstMs:        gstMs,
		dropFraction: dropFraction,
	}
}

// Send enqueues approval for delivery from "from" to "to" at the current
// simulated tick nowMs, applying the network's delay/loss model.
func (n *Network) Send(nowMs uint64, from, to common.Address, approval doomslug.Approval) {
	if nowMs < n.gstMs && n.dropFraction > 0 && n.rng.Float64() < n.dropFraction {
		return
	}
	var delay uint64
	if nowMs >= n.gstMs {
		delay = uint64(n.rng.Int63n(int64(n.deltaMs) + 1))
	} else {
		span := n.delayMaxMs - n.delayMinMs
		delay = n.delayMinMs
		if span > 0 {
			delay += uint64(n.rng.Int63n(int64(span) + 1))
		}
	}
	n.queue = append(n.queue, pendingMessage{deliverAt: nowMs + delay, from: from, to: to, approval: approval})
}

// DeliverUpTo returns, in non-decreasing deliverAt order, every message
// whose deliverAt is <= nowMs and removes them from the queue.
func (n *Network) DeliverUpTo(nowMs uint64) []pendingMessage {
	sort.Slice(n.queue, func(i, j int) bool { return n.queue[i].deliverAt < n.queue[j].deliverAt })
	var ready []pendingMessage
	var remaining []pendingMessage
	for _, m := range n.queue {
		if m.deliverAt <= nowMs {
			ready = append(ready, m)
		} else {
			remaining = append(remaining, m)
		}
	}
	n.queue = remaining
	return ready
}
