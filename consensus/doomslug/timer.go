package doomslug

import (
	"time"

	"github.com/shardstake/gtos/common"
)

// delayFor returns the wait, measured from timer_started_at, before the
// validator is willing to skip the height that is n positions beyond the
// current tip (n = 0 for tip_height+1, n = 1 for tip_height+2, ...). The
// schedule grows additively and saturates at MaxDelay: MinDelay for the
// first skip height, MinDelay+DelayStep for the second, and so on.
func (d *Instance) delayFor(n uint64) time.Duration {
	delay := d.config.MinDelay + time.Duration(n)*d.config.DelayStep
	if delay > d.config.MaxDelay {
		return d.config.MaxDelay
	}
	return delay
}

// ProcessTimer advances the per-height timer schedule against the wall
// clock reading now, producing every approval this validator is now due to
// send: at most one endorsement of the current tip, followed by zero or
// more skip approvals for successive heights whose delay has elapsed. The
// returned approvals are already recorded against this instance's own
// tracker, exactly as if they had arrived over the network, so the caller
// only needs to broadcast them.
func (d *Instance) ProcessTimer(now time.Time) ([]Approval, error) {
	if !d.haveTip {
		return nil, nil
	}
	var produced []Approval

	if d.signer != nil && d.endorsedAt.IsZero() && !now.Before(d.timerStart.Add(d.config.EndorsementDelay)) {
		approval, err := d.buildApproval(d.tip.Hash, true, d.tip.Height+1)
		if err != nil {
			return produced, err
		}
		d.endorsedAt = now
		d.tracker.onApproval(approval)
		d.advanceThresholds(approval, now)
		produced = append(produced, approval)
	}

	for {
		n := d.timerHeight - d.tip.Height - 1
		delay := d.delayFor(n)
		if !now.Before(d.timerStart.Add(delay)) {
			if d.signer != nil {
				approval, err := d.buildApproval(d.tip.Hash, false, d.timerHeight)
				if err != nil {
					return produced, err
				}
				d.tracker.onApproval(approval)
				d.advanceThresholds(approval, now)
				produced = append(produced, approval)
			}
			// timer_started_at advances by the delay that just elapsed rather
			// than resetting to now, so a validator that wakes up late still
			// schedules the next height's wait from where this one's ended.
			d.timerStart = d.timerStart.Add(delay)
			d.timerHeight++
			continue
		}
		break
	}
	return produced, nil
}

func (d *Instance) buildApproval(parent common.Hash, isEndorsement bool, targetHeight uint64) (Approval, error) {
	sig, err := d.signer.SignApproval(parent, d.referenceHash, d.hasReferenceHash, targetHeight, isEndorsement)
	if err != nil {
		return Approval{}, err
	}
	return Approval{
		ParentHash:       parent,
		ReferenceHash:    d.referenceHash,
		HasReferenceHash: d.hasReferenceHash,
		TargetHeight:     targetHeight,
		IsEndorsement:    isEndorsement,
		AccountID:        d.signer.AccountID(),
		Signature:        sig,
	}, nil
}
