package ingress

import "time"

// ChainStatus reports the chain-observation facts the "connected to
// network" predicate (spec.md §4.D.3) needs. It is injected by the caller
// (cmd/) rather than read off a global chainstate struct, the way the
// teacher's node.ChainState is a plain value passed around explicitly —
// generalized here into a narrow interface since this core has no P2P sync
// engine of its own (that subsystem is out of scope, per SPEC_FULL.md §1).
type ChainStatus struct {
	LastReceivedBlock      time.Time
	LastIndelibleBlock     time.Time
	LastIndelibleTimestamp time.Time
}

// StatusProvider supplies the current ChainStatus on demand.
type StatusProvider interface {
	ChainStatus() ChainStatus
}

// alwaysConnected is the zero-configuration default: a deployment with no
// P2P layer (e.g. a single-node devnet) is always "connected".
type alwaysConnected struct{}

func (alwaysConnected) ChainStatus() ChainStatus {
	now := timeNow()
	return ChainStatus{LastReceivedBlock: now, LastIndelibleBlock: now, LastIndelibleTimestamp: now}
}

func timeNow() time.Time { return time.Now() }

// ConnectedToNetwork implements spec.md §4.D.3's predicate: true iff all of
// (a) ticks since last received block <= maxNetSec, (b) ticks since last
// indelible block <= maxNetSec, (c) now - last_indelible_timestamp <=
// maxBlockSec. A zero parameter disables the corresponding check.
func ConnectedToNetwork(status ChainStatus, now time.Time, maxNetSec, maxBlockSec int64) bool {
	if maxNetSec > 0 {
		allowance := time.Duration(maxNetSec) * time.Second
		if status.LastReceivedBlock.IsZero() || now.Sub(status.LastReceivedBlock) > allowance {
			return false
		}
		if status.LastIndelibleBlock.IsZero() || now.Sub(status.LastIndelibleBlock) > allowance {
			return false
		}
	}
	if maxBlockSec > 0 {
		allowance := time.Duration(maxBlockSec) * time.Second
		if status.LastIndelibleTimestamp.IsZero() || now.Sub(status.LastIndelibleTimestamp) > allowance {
			return false
		}
	}
	return true
}
